package realtime

import (
	"context"

	"github.com/angelmondragon/smartpark-backend/pkg/logger"
)

// Publisher delivers park events to realtime subscribers. Implementations
// never fail the caller; delivery problems are logged.
type Publisher interface {
	Publish(ctx context.Context, msgs ...Message)
}

// broker is the pub/sub surface of pkg/redis.Client.
type broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	ParkChannel(parkID string) string
}

// RedisPublisher publishes to the per-park Redis channel so every API
// instance can relay the event to its own websocket clients.
type RedisPublisher struct {
	broker broker
	logg   *logger.Logger
}

func NewRedisPublisher(b broker, logg *logger.Logger) *RedisPublisher {
	return &RedisPublisher{broker: b, logg: logg}
}

func (p *RedisPublisher) Publish(ctx context.Context, msgs ...Message) {
	for _, msg := range msgs {
		payload, err := msg.Encode()
		if err != nil {
			p.logg.Error(ctx, "realtime.encode_failed", err)
			continue
		}
		if err := p.broker.Publish(ctx, p.broker.ParkChannel(msg.ParkID), payload); err != nil {
			ctx := p.logg.WithFields(p.logg.WithParkID(ctx, msg.ParkID), map[string]any{"type": string(msg.Type)})
			p.logg.Error(ctx, "realtime.publish_failed", err)
		}
	}
}

// HubPublisher hands messages straight to an in-process hub.
type HubPublisher struct {
	hub *Hub
}

func NewHubPublisher(hub *Hub) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) Publish(_ context.Context, msgs ...Message) {
	for _, msg := range msgs {
		p.hub.Broadcast(msg)
	}
}

// NopPublisher discards messages.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ...Message) {}
