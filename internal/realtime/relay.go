package realtime

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/smartpark-backend/pkg/logger"
)

type subscriber interface {
	PSubscribe(ctx context.Context, patterns ...string) (*redis.PubSub, error)
	ParkChannelPattern() string
	ParkIDFromChannel(channel string) (string, bool)
}

// RedisRelay forwards messages published on park channels into the local hub.
type RedisRelay struct {
	sub  subscriber
	hub  *Hub
	logg *logger.Logger
}

func NewRedisRelay(sub subscriber, hub *Hub, logg *logger.Logger) *RedisRelay {
	return &RedisRelay{sub: sub, hub: hub, logg: logg}
}

// Run consumes the pattern subscription until ctx is canceled.
func (r *RedisRelay) Run(ctx context.Context) error {
	pattern := r.sub.ParkChannelPattern()
	ps, err := r.sub.PSubscribe(ctx, pattern)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", pattern, err)
	}
	defer func() { _ = ps.Close() }()

	r.logg.Info(r.logg.WithField(ctx, "pattern", pattern), "realtime relay subscribed")

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("realtime subscription closed")
			}
			r.handle(ctx, msg.Channel, []byte(msg.Payload))
		}
	}
}

func (r *RedisRelay) handle(ctx context.Context, channel string, payload []byte) {
	parkID, ok := r.sub.ParkIDFromChannel(channel)
	if !ok {
		r.logg.Warn(r.logg.WithField(ctx, "channel", channel), "realtime.relay_unknown_channel")
		return
	}
	in, err := decodeInbound(payload)
	if err != nil {
		r.logg.Error(r.logg.WithParkID(ctx, parkID), "realtime.relay_decode_failed", err)
		return
	}
	if in.ParkID != "" && in.ParkID != parkID {
		r.logg.Warn(r.logg.WithParkID(ctx, parkID), "realtime.relay_park_mismatch")
		return
	}
	r.hub.BroadcastRaw(parkID, payload)
}
