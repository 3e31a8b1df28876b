package realtime

import (
	"context"
	"sort"
	"sync"

	"github.com/angelmondragon/smartpark-backend/pkg/logger"
	"github.com/angelmondragon/smartpark-backend/pkg/metrics"
)

const broadcastBuffer = 256

type envelope struct {
	parkID  string
	payload []byte
}

// Hub fans encoded messages out to the clients subscribed to each park.
type Hub struct {
	rooms      map[string]map[*Client]struct{}
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex

	logg    *logger.Logger
	metrics *metrics.ParkingMetrics
}

// NewHub builds an idle hub; call Run to start dispatching.
func NewHub(logg *logger.Logger, m *metrics.ParkingMetrics) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		broadcast:  make(chan envelope, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logg:       logg,
		metrics:    m,
	}
}

// Run dispatches lifecycle and broadcast events until ctx is done. Lifecycle
// events are drained before broadcasts so a message never races a pending
// registration.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.stop(ctx)
			return nil
		default:
		}

		select {
		case client := <-h.register:
			h.add(ctx, client)
			continue
		case client := <-h.unregister:
			h.remove(ctx, client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.stop(ctx)
			return nil
		case client := <-h.register:
			h.add(ctx, client)
		case client := <-h.unregister:
			h.remove(ctx, client)
		case env := <-h.broadcast:
			h.broadcastToRoom(ctx, env)
		}
	}
}

func (h *Hub) stop(ctx context.Context) {
	h.stopOnce.Do(func() {
		closed := h.closeAllClients()
		close(h.done)
		h.logg.Info(h.logg.WithField(ctx, "clients_closed", closed), "realtime hub stopped")
	})
}

// Broadcast encodes msg and queues it for the park's room. A full queue drops
// the message.
func (h *Hub) Broadcast(msg Message) {
	payload, err := msg.Encode()
	if err != nil {
		h.logg.Error(context.Background(), "realtime.encode_failed", err)
		return
	}
	h.BroadcastRaw(msg.ParkID, payload)
}

// BroadcastRaw queues an already encoded payload.
func (h *Hub) BroadcastRaw(parkID string, payload []byte) {
	select {
	case h.broadcast <- envelope{parkID: parkID, payload: payload}:
	default:
		h.logg.Warn(h.logg.WithParkID(context.Background(), parkID), "realtime.broadcast_dropped")
	}
}

// ClientCount returns the number of subscribers of a park.
func (h *Hub) ClientCount(parkID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[parkID])
}

func (h *Hub) add(ctx context.Context, client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.parkID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[client.parkID] = room
	}
	room[client] = struct{}{}
	total := len(room)
	h.mu.Unlock()

	h.metrics.AddRealtimeConnections(1)
	ctx = h.logg.WithFields(h.logg.WithParkID(ctx, client.parkID), map[string]any{"room_clients": total})
	h.logg.Debug(ctx, "realtime client connected")
}

func (h *Hub) remove(ctx context.Context, client *Client) {
	h.mu.Lock()
	removed := h.detach(client)
	h.mu.Unlock()

	if removed {
		h.metrics.AddRealtimeConnections(-1)
		h.logg.Debug(h.logg.WithParkID(ctx, client.parkID), "realtime client disconnected")
	}
}

// detach must be called with mu held.
func (h *Hub) detach(client *Client) bool {
	room, ok := h.rooms[client.parkID]
	if !ok {
		return false
	}
	if _, ok := room[client]; !ok {
		return false
	}
	delete(room, client)
	close(client.send)
	if len(room) == 0 {
		delete(h.rooms, client.parkID)
	}
	return true
}

func (h *Hub) broadcastToRoom(ctx context.Context, env envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[env.parkID]
	clients := make([]*Client, 0, len(room))
	for client := range room {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	for _, client := range clients {
		select {
		case client.send <- env.payload:
		default:
			h.detach(client)
			h.metrics.AddRealtimeConnections(-1)
			h.metrics.IncRealtimeDrop()
			h.logg.Warn(h.logg.WithParkID(ctx, env.parkID), "realtime.slow_client_dropped")
		}
	}
}

func (h *Hub) closeAllClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	closed := 0
	for parkID, room := range h.rooms {
		for client := range room {
			close(client.send)
			closed++
		}
		delete(h.rooms, parkID)
	}
	h.metrics.AddRealtimeConnections(-closed)
	return closed
}
