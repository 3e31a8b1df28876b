package realtime

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 64
)

var clientIDCounter atomic.Uint64

// Client is one websocket subscriber of a park room.
type Client struct {
	id     uint64
	parkID string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
}

func newClient(hub *Hub, conn *websocket.Conn, parkID string) *Client {
	return &Client{
		id:     clientIDCounter.Add(1),
		parkID: parkID,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}
}

// Attach registers an upgraded connection in the park room and starts its
// pumps. It returns once the client is registered.
func (h *Hub) Attach(ctx context.Context, conn *websocket.Conn, parkID string) {
	client := newClient(h, conn, parkID)
	select {
	case h.register <- client:
	case <-ctx.Done():
		_ = conn.Close()
		return
	case <-h.done:
		_ = conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logg.Warn(c.hub.logg.WithParkID(context.Background(), c.parkID), "realtime.unexpected_close")
			}
			return
		}

		// Clients only ever send application pings.
		in, err := decodeInbound(payload)
		if err != nil || in.Type != messagePing {
			continue
		}
		pong, err := NewMessage(messagePong, c.parkID, nil).Encode()
		if err != nil {
			continue
		}
		select {
		case c.send <- pong:
		default:
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
