package realtime

import (
	"time"

	"github.com/goccy/go-json"
)

// MessageType names a realtime event.
type MessageType string

const (
	MessageSlotUpdated    MessageType = "slot.updated"
	MessageLogCreated     MessageType = "log.created"
	MessageBookingCreated MessageType = "booking.created"
	MessageBookingClosed  MessageType = "booking.closed"

	messagePing MessageType = "ping"
	messagePong MessageType = "pong"
)

// Message is the envelope delivered to park subscribers.
type Message struct {
	Type   MessageType `json:"type"`
	ParkID string      `json:"park_id"`
	Data   any         `json:"data,omitempty"`
	At     time.Time   `json:"at"`
}

// NewMessage stamps a message for parkID with the current UTC time.
func NewMessage(t MessageType, parkID string, data any) Message {
	return Message{Type: t, ParkID: parkID, Data: data, At: time.Now().UTC()}
}

// Encode serializes the message for the wire.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// inbound is the minimal shape read from clients and relayed payloads.
type inbound struct {
	Type   MessageType `json:"type"`
	ParkID string      `json:"park_id"`
}

func decodeInbound(payload []byte) (inbound, error) {
	var in inbound
	err := json.Unmarshal(payload, &in)
	return in, err
}
