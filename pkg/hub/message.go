// Package hub provides a thread-safe websocket broadcast hub
// using the idiomatic Go channel-based fan-out pattern.
package hub

import (
	"encoding/json"
	"time"
)

// Event is the envelope every broadcast is wrapped in.
type Event struct {
	Type string    `json:"type"` // status, sync, identity
	Time time.Time `json:"time"`
	Data any       `json:"data"`
}

// Message is a pre-encoded text frame queued for clients.
type Message struct {
	Data []byte
}

// NewEvent encodes an event into a message.
func NewEvent(eventType string, at time.Time, data any) (Message, error) {
	b, err := json.Marshal(Event{Type: eventType, Time: at, Data: data})
	if err != nil {
		return Message{}, err
	}
	return Message{Data: b}, nil
}
