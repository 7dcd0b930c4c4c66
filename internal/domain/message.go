package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message type tags on the server-to-client channel.
const (
	MessageTypeConnection     = "connection"
	MessageTypeThreatUpdate   = "threat_update"
	MessageTypeWatchlist      = "watchlist_update"
	MessageTypeAlert          = "alert"
	MessageTypeSystemStatus   = "system_status"
	MessageTypePong           = "pong"
	MessageTypeSubscription   = "subscription_response"
	MessageTypeUnsubscription = "unsubscription_response"
	MessageTypeStats          = "stats"
	MessageTypeError          = "error"
)

// Message is one outbound unit: a topic for routing, a type tag, and an
// opaque payload. Immutable once constructed; the wire form is marshaled
// exactly once, at construction.
type Message struct {
	Topic     Topic
	Type      string
	CreatedAt time.Time
	encoded   []byte
}

type messageEnvelope struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
}

// NewMessage builds an immutable message for a topic. The payload is
// marshaled into the envelope up front so every delivery shares one buffer.
func NewMessage(topic Topic, msgType string, payload any, now time.Time) (Message, error) {
	encoded, err := json.Marshal(messageEnvelope{
		Type:      msgType,
		Data:      payload,
		Timestamp: now.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s message: %w", msgType, err)
	}
	return Message{Topic: topic, Type: msgType, CreatedAt: now, encoded: encoded}, nil
}

// Encoded returns the wire form of the message.
func (m Message) Encoded() []byte {
	return m.encoded
}
