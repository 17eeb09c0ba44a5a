// Package platform models the messaging platform's webhook envelope
// and the Graph API send-message call.
package platform

import (
	"encoding/json"
	"fmt"
)

// Event is the top-level webhook delivery body.
type Event struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups messaging events for one page or account.
type Entry struct {
	ID        string           `json:"id"`
	Time      int64            `json:"time"`
	Messaging []MessagingEvent `json:"messaging"`
}

// MessagingEvent is one inbound item: a content message, an echo of
// our own send, a read receipt, or a delivery receipt.
type MessagingEvent struct {
	Sender    Party           `json:"sender"`
	Recipient Party           `json:"recipient"`
	Timestamp int64           `json:"timestamp"`
	Message   *Message        `json:"message,omitempty"`
	Read      json.RawMessage `json:"read,omitempty"`
	Delivery  json.RawMessage `json:"delivery,omitempty"`
}

// Party identifies a sender or recipient account.
type Party struct {
	ID string `json:"id"`
}

// Message is the content portion of a messaging event.
type Message struct {
	MID         string       `json:"mid"`
	Text        string       `json:"text"`
	IsEcho      bool         `json:"is_echo"`
	Attachments []Attachment `json:"attachments"`
}

// Attachment payloads are inconsistently shaped across attachment
// types (share, ig_reel, image, video, story_mention), so the payload
// stays an open map.
type Attachment struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// ParseEvent decodes a raw webhook body.
func ParseEvent(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}
	return &ev, nil
}

// IsReceipt reports whether the event is a read or delivery receipt
// rather than a content message.
func (m *MessagingEvent) IsReceipt() bool {
	return m.Message == nil && (len(m.Read) > 0 || len(m.Delivery) > 0)
}
