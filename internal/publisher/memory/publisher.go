// Package memory holds run-completion events in process. It stands in
// for Pub/Sub when completion publishing is disabled and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Publisher records every completion event it is handed.
type Publisher struct {
	mu       sync.RWMutex
	messages []PublishedMessage
}

// PublishedMessage is one recorded completion event.
type PublishedMessage struct {
	Topic   string
	Payload any
}

// New returns an empty in-process Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish appends the event and returns a synthetic message id.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, PublishedMessage{Topic: topic, Payload: payload})
	return fmt.Sprintf("memory-%d", len(p.messages)), nil
}

// Messages returns a copy of everything published so far.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}
