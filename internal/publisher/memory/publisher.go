// Package memory provides an in-process publisher for local development
// and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Message is one published payload.
type Message struct {
	Topic   string
	Payload any
}

// Publisher collects published messages in memory.
type Publisher struct {
	mu       sync.Mutex
	messages []Message
}

// New creates a Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the payload and returns a synthetic message ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, Message{Topic: topic, Payload: payload})
	return fmt.Sprintf("mem-%d", len(p.messages)), nil
}

// Messages returns a copy of everything published so far.
func (p *Publisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}
