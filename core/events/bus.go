// Package events provides a minimal in-process pub/sub bus. Every mutating
// operation in the core publishes a typed event on it after the operation's
// state change has committed, so subscribers (audit sinks, plugged-in
// policies) only ever observe fully applied state.
package events

import (
	"context"
	"sync"
)

// TypedEvent is implemented by all event payloads to identify their type.
type TypedEvent interface {
	// EventType returns a string identifier for the event type.
	EventType() string
}

// Bus is the pub/sub interface. Topics are identified by string.
type Bus interface {
	Subscribe(topic string) (<-chan TypedEvent, func(), error)
	Publish(ctx context.Context, topic string, payload TypedEvent)
	Close()
}

type subscriber struct {
	topic string
	ch    chan TypedEvent
}

type bus struct {
	mu     sync.RWMutex
	subs   map[string][]*subscriber
	closed bool
}

// New returns a new event bus instance.
func New() Bus {
	return &bus{subs: make(map[string][]*subscriber)}
}

func (b *bus) Subscribe(topic string) (<-chan TypedEvent, func(), error) {
	s := &subscriber{topic: topic, ch: make(chan TypedEvent, 16)}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(s.ch)
		return s.ch, func() {}, nil
	}
	b.subs[topic] = append(b.subs[topic], s)
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[topic]
		for i, sub := range list {
			if sub == s {
				b.subs[topic] = append(list[:i], list[i+1:]...)
				close(s.ch)
				if len(b.subs[topic]) == 0 {
					delete(b.subs, topic)
				}
				return
			}
		}
	}
	return s.ch, cancel, nil
}

func (b *bus) Publish(ctx context.Context, topic string, payload TypedEvent) {
	b.mu.RLock()
	// Copy channels to avoid holding the lock while sending.
	chs := make([]chan TypedEvent, 0, len(b.subs[topic]))
	for _, s := range b.subs[topic] {
		chs = append(chs, s.ch)
	}
	b.mu.RUnlock()
	for _, ch := range chs {
		select {
		case ch <- payload:
		case <-ctx.Done():
			return
		default:
			// drop if subscriber is slow
		}
	}
}

func (b *bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for topic, list := range b.subs {
		for _, s := range list {
			close(s.ch)
		}
		delete(b.subs, topic)
	}
}
