// Package events holds publishers that need no broker.
package events

import (
	"context"
	"sync"
)

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(ctx context.Context, topic string, key string, event any) error { return nil }

// Recorder keeps published events in memory, in order.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

type Recorded struct {
	Topic string
	Key   string
	Event any
}

func (r *Recorder) Publish(ctx context.Context, topic string, key string, event any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Topic: topic, Key: key, Event: event})
	return nil
}

func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Recorded(nil), r.events...)
}
