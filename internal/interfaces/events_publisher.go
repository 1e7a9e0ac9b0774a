package interfaces

import "context"

// EventPublisher delivers domain events to whoever listens; the topic names the stream.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, event any) error
}
