package outbound

import (
	"context"

	"github.com/l2laihub/creditengine/internal/infra/events"
)

// EventPublisherPort defines event publishing operations.
type EventPublisherPort interface {
	// Publish publishes a domain event.
	Publish(ctx context.Context, event events.Event) error
}

// MessagePort defines message broker operations.
type MessagePort interface {
	// Publish publishes a message to a subject.
	Publish(ctx context.Context, subject string, message []byte) error
}
