package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/l2laihub/creditengine/internal/infra/events"
	"github.com/l2laihub/creditengine/internal/port/outbound"
	"go.uber.org/zap"
)

// EventForwarder relays every domain event on the bus to <prefix>.<event_type>.
type EventForwarder struct {
	bus    outbound.MessagePort
	prefix string
	logger *zap.Logger
}

// NewEventForwarder creates a forwarder. Register it on events.Bus.
func NewEventForwarder(bus outbound.MessagePort, prefix string, logger *zap.Logger) *EventForwarder {
	return &EventForwarder{bus: bus, prefix: prefix, logger: logger}
}

// Handles subscribes to every event type.
func (f *EventForwarder) Handles() []string {
	return []string{events.Wildcard}
}

// Handle encodes the event as JSON and publishes it.
func (f *EventForwarder) Handle(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.EventType(), err)
	}

	subject := f.Subject(event.EventType())
	if err := f.bus.Publish(ctx, subject, data); err != nil {
		return err
	}
	f.logger.Debug("event forwarded",
		zap.String("subject", subject),
		zap.String("event_id", event.EventID().String()),
	)
	return nil
}

// Subject returns the NATS subject for an event type.
func (f *EventForwarder) Subject(eventType string) string {
	if f.prefix == "" {
		return eventType
	}
	return f.prefix + "." + eventType
}

// Compile-time check
var _ events.Handler = (*EventForwarder)(nil)
