package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Bus is a synchronous in-process event bus for domain events.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	wildcard []Handler
	logger   *zap.Logger
}

// NewBus creates a new event bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Register registers a handler for the events it handles.
// A handler that returns "*" from Handles receives every event.
func (b *Bus) Register(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, eventType := range handler.Handles() {
		if eventType == Wildcard {
			b.wildcard = append(b.wildcard, handler)
		} else {
			b.handlers[eventType] = append(b.handlers[eventType], handler)
		}
		b.logger.Debug("registered event handler",
			zap.String("event_type", eventType),
		)
	}
}

// Publish dispatches an event to all registered handlers in registration order.
// A failing handler is logged and does not stop the others; Publish itself never fails.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event.EventType()])+len(b.wildcard))
	handlers = append(handlers, b.handlers[event.EventType()]...)
	handlers = append(handlers, b.wildcard...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.logger.Debug("no handlers registered for event",
			zap.String("event_type", event.EventType()),
			zap.String("event_id", event.EventID().String()),
		)
		return nil
	}

	b.logger.Debug("publishing event",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("aggregate_id", event.AggregateID()),
		zap.Int("handler_count", len(handlers)),
	)

	for _, handler := range handlers {
		if err := handler.Handle(ctx, event); err != nil {
			b.logger.Error("event handler failed",
				zap.String("event_type", event.EventType()),
				zap.String("event_id", event.EventID().String()),
				zap.Error(err),
			)
		}
	}
	return nil
}
