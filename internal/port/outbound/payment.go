package outbound

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/l2laihub/creditengine/internal/model"
)

// WebhookEventDatabasePort defines webhook event persistence operations.
type WebhookEventDatabasePort interface {
	// Create creates a new webhook event record.
	// Returns ErrDuplicate if (provider, event_id) was already recorded.
	Create(ctx context.Context, event *model.WebhookEvent) error

	// MarkProcessed marks a webhook event as processed, failed when processErr is set.
	MarkProcessed(ctx context.Context, id uuid.UUID, processErr error) error

	// ListFailed lists events that have not been applied successfully, newest
	// first: events marked failed, and events still unprocessed that were
	// recorded before staleBefore.
	ListFailed(ctx context.Context, staleBefore time.Time, limit int) ([]*model.WebhookEvent, error)
}
