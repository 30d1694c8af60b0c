package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/l2laihub/creditengine/internal/model"
	"github.com/l2laihub/creditengine/internal/port/outbound"
)

type webhookEventAdapter struct {
	store *Store
}

// NewWebhookEventAdapter creates an in-memory webhook event adapter.
func NewWebhookEventAdapter(s *Store) outbound.WebhookEventDatabasePort {
	return &webhookEventAdapter{store: s}
}

func (a *webhookEventAdapter) Create(ctx context.Context, event *model.WebhookEvent) error {
	defer a.store.lock(ctx)()

	for _, e := range a.store.data.webhooks {
		if e.ID == event.ID || (e.Provider == event.Provider && e.EventID == event.EventID) {
			return outbound.ErrDuplicate
		}
	}
	a.store.data.webhooks = append(a.store.data.webhooks, *event)
	return nil
}

func (a *webhookEventAdapter) MarkProcessed(ctx context.Context, id uuid.UUID, processErr error) error {
	defer a.store.lock(ctx)()

	for i := range a.store.data.webhooks {
		e := &a.store.data.webhooks[i]
		if e.ID != id {
			continue
		}
		now := time.Now()
		e.Processed = true
		e.ProcessedAt = &now
		e.Success = processErr == nil
		e.Error = nil
		if processErr != nil {
			msg := processErr.Error()
			e.Error = &msg
		}
		return nil
	}
	return nil
}

func (a *webhookEventAdapter) ListFailed(ctx context.Context, staleBefore time.Time, limit int) ([]*model.WebhookEvent, error) {
	defer a.store.lock(ctx)()

	result := make([]*model.WebhookEvent, 0)
	for _, e := range a.store.data.webhooks {
		if !e.Success && (e.Processed || e.CreatedAt.Before(staleBefore)) {
			e := e
			result = append(result, &e)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Compile-time check
var _ outbound.WebhookEventDatabasePort = (*webhookEventAdapter)(nil)
