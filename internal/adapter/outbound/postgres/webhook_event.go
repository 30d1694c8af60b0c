package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/l2laihub/creditengine/internal/model"
	"github.com/l2laihub/creditengine/internal/port/outbound"
	"gorm.io/gorm"
)

// webhookEventAdapter implements outbound.WebhookEventDatabasePort.
type webhookEventAdapter struct {
	db *gorm.DB
}

// NewWebhookEventAdapter creates a new webhook event database adapter.
func NewWebhookEventAdapter(db *gorm.DB) outbound.WebhookEventDatabasePort {
	return &webhookEventAdapter{db: db}
}

func (a *webhookEventAdapter) Create(ctx context.Context, event *model.WebhookEvent) error {
	if err := dbFromContext(ctx, a.db).Create(event).Error; err != nil {
		if isUniqueViolation(err) {
			return outbound.ErrDuplicate
		}
		return fmt.Errorf("create webhook event: %w", err)
	}
	return nil
}

func (a *webhookEventAdapter) MarkProcessed(ctx context.Context, id uuid.UUID, processErr error) error {
	updates := map[string]interface{}{
		"processed":    true,
		"processed_at": time.Now(),
		"success":      processErr == nil,
	}
	if processErr != nil {
		updates["error"] = processErr.Error()
	}
	err := dbFromContext(ctx, a.db).
		Model(&model.WebhookEvent{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("mark webhook event processed: %w", err)
	}
	return nil
}

func (a *webhookEventAdapter) ListFailed(ctx context.Context, staleBefore time.Time, limit int) ([]*model.WebhookEvent, error) {
	var events []*model.WebhookEvent
	err := dbFromContext(ctx, a.db).
		Where("success = ? AND (processed = ? OR created_at < ?)", false, true, staleBefore).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// Compile-time check
var _ outbound.WebhookEventDatabasePort = (*webhookEventAdapter)(nil)
