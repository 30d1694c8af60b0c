package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/l2laihub/creditengine/internal/model"
	"github.com/l2laihub/creditengine/internal/port/outbound"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// usageRecordAdapter implements outbound.UsageRecordDatabasePort.
type usageRecordAdapter struct {
	db *gorm.DB
}

// NewUsageRecordAdapter creates a new usage record database adapter.
func NewUsageRecordAdapter(db *gorm.DB) outbound.UsageRecordDatabasePort {
	return &usageRecordAdapter{db: db}
}

func (a *usageRecordAdapter) Create(ctx context.Context, record *model.UsageRecord) error {
	if err := dbFromContext(ctx, a.db).Create(record).Error; err != nil {
		return fmt.Errorf("create usage record: %w", mapCreateError(err))
	}
	return nil
}

func (a *usageRecordAdapter) GetByID(ctx context.Context, id uuid.UUID) (*model.UsageRecord, error) {
	return a.find(dbFromContext(ctx, a.db), id)
}

func (a *usageRecordAdapter) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.UsageRecord, error) {
	return a.find(dbFromContext(ctx, a.db).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (a *usageRecordAdapter) find(db *gorm.DB, id uuid.UUID) (*model.UsageRecord, error) {
	var record model.UsageRecord
	if err := db.Where("id = ?", id).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (a *usageRecordAdapter) Update(ctx context.Context, record *model.UsageRecord) error {
	err := dbFromContext(ctx, a.db).
		Model(&model.UsageRecord{}).
		Where("id = ?", record.ID).
		Updates(map[string]interface{}{
			"status":             record.Status,
			"processing_time_ms": record.ProcessingTimeMs,
			"error_message":      record.ErrorMessage,
			"completed_at":       record.CompletedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("update usage record: %w", err)
	}
	return nil
}

// Compile-time check
var _ outbound.UsageRecordDatabasePort = (*usageRecordAdapter)(nil)
