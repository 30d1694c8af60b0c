package outbound

import (
	"context"

	"github.com/google/uuid"
	"github.com/l2laihub/creditengine/internal/model"
)

// UsageRecordDatabasePort defines usage record persistence operations.
type UsageRecordDatabasePort interface {
	// Create creates a new usage record.
	Create(ctx context.Context, record *model.UsageRecord) error

	// GetByID gets a usage record. Returns nil if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*model.UsageRecord, error)

	// GetByIDForUpdate gets and locks a usage record. Returns nil if absent.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.UsageRecord, error)

	// Update persists status fields.
	Update(ctx context.Context, record *model.UsageRecord) error
}
