package outbound

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/l2laihub/creditengine/internal/model"
)

// CreditBalanceDatabasePort defines credit balance persistence operations.
type CreditBalanceDatabasePort interface {
	// GetOrCreateForUpdate ensures the balance row exists and locks it for the
	// current transaction. today seeds last_free_reset on creation.
	GetOrCreateForUpdate(ctx context.Context, userID uuid.UUID, today time.Time) (*model.CreditBalance, error)

	// Get gets a balance without locking. Returns nil if absent.
	Get(ctx context.Context, userID uuid.UUID) (*model.CreditBalance, error)

	// Update persists the mutable balance columns.
	Update(ctx context.Context, balance *model.CreditBalance) error
}

// CreditTransactionDatabasePort defines ledger entry persistence operations.
type CreditTransactionDatabasePort interface {
	// Create appends a ledger entry.
	Create(ctx context.Context, tx *model.CreditTransaction) error

	// ListByUser lists entries newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.CreditTransaction, int64, error)

	// ListAllByUser lists every entry oldest first, for replay.
	ListAllByUser(ctx context.Context, userID uuid.UUID) ([]*model.CreditTransaction, error)
}
