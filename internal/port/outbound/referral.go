package outbound

import (
	"context"

	"github.com/google/uuid"
	"github.com/l2laihub/creditengine/internal/model"
)

// ReferralDatabasePort defines referral persistence operations.
type ReferralDatabasePort interface {
	// Create creates a new referral.
	Create(ctx context.Context, referral *model.Referral) error

	// LockOldestPending locks the oldest pending referral of a referrer that has
	// no referred user yet. Returns nil if none exists.
	LockOldestPending(ctx context.Context, referrerID uuid.UUID) (*model.Referral, error)

	// ExistsForReferredUser reports whether a referral was already completed
	// for the referred user.
	ExistsForReferredUser(ctx context.Context, referredID uuid.UUID) (bool, error)

	// Update persists a referral. Returns ErrDuplicate when the referred user
	// is already attached to another referral.
	Update(ctx context.Context, referral *model.Referral) error
}
