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

// referralAdapter implements outbound.ReferralDatabasePort.
type referralAdapter struct {
	db *gorm.DB
}

// NewReferralAdapter creates a new referral database adapter.
func NewReferralAdapter(db *gorm.DB) outbound.ReferralDatabasePort {
	return &referralAdapter{db: db}
}

func (a *referralAdapter) Create(ctx context.Context, referral *model.Referral) error {
	if err := dbFromContext(ctx, a.db).Create(referral).Error; err != nil {
		return fmt.Errorf("create referral: %w", mapCreateError(err))
	}
	return nil
}

// LockOldestPending skips rows already locked by a concurrent completion, so
// two signups never pay out the same referral.
func (a *referralAdapter) LockOldestPending(ctx context.Context, referrerID uuid.UUID) (*model.Referral, error) {
	var referral model.Referral
	err := dbFromContext(ctx, a.db).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("referrer_user_id = ? AND status = ? AND referred_user_id IS NULL", referrerID, model.ReferralStatusPending).
		Order("created_at ASC").
		First(&referral).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &referral, nil
}

func (a *referralAdapter) ExistsForReferredUser(ctx context.Context, referredID uuid.UUID) (bool, error) {
	var count int64
	err := dbFromContext(ctx, a.db).
		Model(&model.Referral{}).
		Where("referred_user_id = ?", referredID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count referrals: %w", err)
	}
	return count > 0, nil
}

func (a *referralAdapter) Update(ctx context.Context, referral *model.Referral) error {
	err := dbFromContext(ctx, a.db).
		Model(&model.Referral{}).
		Where("id = ?", referral.ID).
		Updates(map[string]interface{}{
			"referred_user_id": referral.ReferredUserID,
			"status":           referral.Status,
			"credits_earned":   referral.CreditsEarned,
			"completed_at":     referral.CompletedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("update referral: %w", mapCreateError(err))
	}
	return nil
}

// Compile-time check
var _ outbound.ReferralDatabasePort = (*referralAdapter)(nil)
