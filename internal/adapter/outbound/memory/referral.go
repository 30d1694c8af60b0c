package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/l2laihub/creditengine/internal/model"
	"github.com/l2laihub/creditengine/internal/port/outbound"
)

type referralAdapter struct {
	store *Store
}

// NewReferralAdapter creates an in-memory referral adapter.
func NewReferralAdapter(s *Store) outbound.ReferralDatabasePort {
	return &referralAdapter{store: s}
}

func (a *referralAdapter) Create(ctx context.Context, referral *model.Referral) error {
	defer a.store.lock(ctx)()

	for _, r := range a.store.data.referrals {
		if r.ID == referral.ID {
			return outbound.ErrDuplicate
		}
	}
	a.store.data.referrals = append(a.store.data.referrals, *referral)
	return nil
}

// LockOldestPending relies on the store lock held by the surrounding
// transaction; rows are kept in insertion order.
func (a *referralAdapter) LockOldestPending(ctx context.Context, referrerID uuid.UUID) (*model.Referral, error) {
	defer a.store.lock(ctx)()

	var oldest *model.Referral
	for i := range a.store.data.referrals {
		r := a.store.data.referrals[i]
		if r.ReferrerUserID != referrerID || !r.IsPending() {
			continue
		}
		if oldest == nil || r.CreatedAt.Before(oldest.CreatedAt) {
			oldest = &r
		}
	}
	return oldest, nil
}

func (a *referralAdapter) ExistsForReferredUser(ctx context.Context, referredID uuid.UUID) (bool, error) {
	defer a.store.lock(ctx)()

	for _, r := range a.store.data.referrals {
		if r.ReferredUserID != nil && *r.ReferredUserID == referredID {
			return true, nil
		}
	}
	return false, nil
}

func (a *referralAdapter) Update(ctx context.Context, referral *model.Referral) error {
	defer a.store.lock(ctx)()

	if referral.ReferredUserID != nil {
		for _, r := range a.store.data.referrals {
			if r.ID != referral.ID && r.ReferredUserID != nil && *r.ReferredUserID == *referral.ReferredUserID {
				return outbound.ErrDuplicate
			}
		}
	}
	for i := range a.store.data.referrals {
		if a.store.data.referrals[i].ID == referral.ID {
			a.store.data.referrals[i] = *referral
			return nil
		}
	}
	return nil
}

// Compile-time check
var _ outbound.ReferralDatabasePort = (*referralAdapter)(nil)
