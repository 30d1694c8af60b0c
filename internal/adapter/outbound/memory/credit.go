package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/l2laihub/creditengine/internal/model"
	"github.com/l2laihub/creditengine/internal/port/outbound"
)

type creditBalanceAdapter struct {
	store *Store
}

// NewCreditBalanceAdapter creates an in-memory credit balance adapter.
func NewCreditBalanceAdapter(s *Store) outbound.CreditBalanceDatabasePort {
	return &creditBalanceAdapter{store: s}
}

func (a *creditBalanceAdapter) GetOrCreateForUpdate(ctx context.Context, userID uuid.UUID, today time.Time) (*model.CreditBalance, error) {
	defer a.store.lock(ctx)()

	b, ok := a.store.data.balances[userID]
	if !ok {
		now := time.Now()
		b = model.CreditBalance{
			UserID:        userID,
			LastFreeReset: today,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		a.store.data.balances[userID] = b
	}
	return &b, nil
}

func (a *creditBalanceAdapter) Get(ctx context.Context, userID uuid.UUID) (*model.CreditBalance, error) {
	defer a.store.lock(ctx)()

	b, ok := a.store.data.balances[userID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (a *creditBalanceAdapter) Update(ctx context.Context, balance *model.CreditBalance) error {
	defer a.store.lock(ctx)()

	a.store.data.balances[balance.UserID] = *balance
	return nil
}

type creditTransactionAdapter struct {
	store *Store
}

// NewCreditTransactionAdapter creates an in-memory ledger entry adapter.
func NewCreditTransactionAdapter(s *Store) outbound.CreditTransactionDatabasePort {
	return &creditTransactionAdapter{store: s}
}

func (a *creditTransactionAdapter) Create(ctx context.Context, tx *model.CreditTransaction) error {
	defer a.store.lock(ctx)()

	for _, existing := range a.store.data.transactions {
		if existing.ID == tx.ID {
			return outbound.ErrDuplicate
		}
	}
	a.store.data.transactions = append(a.store.data.transactions, *tx)
	return nil
}

func (a *creditTransactionAdapter) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.CreditTransaction, int64, error) {
	defer a.store.lock(ctx)()

	all := a.byUser(userID)
	// Newest first; insertion order breaks ties.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := int64(len(all))
	start := min(offset, len(all))
	end := len(all)
	if limit > 0 {
		end = min(start+limit, len(all))
	}
	return all[start:end], total, nil
}

func (a *creditTransactionAdapter) ListAllByUser(ctx context.Context, userID uuid.UUID) ([]*model.CreditTransaction, error) {
	defer a.store.lock(ctx)()

	all := a.byUser(userID)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	return all, nil
}

func (a *creditTransactionAdapter) byUser(userID uuid.UUID) []*model.CreditTransaction {
	result := make([]*model.CreditTransaction, 0)
	for _, tx := range a.store.data.transactions {
		if tx.UserID == userID {
			tx := tx
			result = append(result, &tx)
		}
	}
	return result
}

// Compile-time checks
var (
	_ outbound.CreditBalanceDatabasePort     = (*creditBalanceAdapter)(nil)
	_ outbound.CreditTransactionDatabasePort = (*creditTransactionAdapter)(nil)
)
