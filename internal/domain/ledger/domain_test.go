package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/l2laihub/creditengine/internal/adapter/outbound/memory"
	"github.com/l2laihub/creditengine/internal/infra/events"
	"github.com/l2laihub/creditengine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Mock implementations ---

type MockBalanceDB struct {
	mock.Mock
}

func (m *MockBalanceDB) GetOrCreateForUpdate(ctx context.Context, userID uuid.UUID, today time.Time) (*model.CreditBalance, error) {
	args := m.Called(ctx, userID, today)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CreditBalance), args.Error(1)
}

func (m *MockBalanceDB) Get(ctx context.Context, userID uuid.UUID) (*model.CreditBalance, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CreditBalance), args.Error(1)
}

func (m *MockBalanceDB) Update(ctx context.Context, balance *model.CreditBalance) error {
	args := m.Called(ctx, balance)
	return args.Error(0)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

type fixture struct {
	domain    *Domain
	store     *memory.Store
	publisher *recordingPublisher
	now       *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	f := &fixture{store: memory.New(), publisher: &recordingPublisher{}, now: &now}
	cfg := &Config{
		FreeDailyAllowance: 3,
		Location:           time.UTC,
		Clock:              func() time.Time { return *f.now },
	}
	f.domain = NewLedgerDomain(
		f.store.TxManager(),
		memory.NewCreditBalanceAdapter(f.store),
		memory.NewCreditTransactionAdapter(f.store),
		f.publisher,
		nil,
		cfg,
		zap.NewNop(),
	)
	return f
}

func (f *fixture) balance(t *testing.T, userID uuid.UUID) *model.BalanceResponse {
	t.Helper()
	b, err := f.domain.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

// --- Tests ---

func TestLedgerDomain_Credit(t *testing.T) {
	ctx := context.Background()

	t.Run("purchase goes to paid credits", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.New()
		ref := "pi_123"

		total, err := f.domain.Credit(ctx, userID, 25, model.TransactionTypePurchase, "Purchase", &ref)
		require.NoError(t, err)
		assert.Equal(t, int64(25), total)

		b := f.balance(t, userID)
		assert.Equal(t, int64(25), b.PaidCredits)
		assert.Equal(t, int64(0), b.BonusCredits)

		entries, count, err := f.domain.ListTransactions(ctx, userID, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
		require.Len(t, entries, 1)
		assert.Equal(t, model.TransactionTypePurchase, entries[0].Type)
		assert.Equal(t, int64(25), entries[0].Amount)
		assert.Equal(t, int64(25), entries[0].BalanceAfter)
		require.NotNil(t, entries[0].ExternalRef)
		assert.Equal(t, "pi_123", *entries[0].ExternalRef)
		assert.Equal(t, []string{events.CreditsCreditedType}, f.publisher.types())
	})

	t.Run("bonus goes to bonus credits", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.New()

		_, err := f.domain.Credit(ctx, userID, 20, model.TransactionTypeBonus, "Welcome", nil)
		require.NoError(t, err)

		b := f.balance(t, userID)
		assert.Equal(t, int64(0), b.PaidCredits)
		assert.Equal(t, int64(20), b.BonusCredits)
		assert.Equal(t, int64(20), b.Total)
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.New()

		_, err := f.domain.Credit(ctx, userID, 0, model.TransactionTypePurchase, "", nil)
		assert.ErrorIs(t, err, ErrInvalidAmount)
		_, err = f.domain.Credit(ctx, userID, -5, model.TransactionTypePurchase, "", nil)
		assert.ErrorIs(t, err, ErrInvalidAmount)
		assert.Empty(t, f.publisher.types())
	})

	t.Run("rejects usage kind", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.domain.Credit(ctx, uuid.New(), 5, model.TransactionTypeUsage, "", nil)
		assert.ErrorIs(t, err, ErrInvalidKind)
	})
}

func TestLedgerDomain_Debit(t *testing.T) {
	ctx := context.Background()

	t.Run("spends bonus before paid", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.New()
		_, err := f.domain.Credit(ctx, userID, 10, model.TransactionTypePurchase, "", nil)
		require.NoError(t, err)
		_, err = f.domain.Credit(ctx, userID, 5, model.TransactionTypeBonus, "", nil)
		require.NoError(t, err)

		total, err := f.domain.Debit(ctx, userID, 7, "Image generation")
		require.NoError(t, err)
		assert.Equal(t, int64(8), total)

		b := f.balance(t, userID)
		assert.Equal(t, int64(8), b.PaidCredits)
		assert.Equal(t, int64(0), b.BonusCredits)

		entries, _, err := f.domain.ListTransactions(ctx, userID, 1, 0)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, model.TransactionTypeUsage, entries[0].Type)
		assert.Equal(t, int64(-7), entries[0].Amount)
		assert.Equal(t, int64(8), entries[0].BalanceAfter)
	})

	t.Run("insufficient credits leaves state untouched", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.New()
		_, err := f.domain.Credit(ctx, userID, 2, model.TransactionTypePurchase, "", nil)
		require.NoError(t, err)

		_, err = f.domain.Debit(ctx, userID, 3, "")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInsufficientCredits)

		var insufficient *InsufficientCreditsError
		require.True(t, errors.As(err, &insufficient))
		assert.Equal(t, int64(3), insufficient.Required)
		assert.Equal(t, int64(2), insufficient.Available)

		assert.Equal(t, int64(2), f.balance(t, userID).Total)
		_, count, err := f.domain.ListTransactions(ctx, userID, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
		assert.Equal(t, []string{events.CreditsCreditedType}, f.publisher.types())
	})

	t.Run("exact balance drains to zero", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.New()
		_, err := f.domain.Credit(ctx, userID, 3, model.TransactionTypeBonus, "", nil)
		require.NoError(t, err)

		total, err := f.domain.Debit(ctx, userID, 3, "")
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.domain.Debit(ctx, uuid.New(), 0, "")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("lock failure is returned", func(t *testing.T) {
		store := memory.New()
		balanceDB := new(MockBalanceDB)
		d := NewLedgerDomain(store.TxManager(), balanceDB, memory.NewCreditTransactionAdapter(store), nil, nil, nil, zap.NewNop())
		userID := uuid.New()

		balanceDB.On("GetOrCreateForUpdate", mock.Anything, userID, mock.Anything).Return(nil, errors.New("connection reset"))

		_, err := d.Debit(ctx, userID, 1, "")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrInsufficientCredits)
		balanceDB.AssertExpectations(t)
	})
}

func TestLedgerDomain_Refund(t *testing.T) {
	ctx := context.Background()

	t.Run("removes paid credits", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.New()
		_, err := f.domain.Credit(ctx, userID, 25, model.TransactionTypePurchase, "", nil)
		require.NoError(t, err)
		_, err = f.domain.Credit(ctx, userID, 5, model.TransactionTypeBonus, "", nil)
		require.NoError(t, err)

		total, err := f.domain.Refund(ctx, userID, 10, nil, "Refund")
		require.NoError(t, err)
		assert.Equal(t, int64(20), total)

		b := f.balance(t, userID)
		assert.Equal(t, int64(15), b.PaidCredits)
		assert.Equal(t, int64(5), b.BonusCredits)
	})

	t.Run("clamps at zero and logs the applied delta", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.New()
		_, err := f.domain.Credit(ctx, userID, 4, model.TransactionTypePurchase, "", nil)
		require.NoError(t, err)
		_, err = f.domain.Credit(ctx, userID, 6, model.TransactionTypeBonus, "", nil)
		require.NoError(t, err)

		total, err := f.domain.Refund(ctx, userID, 25, nil, "")
		require.NoError(t, err)
		assert.Equal(t, int64(6), total)

		entries, _, err := f.domain.ListTransactions(ctx, userID, 1, 0)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, model.TransactionTypeRefund, entries[0].Type)
		assert.Equal(t, int64(-4), entries[0].Amount)

		report, err := f.domain.VerifyReplay(ctx, userID)
		require.NoError(t, err)
		assert.True(t, report.Consistent)
	})

	t.Run("refund without paid credits logs zero", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.New()

		total, err := f.domain.Refund(ctx, userID, 10, nil, "")
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)

		entries, _, err := f.domain.ListTransactions(ctx, userID, 0, 0)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, int64(0), entries[0].Amount)
	})
}

func TestLedgerDomain_ClaimFreeCredit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()

	for want := 2; want >= 0; want-- {
		granted, remaining, err := f.domain.ClaimFreeCredit(ctx, userID)
		require.NoError(t, err)
		assert.True(t, granted)
		assert.Equal(t, want, remaining)
	}

	granted, remaining, err := f.domain.ClaimFreeCredit(ctx, userID)
	require.NoError(t, err)
	assert.False(t, granted)
	assert.Equal(t, 0, remaining)

	// Next calendar day resets the allowance.
	*f.now = f.now.Add(24 * time.Hour)
	granted, remaining, err = f.domain.ClaimFreeCredit(ctx, userID)
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Equal(t, 2, remaining)

	// Free claims never touch the spendable balance or the log.
	assert.Equal(t, int64(0), f.balance(t, userID).Total)
	_, count, err := f.domain.ListTransactions(ctx, userID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestLedgerDomain_GetBalance_UnknownUser(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	b := f.balance(t, userID)
	assert.Equal(t, userID, b.UserID)
	assert.Equal(t, int64(0), b.Total)
}

func TestLedgerDomain_VerifyReplay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()

	_, err := f.domain.Credit(ctx, userID, 25, model.TransactionTypePurchase, "", nil)
	require.NoError(t, err)
	_, err = f.domain.Credit(ctx, userID, 10, model.TransactionTypeBonus, "", nil)
	require.NoError(t, err)
	_, err = f.domain.Debit(ctx, userID, 12, "")
	require.NoError(t, err)
	_, err = f.domain.Refund(ctx, userID, 5, nil, "")
	require.NoError(t, err)

	report, err := f.domain.VerifyReplay(ctx, userID)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, 4, report.TransactionCount)
	assert.Equal(t, int64(18), report.ReplayedTotal)
	assert.Equal(t, int64(18), report.LiveTotal)
}

func TestLedgerDomain_ConcurrentDebits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()

	_, err := f.domain.Credit(ctx, userID, 10, model.TransactionTypePurchase, "", nil)
	require.NoError(t, err)

	var (
		wg           sync.WaitGroup
		succeeded    atomic.Int64
		insufficient atomic.Int64
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.domain.Debit(ctx, userID, 1, "")
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, ErrInsufficientCredits):
				insufficient.Add(1)
			}
		}()
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.domain.Credit(ctx, userID, 1, model.TransactionTypeBonus, "", nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(25), succeeded.Load()+insufficient.Load())
	assert.Equal(t, 15-succeeded.Load(), f.balance(t, userID).Total)

	report, err := f.domain.VerifyReplay(ctx, userID)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
}

func TestLedgerDomain_DebitOrdering(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()

	_, err := f.domain.Credit(ctx, userID, 5, model.TransactionTypePurchase, "", nil)
	require.NoError(t, err)
	_, err = f.domain.Credit(ctx, userID, 3, model.TransactionTypeBonus, "", nil)
	require.NoError(t, err)

	_, err = f.domain.Debit(ctx, userID, 4, "")
	require.NoError(t, err)

	b := f.balance(t, userID)
	assert.Equal(t, int64(0), b.BonusCredits)
	assert.Equal(t, int64(4), b.PaidCredits)
}

func TestLedgerDomain_NonNegativity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()

	ops := []struct {
		credit bool
		kind   model.TransactionType
		amount int64
	}{
		{true, model.TransactionTypeBonus, 2},
		{false, "", 3},
		{true, model.TransactionTypePurchase, 4},
		{false, "", 5},
		{false, "", 1},
		{true, model.TransactionTypeBonus, 1},
		{false, "", 2},
	}

	for _, op := range ops {
		if op.credit {
			_, err := f.domain.Credit(ctx, userID, op.amount, op.kind, "", nil)
			require.NoError(t, err)
		} else {
			_, _ = f.domain.Debit(ctx, userID, op.amount, "")
		}
		b := f.balance(t, userID)
		assert.GreaterOrEqual(t, b.PaidCredits, int64(0))
		assert.GreaterOrEqual(t, b.BonusCredits, int64(0))
	}

	report, err := f.domain.VerifyReplay(ctx, userID)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
}
