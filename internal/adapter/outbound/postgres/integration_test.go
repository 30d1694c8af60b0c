package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/l2laihub/creditengine/internal/domain/ledger"
	"github.com/l2laihub/creditengine/internal/infra/persistence"
	"github.com/l2laihub/creditengine/internal/model"
	"github.com/l2laihub/creditengine/internal/port/outbound"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// openTestDB connects to CREDITENGINE_TEST_DSN and applies migrations.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("CREDITENGINE_TEST_DSN")
	if dsn == "" {
		t.Skip("CREDITENGINE_TEST_DSN not set")
	}

	ctx := context.Background()
	require.NoError(t, persistence.RunMigrations(ctx, dsn, "up", zap.NewNop()))

	db, err := gorm.Open(pgdriver.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError:         true,
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newLedger(db *gorm.DB) *ledger.Domain {
	txm := NewTxManager(db, TxOptions{MaxRetries: 5, BaseDelay: 5 * time.Millisecond}, nil, zap.NewNop())
	return ledger.NewLedgerDomain(
		txm,
		NewCreditBalanceAdapter(db),
		NewCreditTransactionAdapter(db),
		nil,
		nil,
		nil,
		zap.NewNop(),
	)
}

func TestPostgres_ConcurrentDebits(t *testing.T) {
	db := openTestDB(t)
	l := newLedger(db)
	ctx := context.Background()
	userID := uuid.New()

	_, err := l.Credit(ctx, userID, 10, model.TransactionTypePurchase, "seed", nil)
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Debit(ctx, userID, 1, "generation"); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, admitted)
	bal, err := l.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal.Total)

	report, err := l.VerifyReplay(ctx, userID)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, 11, report.TransactionCount)
}

func TestPostgres_RollbackLeavesNoTrace(t *testing.T) {
	db := openTestDB(t)
	txm := NewTxManager(db, TxOptions{}, nil, zap.NewNop())
	balances := NewCreditBalanceAdapter(db)
	ctx := context.Background()
	userID := uuid.New()
	boom := errors.New("boom")

	var hookRan bool
	err := txm.WithinTx(ctx, func(ctx context.Context) error {
		bal, err := balances.GetOrCreateForUpdate(ctx, userID, time.Now().UTC())
		require.NoError(t, err)
		bal.PaidCredits = 50
		require.NoError(t, balances.Update(ctx, bal))
		txm.AfterCommit(ctx, func(context.Context) { hookRan = true })
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.False(t, hookRan)
	got, err := balances.Get(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPostgres_WebhookDuplicate(t *testing.T) {
	db := openTestDB(t)
	adapter := NewWebhookEventAdapter(db)
	ctx := context.Background()
	eventID := "evt_" + uuid.NewString()

	first := &model.WebhookEvent{
		ID: uuid.New(), Provider: "stripe", EventID: eventID,
		EventType: model.PaymentEventPurchase, UserID: uuid.New(), AmountMinor: 1000,
	}
	require.NoError(t, adapter.Create(ctx, first))

	second := *first
	second.ID = uuid.New()
	assert.ErrorIs(t, adapter.Create(ctx, &second), outbound.ErrDuplicate)

	require.NoError(t, adapter.MarkProcessed(ctx, first.ID, errors.New("unknown price")))
	failed, err := adapter.ListFailed(ctx, time.Now().Add(-time.Hour), 500)
	require.NoError(t, err)

	var found bool
	for _, e := range failed {
		if e.ID == first.ID {
			found = true
			require.NotNil(t, e.Error)
			assert.Equal(t, "unknown price", *e.Error)
		}
	}
	assert.True(t, found)
}

func TestPostgres_RateTrackingLazyCreate(t *testing.T) {
	db := openTestDB(t)
	txm := NewTxManager(db, TxOptions{}, nil, zap.NewNop())
	tracking := NewRateTrackingAdapter(db)
	ctx := context.Background()
	hour := time.Now().UTC().Truncate(time.Hour)
	seed := &model.RateTracking{
		Identifier:       uuid.NewString(),
		Resource:         "image_generation",
		LastHourlyReset:  hour,
		LastDailyReset:   hour,
		LastMonthlyReset: hour,
	}

	for i := 0; i < 2; i++ {
		err := txm.WithinTx(ctx, func(ctx context.Context) error {
			tr, err := tracking.GetOrCreateForUpdate(ctx, seed)
			if err != nil {
				return err
			}
			tr.HourlyCount++
			tr.UpdatedAt = time.Now()
			return tracking.Update(ctx, tr)
		})
		require.NoError(t, err)
	}

	tr, err := tracking.Get(ctx, seed.Identifier, seed.Resource)
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.Equal(t, 2, tr.HourlyCount)

	require.NoError(t, tracking.Delete(ctx, seed.Identifier, seed.Resource))
	tr, err = tracking.Get(ctx, seed.Identifier, seed.Resource)
	require.NoError(t, err)
	assert.Nil(t, tr)
}

func TestPostgres_ReferralOldestPending(t *testing.T) {
	db := openTestDB(t)
	adapter := NewReferralAdapter(db)
	ctx := context.Background()
	referrer := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)

	older := &model.Referral{ID: uuid.New(), ReferrerUserID: referrer, ReferredEmail: "a@example.com", Status: model.ReferralStatusPending, CreatedAt: base}
	newer := &model.Referral{ID: uuid.New(), ReferrerUserID: referrer, ReferredEmail: "b@example.com", Status: model.ReferralStatusPending, CreatedAt: base.Add(time.Minute)}
	require.NoError(t, adapter.Create(ctx, newer))
	require.NoError(t, adapter.Create(ctx, older))

	got, err := adapter.LockOldestPending(ctx, referrer)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, older.ID, got.ID)
}

func TestPostgres_ReferredUserUnique(t *testing.T) {
	db := openTestDB(t)
	adapter := NewReferralAdapter(db)
	ctx := context.Background()
	referrer, referred := uuid.New(), uuid.New()

	first := &model.Referral{ID: uuid.New(), ReferrerUserID: referrer, ReferredEmail: "c@example.com", Status: model.ReferralStatusPending, CreatedAt: time.Now().UTC()}
	second := &model.Referral{ID: uuid.New(), ReferrerUserID: referrer, ReferredEmail: "d@example.com", Status: model.ReferralStatusPending, CreatedAt: time.Now().UTC()}
	require.NoError(t, adapter.Create(ctx, first))
	require.NoError(t, adapter.Create(ctx, second))

	exists, err := adapter.ExistsForReferredUser(ctx, referred)
	require.NoError(t, err)
	assert.False(t, exists)

	first.Status = model.ReferralStatusCompleted
	first.ReferredUserID = &referred
	require.NoError(t, adapter.Update(ctx, first))

	exists, err = adapter.ExistsForReferredUser(ctx, referred)
	require.NoError(t, err)
	assert.True(t, exists)

	second.Status = model.ReferralStatusCompleted
	second.ReferredUserID = &referred
	assert.ErrorIs(t, adapter.Update(ctx, second), outbound.ErrDuplicate)
}
