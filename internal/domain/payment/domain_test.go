package payment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/l2laihub/creditengine/internal/adapter/outbound/memory"
	"github.com/l2laihub/creditengine/internal/domain/ledger"
	"github.com/l2laihub/creditengine/internal/infra/events"
	"github.com/l2laihub/creditengine/internal/model"
	"github.com/l2laihub/creditengine/internal/port/inbound"
	"github.com/l2laihub/creditengine/internal/port/outbound"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Mock implementations ---

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Credit(ctx context.Context, userID uuid.UUID, amount int64, kind model.TransactionType, description string, externalRef *string) (int64, error) {
	args := m.Called(ctx, userID, amount, kind, description, externalRef)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedger) Debit(ctx context.Context, userID uuid.UUID, amount int64, description string) (int64, error) {
	args := m.Called(ctx, userID, amount, description)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedger) Refund(ctx context.Context, userID uuid.UUID, amount int64, externalRef *string, description string) (int64, error) {
	args := m.Called(ctx, userID, amount, externalRef, description)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedger) ClaimFreeCredit(ctx context.Context, userID uuid.UUID) (bool, int, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Int(1), args.Error(2)
}

func (m *MockLedger) GetBalance(ctx context.Context, userID uuid.UUID) (*model.BalanceResponse, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BalanceResponse), args.Error(1)
}

func (m *MockLedger) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.CreditTransaction, int64, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*model.CreditTransaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockLedger) VerifyReplay(ctx context.Context, userID uuid.UUID) (*model.ReplayReport, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReplayReport), args.Error(1)
}

type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, event.EventType())
	return nil
}

type fixture struct {
	domain    inbound.PaymentDomain
	ledger    inbound.LedgerDomain
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	publisher := &recordingPublisher{}
	ledgerDomain := ledger.NewLedgerDomain(
		store.TxManager(),
		memory.NewCreditBalanceAdapter(store),
		memory.NewCreditTransactionAdapter(store),
		publisher,
		nil,
		nil,
		zap.NewNop(),
	)
	return &fixture{
		domain:    NewPaymentDomain(store.TxManager(), memory.NewWebhookEventAdapter(store), ledgerDomain, publisher, nil, zap.NewNop()),
		ledger:    ledgerDomain,
		publisher: publisher,
	}
}

func purchase(eventID string, userID uuid.UUID, amount int64) *model.PaymentEvent {
	return &model.PaymentEvent{Provider: "stripe", EventID: eventID, Type: model.PaymentEventPurchase, UserID: userID, AmountMinor: amount}
}

// --- Tests ---

func TestCreditsForAmount(t *testing.T) {
	tests := []struct {
		amount  int64
		credits int64
	}{
		{499, 10},
		{999, 25},
		{1999, 60},
		{4999, 175},
	}
	for _, tt := range tests {
		credits, err := CreditsForAmount(tt.amount)
		require.NoError(t, err)
		assert.Equal(t, tt.credits, credits)
	}

	_, err := CreditsForAmount(500)
	assert.ErrorIs(t, err, ErrUnknownPriceTier)
}

func TestPaymentDomain_ApplyEvent_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()

	result, err := f.domain.ApplyEvent(ctx, purchase("evt_1", userID, 999))
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, int64(25), result.Credits)
	assert.Equal(t, int64(25), result.NewBalance)

	for i := 0; i < 2; i++ {
		result, err = f.domain.ApplyEvent(ctx, purchase("evt_1", userID, 999))
		require.NoError(t, err)
		assert.False(t, result.Applied)
	}

	balance, err := f.ledger.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(25), balance.PaidCredits)

	txs, count, err := f.ledger.ListTransactions(ctx, userID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	require.NotNil(t, txs[0].ExternalRef)
	assert.Equal(t, "evt_1", *txs[0].ExternalRef)

	assert.Equal(t, []string{events.CreditsCreditedType, events.PaymentAppliedType}, f.publisher.types)
}

func TestPaymentDomain_ApplyEvent_ConcurrentRedelivery(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()

	var (
		wg      sync.WaitGroup
		applied atomic.Int64
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.domain.ApplyEvent(ctx, purchase("evt_race", userID, 499))
			if err == nil && result.Applied {
				applied.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), applied.Load())
	balance, err := f.ledger.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance.Total)
}

func TestPaymentDomain_ApplyEvent_Refund(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()

	_, err := f.domain.ApplyEvent(ctx, purchase("evt_buy", userID, 1999))
	require.NoError(t, err)

	result, err := f.domain.ApplyEvent(ctx, &model.PaymentEvent{
		EventID: "evt_refund", Type: model.PaymentEventRefund, UserID: userID, AmountMinor: 999,
	})
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, int64(35), result.NewBalance)
}

func TestPaymentDomain_ApplyEvent_UnknownPrice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()

	_, err := f.domain.ApplyEvent(ctx, purchase("evt_odd", userID, 1234))
	assert.ErrorIs(t, err, ErrUnknownPriceTier)

	failed, err := f.domain.ListFailedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "evt_odd", failed[0].EventID)
	assert.False(t, failed[0].Success)
	require.NotNil(t, failed[0].Error)
	assert.Contains(t, *failed[0].Error, "unknown price tier")

	// Failed events are not retried on redelivery.
	result, err := f.domain.ApplyEvent(ctx, purchase("evt_odd", userID, 1234))
	require.NoError(t, err)
	assert.False(t, result.Applied)

	balance, err := f.ledger.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.Total)
	assert.Equal(t, []string{events.PaymentFailedType}, f.publisher.types)
}

func TestPaymentDomain_ApplyEvent_LedgerFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	webhookDB := memory.NewWebhookEventAdapter(store)
	mockLedger := new(MockLedger)
	d := NewPaymentDomain(store.TxManager(), webhookDB, mockLedger, nil, nil, zap.NewNop())
	userID := uuid.New()

	mockLedger.On("Credit", mock.Anything, userID, int64(25), model.TransactionTypePurchase, mock.Anything, mock.Anything).
		Return(int64(0), errors.New("connection reset"))

	_, err := d.ApplyEvent(ctx, purchase("evt_2", userID, 999))
	require.Error(t, err)

	failed, err := webhookDB.ListFailed(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "connection reset", *failed[0].Error)
	mockLedger.AssertExpectations(t)
}

// brokenStatusDB records events but cannot update their status.
type brokenStatusDB struct {
	outbound.WebhookEventDatabasePort
}

func (brokenStatusDB) MarkProcessed(context.Context, uuid.UUID, error) error {
	return errors.New("db down")
}

func TestPaymentDomain_ApplyEvent_UnmarkedFailureIsListed(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	webhookDB := brokenStatusDB{memory.NewWebhookEventAdapter(store)}
	mockLedger := new(MockLedger)
	d := NewPaymentDomain(store.TxManager(), webhookDB, mockLedger, nil, nil, zap.NewNop()).(*paymentDomain)
	now := time.Now()
	d.clock = func() time.Time { return now }
	userID := uuid.New()

	mockLedger.On("Credit", mock.Anything, userID, int64(25), model.TransactionTypePurchase, mock.Anything, mock.Anything).
		Return(int64(0), errors.New("db down")).Once()

	_, err := d.ApplyEvent(ctx, purchase("evt_lost", userID, 999))
	require.Error(t, err)

	result, err := d.ApplyEvent(ctx, purchase("evt_lost", userID, 999))
	require.NoError(t, err)
	assert.False(t, result.Applied)

	// Within the grace period the event may still be in flight.
	failed, err := d.ListFailedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, failed)

	now = now.Add(defaultPendingGrace + time.Second)
	failed, err = d.ListFailedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "evt_lost", failed[0].EventID)
	assert.False(t, failed[0].Processed)
	mockLedger.AssertExpectations(t)
}

func TestPaymentDomain_ApplyEvent_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()

	tests := []struct {
		name    string
		event   *model.PaymentEvent
		wantErr error
	}{
		{"nil", nil, ErrInvalidEvent},
		{"missing event id", purchase("", userID, 999), ErrInvalidEvent},
		{"missing user", purchase("evt", uuid.Nil, 999), ErrInvalidEvent},
		{"zero amount", purchase("evt", userID, 0), ErrInvalidEvent},
		{"unsupported type", &model.PaymentEvent{EventID: "evt", Type: "chargeback", UserID: userID, AmountMinor: 999}, ErrUnsupportedEventType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.domain.ApplyEvent(ctx, tt.event)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	failed, err := f.domain.ListFailedEvents(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, failed, "rejected events are not recorded")
}
