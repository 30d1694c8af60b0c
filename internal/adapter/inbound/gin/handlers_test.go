package gin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"github.com/l2laihub/creditengine/internal/domain/ledger"
	"github.com/l2laihub/creditengine/internal/domain/payment"
	"github.com/l2laihub/creditengine/internal/domain/ratelimit"
	"github.com/l2laihub/creditengine/internal/domain/usage"
	"github.com/l2laihub/creditengine/internal/model"
	"github.com/l2laihub/creditengine/internal/port/outbound"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// --- Mocks ---

type MockLedgerDomain struct {
	mock.Mock
}

func (m *MockLedgerDomain) Credit(ctx context.Context, userID uuid.UUID, amount int64, kind model.TransactionType, description string, externalRef *string) (int64, error) {
	args := m.Called(ctx, userID, amount, kind, description, externalRef)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerDomain) Debit(ctx context.Context, userID uuid.UUID, amount int64, description string) (int64, error) {
	args := m.Called(ctx, userID, amount, description)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerDomain) Refund(ctx context.Context, userID uuid.UUID, amount int64, externalRef *string, description string) (int64, error) {
	args := m.Called(ctx, userID, amount, externalRef, description)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerDomain) ClaimFreeCredit(ctx context.Context, userID uuid.UUID) (bool, int, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Int(1), args.Error(2)
}

func (m *MockLedgerDomain) GetBalance(ctx context.Context, userID uuid.UUID) (*model.BalanceResponse, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BalanceResponse), args.Error(1)
}

func (m *MockLedgerDomain) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.CreditTransaction, int64, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]*model.CreditTransaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockLedgerDomain) VerifyReplay(ctx context.Context, userID uuid.UUID) (*model.ReplayReport, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReplayReport), args.Error(1)
}

type MockUsageDomain struct {
	mock.Mock
}

func (m *MockUsageDomain) ConsumeForUsage(ctx context.Context, req *model.ConsumeRequest) (*model.ConsumeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ConsumeResult), args.Error(1)
}

func (m *MockUsageDomain) CompleteUsage(ctx context.Context, usageID uuid.UUID, status model.UsageStatus, processingTimeMs int64, errMsg *string) (*model.UsageRecord, error) {
	args := m.Called(ctx, usageID, status, processingTimeMs, errMsg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UsageRecord), args.Error(1)
}

func (m *MockUsageDomain) GetUsage(ctx context.Context, usageID uuid.UUID) (*model.UsageRecord, error) {
	args := m.Called(ctx, usageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UsageRecord), args.Error(1)
}

type MockPaymentDomain struct {
	mock.Mock
}

func (m *MockPaymentDomain) ApplyEvent(ctx context.Context, event *model.PaymentEvent) (*model.ApplyResult, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ApplyResult), args.Error(1)
}

func (m *MockPaymentDomain) ListFailedEvents(ctx context.Context, limit int) ([]*model.WebhookEvent, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]*model.WebhookEvent), args.Error(1)
}

// --- Helpers ---

func performRequest(r http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp["error"].(map[string]any)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// --- Tests ---

func TestToAppError(t *testing.T) {
	resetAt := time.Now().Add(90 * time.Second)

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid amount", ledger.ErrInvalidAmount, http.StatusBadRequest, "BAD_REQUEST"},
		{"insufficient typed", fmt.Errorf("debit: %w", &ledger.InsufficientCreditsError{Required: 5, Available: 2}), http.StatusPaymentRequired, "INSUFFICIENT_CREDITS"},
		{"rate limited", &ratelimit.RateLimitedError{Reason: model.RateLimitReasonDaily, ResetAt: resetAt}, http.StatusTooManyRequests, "RATE_LIMITED"},
		{"usage not found", usage.ErrUsageNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"usage final", usage.ErrUsageAlreadyFinal, http.StatusConflict, "CONFLICT"},
		{"unsupported type", payment.ErrUnsupportedEventType, http.StatusBadRequest, "BAD_REQUEST"},
		{"unknown price", fmt.Errorf("%w: 1", payment.ErrUnknownPriceTier), http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"contention", fmt.Errorf("%w: %w", outbound.ErrPersistenceConflict, errors.New("40001")), http.StatusServiceUnavailable, "CONTENTION"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := toAppError(tt.err)
			assert.Equal(t, tt.status, appErr.StatusCode)
			assert.Equal(t, tt.code, appErr.Code)
		})
	}
}

func TestCreditsAdapter_Grant(t *testing.T) {
	t.Run("defaults to bonus", func(t *testing.T) {
		ledgerDomain := new(MockLedgerDomain)
		r := gin.New()
		RegisterCreditsRoutes(r.Group("/admin"), NewCreditsAdapter(ledgerDomain))

		userID := uuid.New()
		ledgerDomain.On("Credit", mock.Anything, userID, int64(15), model.TransactionTypeBonus, "promo", (*string)(nil)).
			Return(int64(15), nil)

		w := performRequest(r, http.MethodPost, "/admin/credits/grant",
			map[string]any{"user_id": userID, "amount": 15, "description": "promo"}, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp BalanceMutationResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, int64(15), resp.NewBalance)
		ledgerDomain.AssertExpectations(t)
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		ledgerDomain := new(MockLedgerDomain)
		r := gin.New()
		RegisterCreditsRoutes(r.Group("/admin"), NewCreditsAdapter(ledgerDomain))

		w := performRequest(r, http.MethodPost, "/admin/credits/grant",
			map[string]any{"user_id": uuid.New(), "amount": 0}, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		ledgerDomain.AssertNotCalled(t, "Credit")
	})

	t.Run("mutation middleware runs", func(t *testing.T) {
		ledgerDomain := new(MockLedgerDomain)
		r := gin.New()
		var called bool
		RegisterCreditsRoutes(r.Group("/admin"), NewCreditsAdapter(ledgerDomain), func(c *gin.Context) {
			called = true
			c.AbortWithStatus(http.StatusConflict)
		})

		w := performRequest(r, http.MethodPost, "/admin/credits/debit",
			map[string]any{"user_id": uuid.New(), "amount": 1}, nil)

		assert.True(t, called)
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestCreditsAdapter_Debit_Insufficient(t *testing.T) {
	ledgerDomain := new(MockLedgerDomain)
	r := gin.New()
	RegisterCreditsRoutes(r.Group("/admin"), NewCreditsAdapter(ledgerDomain))

	userID := uuid.New()
	ledgerDomain.On("Debit", mock.Anything, userID, int64(5), "").
		Return(int64(0), &ledger.InsufficientCreditsError{Required: 5, Available: 3})

	w := performRequest(r, http.MethodPost, "/admin/credits/debit",
		map[string]any{"user_id": userID, "amount": 5}, nil)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	details := errorBody(t, w)["details"].(map[string]any)
	assert.EqualValues(t, 5, details["required"])
	assert.EqualValues(t, 3, details["available"])
}

func TestCreditsAdapter_ListTransactions(t *testing.T) {
	ledgerDomain := new(MockLedgerDomain)
	r := gin.New()
	RegisterCreditsRoutes(r.Group("/admin"), NewCreditsAdapter(ledgerDomain))

	userID := uuid.New()
	txs := []*model.CreditTransaction{{ID: uuid.New(), UserID: userID, Type: model.TransactionTypeUsage, Amount: -1}}
	ledgerDomain.On("ListTransactions", mock.Anything, userID, 10, 10).Return(txs, int64(11), nil)

	w := performRequest(r, http.MethodGet, "/admin/credits/"+userID.String()+"/transactions?page=2&page_size=10", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp model.PaginatedResponse[model.CreditTransaction]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(11), resp.Total)
	assert.Equal(t, 2, resp.TotalPages)
	assert.Len(t, resp.Data, 1)
}

func TestCreditsAdapter_InvalidUserID(t *testing.T) {
	r := gin.New()
	RegisterCreditsRoutes(r.Group("/admin"), NewCreditsAdapter(new(MockLedgerDomain)))

	w := performRequest(r, http.MethodGet, "/admin/credits/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUsageAdapter_Consume(t *testing.T) {
	t.Run("admitted", func(t *testing.T) {
		usageDomain := new(MockUsageDomain)
		r := gin.New()
		RegisterUsageRoutes(r.Group(""), NewUsageAdapter(usageDomain))

		userID := uuid.New()
		result := &model.ConsumeResult{UsageID: uuid.New(), RemainingCredits: 7}
		usageDomain.On("ConsumeForUsage", mock.Anything, mock.MatchedBy(func(req *model.ConsumeRequest) bool {
			return req.UserID == userID && req.Resource == "image_generation" && req.CreditCost == 3
		})).Return(result, nil)

		w := performRequest(r, http.MethodPost, "/usage/consume",
			map[string]any{"user_id": userID, "resource": "image_generation", "credit_cost": 3}, nil)

		assert.Equal(t, http.StatusCreated, w.Code)
		usageDomain.AssertExpectations(t)
	})

	t.Run("rate limited sets Retry-After", func(t *testing.T) {
		now = func() time.Time { return time.Date(2026, 3, 10, 9, 15, 0, 0, time.UTC) }
		defer func() { now = time.Now }()

		usageDomain := new(MockUsageDomain)
		r := gin.New()
		RegisterUsageRoutes(r.Group(""), NewUsageAdapter(usageDomain))

		usageDomain.On("ConsumeForUsage", mock.Anything, mock.Anything).Return(nil, &ratelimit.RateLimitedError{
			Reason:  model.RateLimitReasonHourly,
			ResetAt: time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
		})

		w := performRequest(r, http.MethodPost, "/usage/consume",
			map[string]any{"user_id": uuid.New(), "resource": "image_generation", "credit_cost": 1}, nil)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "2700", w.Header().Get("Retry-After"))
		details := errorBody(t, w)["details"].(map[string]any)
		assert.Equal(t, "hourly_limit_exceeded", details["reason"])
		assert.Equal(t, "2026-03-10T10:00:00Z", details["reset_at"])
	})
}

func TestUsageAdapter_GetUsage_NotFound(t *testing.T) {
	usageDomain := new(MockUsageDomain)
	r := gin.New()
	RegisterUsageRoutes(r.Group(""), NewUsageAdapter(usageDomain))

	id := uuid.New()
	usageDomain.On("GetUsage", mock.Anything, id).Return(nil, usage.ErrUsageNotFound)

	w := performRequest(r, http.MethodGet, "/usage/"+id.String(), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentAdapter_ApplyEvent(t *testing.T) {
	paymentDomain := new(MockPaymentDomain)
	r := gin.New()
	RegisterPaymentRoutes(r.Group(""), NewPaymentAdapter(paymentDomain))

	userID := uuid.New()
	paymentDomain.On("ApplyEvent", mock.Anything, mock.MatchedBy(func(e *model.PaymentEvent) bool {
		return e.EventID == "evt_1" && e.UserID == userID && e.AmountMinor == 999
	})).Return(&model.ApplyResult{Applied: true, Credits: 25, NewBalance: 25}, nil)

	w := performRequest(r, http.MethodPost, "/payments/events",
		map[string]any{"event_id": "evt_1", "type": "purchase", "user_id": userID, "amount_minor": 999}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var result model.ApplyResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Applied)
	assert.Equal(t, int64(25), result.Credits)
}

func TestWebhookAdapter_HandleStripeWebhook(t *testing.T) {
	const secret = "whsec_test"
	userID := uuid.New()

	signed := func(t *testing.T, payload string) (string, []byte) {
		t.Helper()
		sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
			Payload:   []byte(payload),
			Secret:    secret,
			Timestamp: time.Now(),
		})
		return sp.Header, sp.Payload
	}

	setup := func() (*gin.Engine, *MockPaymentDomain) {
		paymentDomain := new(MockPaymentDomain)
		r := gin.New()
		RegisterWebhookRoutes(r.Group(""), NewWebhookAdapter(paymentDomain, secret, zap.NewNop()))
		return r, paymentDomain
	}

	t.Run("payment intent succeeded", func(t *testing.T) {
		r, paymentDomain := setup()
		payload := fmt.Sprintf(`{"id":"evt_123","object":"event","type":"payment_intent.succeeded",
			"data":{"object":{"id":"pi_1","object":"payment_intent","amount":999,"amount_received":999,
			"metadata":{"user_id":%q}}}}`, userID)
		header, body := signed(t, payload)

		paymentDomain.On("ApplyEvent", mock.Anything, &model.PaymentEvent{
			Provider: "stripe", EventID: "pi_1", Type: model.PaymentEventPurchase, UserID: userID, AmountMinor: 999,
		}).Return(&model.ApplyResult{Applied: true, Credits: 25}, nil)

		w := performRequest(r, http.MethodPost, "/webhooks/stripe", body, map[string]string{"Stripe-Signature": header})

		assert.Equal(t, http.StatusOK, w.Code)
		paymentDomain.AssertExpectations(t)
	})

	t.Run("checkout session completed", func(t *testing.T) {
		r, paymentDomain := setup()
		payload := fmt.Sprintf(`{"id":"evt_cs","object":"event","type":"checkout.session.completed",
			"data":{"object":{"id":"cs_1","object":"checkout.session","amount_total":999,
			"payment_status":"paid","payment_intent":"pi_1","metadata":{"user_id":%q}}}}`, userID)
		header, body := signed(t, payload)

		// Same key as the payment_intent.succeeded for this purchase.
		paymentDomain.On("ApplyEvent", mock.Anything, &model.PaymentEvent{
			Provider: "stripe", EventID: "pi_1", Type: model.PaymentEventPurchase, UserID: userID, AmountMinor: 999,
		}).Return(&model.ApplyResult{Applied: true, Credits: 25}, nil)

		w := performRequest(r, http.MethodPost, "/webhooks/stripe", body, map[string]string{"Stripe-Signature": header})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, decodeBody(t, w)["applied"])
		paymentDomain.AssertExpectations(t)
	})

	t.Run("unpaid checkout session acknowledged", func(t *testing.T) {
		r, paymentDomain := setup()
		payload := fmt.Sprintf(`{"id":"evt_cs2","object":"event","type":"checkout.session.completed",
			"data":{"object":{"id":"cs_2","object":"checkout.session","amount_total":999,
			"payment_status":"unpaid","metadata":{"user_id":%q}}}}`, userID)
		header, body := signed(t, payload)

		w := performRequest(r, http.MethodPost, "/webhooks/stripe", body, map[string]string{"Stripe-Signature": header})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, false, decodeBody(t, w)["applied"])
		paymentDomain.AssertNotCalled(t, "ApplyEvent")
	})

	t.Run("charge refunded", func(t *testing.T) {
		r, paymentDomain := setup()
		payload := fmt.Sprintf(`{"id":"evt_456","object":"event","type":"charge.refunded",
			"data":{"object":{"id":"ch_1","object":"charge","amount":999,"amount_refunded":999,
			"metadata":{"user_id":%q}}}}`, userID)
		header, body := signed(t, payload)

		paymentDomain.On("ApplyEvent", mock.Anything, mock.MatchedBy(func(e *model.PaymentEvent) bool {
			return e.Type == model.PaymentEventRefund && e.AmountMinor == 999 && e.EventID == "evt_456"
		})).Return(&model.ApplyResult{Applied: true, Credits: 25}, nil)

		w := performRequest(r, http.MethodPost, "/webhooks/stripe", body, map[string]string{"Stripe-Signature": header})

		assert.Equal(t, http.StatusOK, w.Code)
		paymentDomain.AssertExpectations(t)
	})

	t.Run("bad signature", func(t *testing.T) {
		r, paymentDomain := setup()

		w := performRequest(r, http.MethodPost, "/webhooks/stripe", []byte(`{"id":"evt_1"}`),
			map[string]string{"Stripe-Signature": "t=1,v1=deadbeef"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_SIGNATURE", errorBody(t, w)["code"])
		paymentDomain.AssertNotCalled(t, "ApplyEvent")
	})

	t.Run("irrelevant event acknowledged", func(t *testing.T) {
		r, paymentDomain := setup()
		header, body := signed(t, `{"id":"evt_789","object":"event","type":"customer.created","data":{"object":{"id":"cus_1"}}}`)

		w := performRequest(r, http.MethodPost, "/webhooks/stripe", body, map[string]string{"Stripe-Signature": header})

		assert.Equal(t, http.StatusOK, w.Code)
		paymentDomain.AssertNotCalled(t, "ApplyEvent")
	})
}
