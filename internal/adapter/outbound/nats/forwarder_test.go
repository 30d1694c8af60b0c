package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/l2laihub/creditengine/internal/infra/events"
	"github.com/l2laihub/creditengine/internal/utils/requestctx"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockConn struct {
	mock.Mock
}

func (m *MockConn) PublishMsg(msg *nats.Msg) error {
	args := m.Called(msg)
	return args.Error(0)
}

func onSubject(subject string) any {
	return mock.MatchedBy(func(msg *nats.Msg) bool { return msg.Subject == subject })
}

func TestEventForwarder_Handle(t *testing.T) {
	conn := new(MockConn)
	fwd := NewEventForwarder(NewBus(conn), "creditengine", zap.NewNop())
	userID := uuid.New()
	event := events.NewCreditsDebitedEvent(userID, "usage", 4, 6)

	var sent *nats.Msg
	conn.On("PublishMsg", onSubject("creditengine.credits.debited")).
		Run(func(args mock.Arguments) { sent = args.Get(0).(*nats.Msg) }).
		Return(nil)

	ctx := requestctx.WithRequestID(context.Background(), "req-42")
	require.NoError(t, fwd.Handle(ctx, event))
	conn.AssertExpectations(t)

	assert.Equal(t, "req-42", sent.Header.Get(RequestIDHeader))
	assert.Equal(t, "creditengine.credits.debited", sent.Subject)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(sent.Data, &decoded))
	assert.Equal(t, "credits.debited", decoded["type"])
	assert.Equal(t, userID.String(), decoded["aggregate_id"])
}

func TestEventForwarder_ThroughBus(t *testing.T) {
	conn := new(MockConn)
	conn.On("PublishMsg", onSubject("creditengine.payment.failed")).Return(errors.New("nats: connection closed"))
	conn.On("PublishMsg", onSubject("creditengine.referral.completed")).Return(nil)

	bus := events.NewBus(zap.NewNop())
	bus.Register(NewEventForwarder(NewBus(conn), "creditengine", zap.NewNop()))

	failed := events.NewPaymentFailedEvent("stripe", "evt_1", "purchase", uuid.New(), "unknown price tier")
	assert.NoError(t, bus.Publish(context.Background(), failed))

	completed := events.NewReferralCompletedEvent(uuid.New(), uuid.New(), uuid.New(), 10, 20)
	assert.NoError(t, bus.Publish(context.Background(), completed))

	conn.AssertNumberOfCalls(t, "PublishMsg", 2)
}

func TestBus_CancelledContext(t *testing.T) {
	conn := new(MockConn)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewBus(conn).Publish(ctx, "creditengine.x", nil)
	assert.ErrorIs(t, err, context.Canceled)
	conn.AssertNotCalled(t, "PublishMsg", mock.Anything)
}

func TestEventForwarder_Subject(t *testing.T) {
	assert.Equal(t, "usage.admitted", NewEventForwarder(nil, "", zap.NewNop()).Subject("usage.admitted"))
	assert.Equal(t, "ce.usage.admitted", NewEventForwarder(nil, "ce", zap.NewNop()).Subject("usage.admitted"))
}
