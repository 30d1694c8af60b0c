package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/l2laihub/creditengine/internal/infra/events"
	"github.com/l2laihub/creditengine/internal/model"
	"github.com/l2laihub/creditengine/internal/port/inbound"
	"github.com/l2laihub/creditengine/internal/port/outbound"
	"github.com/l2laihub/creditengine/internal/utils/metrics"
	"go.uber.org/zap"
)

// DefaultProvider is used when an event does not name its gateway.
const DefaultProvider = "stripe"

const maxFailedEvents = 200

// defaultPendingGrace is how long an event may stay unprocessed before it is
// listed for reconciliation. A crash or a failed status update between
// recording and applying leaves the row in that state.
const defaultPendingGrace = 10 * time.Minute

// paymentDomain applies gateway events to the ledger at most once.
type paymentDomain struct {
	txm       outbound.TxManagerPort
	webhookDB outbound.WebhookEventDatabasePort
	ledger    inbound.LedgerDomain
	publisher outbound.EventPublisherPort
	metrics   *metrics.Metrics
	logger    *zap.Logger

	clock        func() time.Time
	pendingGrace time.Duration
}

// NewPaymentDomain creates a new payment domain service.
func NewPaymentDomain(
	txm outbound.TxManagerPort,
	webhookDB outbound.WebhookEventDatabasePort,
	ledger inbound.LedgerDomain,
	publisher outbound.EventPublisherPort,
	m *metrics.Metrics,
	logger *zap.Logger,
) inbound.PaymentDomain {
	return &paymentDomain{
		txm:       txm,
		webhookDB: webhookDB,
		ledger:    ledger,
		publisher: publisher,
		metrics:   m,
		logger:    logger,

		clock:        time.Now,
		pendingGrace: defaultPendingGrace,
	}
}

// ApplyEvent records the event and applies it to the ledger. A redelivered
// event returns Applied=false without touching any balance. A ledger failure
// leaves the event recorded as failed for manual reconciliation; it is never
// retried here.
func (d *paymentDomain) ApplyEvent(ctx context.Context, event *model.PaymentEvent) (*model.ApplyResult, error) {
	if event == nil {
		return nil, ErrInvalidEvent
	}
	if err := validate(event); err != nil {
		d.metrics.RecordPaymentEvent(event.Provider, event.Type.String(), "invalid")
		return nil, err
	}

	record := &model.WebhookEvent{
		ID:          uuid.New(),
		Provider:    event.Provider,
		EventID:     event.EventID,
		EventType:   event.Type,
		UserID:      event.UserID,
		AmountMinor: event.AmountMinor,
		CreatedAt:   d.clock(),
	}
	if err := d.webhookDB.Create(ctx, record); err != nil {
		if errors.Is(err, outbound.ErrDuplicate) {
			d.logger.Info("payment event already recorded, skipping",
				zap.String("provider", event.Provider),
				zap.String("event_id", event.EventID),
			)
			d.metrics.RecordPaymentEvent(event.Provider, event.Type.String(), "duplicate")
			return &model.ApplyResult{Applied: false}, nil
		}
		return nil, fmt.Errorf("record payment event: %w", err)
	}

	result, applyErr := d.apply(ctx, record)
	if applyErr != nil {
		if err := d.webhookDB.MarkProcessed(ctx, record.ID, applyErr); err != nil {
			d.logger.Error("failed to mark payment event failed",
				zap.String("event_id", record.EventID),
				zap.Error(err),
			)
		}
		d.logger.Error("payment event failed",
			zap.String("provider", record.Provider),
			zap.String("event_id", record.EventID),
			zap.String("type", record.EventType.String()),
			zap.String("user_id", record.UserID.String()),
			zap.Error(applyErr),
		)
		d.metrics.RecordPaymentEvent(record.Provider, record.EventType.String(), "failed")
		d.publish(ctx, events.NewPaymentFailedEvent(record.Provider, record.EventID, record.EventType.String(), record.UserID, applyErr.Error()))
		return nil, applyErr
	}

	d.logger.Info("payment event applied",
		zap.String("provider", record.Provider),
		zap.String("event_id", record.EventID),
		zap.String("type", record.EventType.String()),
		zap.String("user_id", record.UserID.String()),
		zap.Int64("credits", result.Credits),
		zap.Int64("balance", result.NewBalance),
	)
	d.metrics.RecordPaymentEvent(record.Provider, record.EventType.String(), "applied")
	return result, nil
}

// apply moves the credits and marks the record successful in one transaction.
func (d *paymentDomain) apply(ctx context.Context, record *model.WebhookEvent) (*model.ApplyResult, error) {
	credits, err := CreditsForAmount(record.AmountMinor)
	if err != nil {
		return nil, fmt.Errorf("%w: %d", err, record.AmountMinor)
	}

	result := &model.ApplyResult{Applied: true, Credits: credits}
	err = d.txm.WithinTx(ctx, func(ctx context.Context) error {
		ref := record.EventID
		var balance int64
		var err error
		switch record.EventType {
		case model.PaymentEventPurchase:
			balance, err = d.ledger.Credit(ctx, record.UserID, credits, model.TransactionTypePurchase,
				fmt.Sprintf("Purchased %d credits", credits), &ref)
		case model.PaymentEventRefund:
			balance, err = d.ledger.Refund(ctx, record.UserID, credits, &ref,
				fmt.Sprintf("Refund of %d credits", credits))
		default:
			err = ErrUnsupportedEventType
		}
		if err != nil {
			return err
		}
		result.NewBalance = balance

		if err := d.webhookDB.MarkProcessed(ctx, record.ID, nil); err != nil {
			return fmt.Errorf("mark payment event processed: %w", err)
		}

		d.txm.AfterCommit(ctx, func(ctx context.Context) {
			d.publish(ctx, events.NewPaymentAppliedEvent(record.Provider, record.EventID, record.EventType.String(), record.UserID, record.AmountMinor, credits))
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListFailedEvents lists recorded events that need manual reconciliation:
// those marked failed and those left unprocessed past the grace period.
func (d *paymentDomain) ListFailedEvents(ctx context.Context, limit int) ([]*model.WebhookEvent, error) {
	if limit <= 0 || limit > maxFailedEvents {
		limit = maxFailedEvents
	}
	return d.webhookDB.ListFailed(ctx, d.clock().Add(-d.pendingGrace), limit)
}

func (d *paymentDomain) publish(ctx context.Context, event events.Event) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.Publish(ctx, event); err != nil {
		d.logger.Warn("failed to publish payment event",
			zap.String("event_type", event.EventType()),
			zap.Error(err),
		)
	}
}

func validate(event *model.PaymentEvent) error {
	if event.Provider == "" {
		event.Provider = DefaultProvider
	}
	switch {
	case strings.TrimSpace(event.EventID) == "":
		return fmt.Errorf("%w: event id is required", ErrInvalidEvent)
	case event.UserID == uuid.Nil:
		return fmt.Errorf("%w: user id is required", ErrInvalidEvent)
	case event.AmountMinor <= 0:
		return fmt.Errorf("%w: amount must be positive", ErrInvalidEvent)
	case event.Type != model.PaymentEventPurchase && event.Type != model.PaymentEventRefund:
		return fmt.Errorf("%w: %q", ErrUnsupportedEventType, event.Type)
	}
	return nil
}
