package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/l2laihub/creditengine/internal/infra/events"
	"github.com/l2laihub/creditengine/internal/model"
	"github.com/l2laihub/creditengine/internal/port/inbound"
	"github.com/l2laihub/creditengine/internal/port/outbound"
	"github.com/l2laihub/creditengine/internal/utils/metrics"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Config holds ledger settings.
type Config struct {
	// FreeDailyAllowance is the number of free generations per calendar day.
	FreeDailyAllowance int
	// Location defines calendar days for the free allowance.
	Location *time.Location
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// DefaultConfig returns the default ledger configuration.
func DefaultConfig() *Config {
	return &Config{
		FreeDailyAllowance: 3,
		Location:           time.UTC,
		Clock:              time.Now,
	}
}

// Domain is the sole mutator of credit balances and writer of ledger entries.
type Domain struct {
	txm       outbound.TxManagerPort
	balanceDB outbound.CreditBalanceDatabasePort
	entryDB   outbound.CreditTransactionDatabasePort
	publisher outbound.EventPublisherPort
	metrics   *metrics.Metrics
	cfg       *Config
	logger    *zap.Logger
}

// NewLedgerDomain creates a new ledger domain service.
func NewLedgerDomain(
	txm outbound.TxManagerPort,
	balanceDB outbound.CreditBalanceDatabasePort,
	entryDB outbound.CreditTransactionDatabasePort,
	publisher outbound.EventPublisherPort,
	m *metrics.Metrics,
	cfg *Config,
	logger *zap.Logger,
) *Domain {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Domain{
		txm:       txm,
		balanceDB: balanceDB,
		entryDB:   entryDB,
		publisher: publisher,
		metrics:   m,
		cfg:       cfg,
		logger:    logger,
	}
}

// Compile-time interface check
var _ inbound.LedgerDomain = (*Domain)(nil)

// --- Mutations ---

// Credit adds credits. Purchases and refunds land in paid credits, bonuses in bonus credits.
func (d *Domain) Credit(ctx context.Context, userID uuid.UUID, amount int64, kind model.TransactionType, description string, externalRef *string) (int64, error) {
	if amount <= 0 {
		d.metrics.RecordLedgerOperation("credit", "invalid")
		return 0, ErrInvalidAmount
	}
	if kind != model.TransactionTypePurchase && kind != model.TransactionTypeBonus && kind != model.TransactionTypeRefund {
		d.metrics.RecordLedgerOperation("credit", "invalid")
		return 0, ErrInvalidKind
	}

	var newBalance int64
	err := d.txm.WithinTx(ctx, func(ctx context.Context) error {
		bal, err := d.balanceDB.GetOrCreateForUpdate(ctx, userID, d.today())
		if err != nil {
			return fmt.Errorf("lock balance: %w", err)
		}

		if kind == model.TransactionTypeBonus {
			bal.BonusCredits += amount
		} else {
			bal.PaidCredits += amount
		}

		if err := d.persist(ctx, bal, kind, amount, description, externalRef); err != nil {
			return err
		}
		newBalance = bal.Total()

		ref := ""
		if externalRef != nil {
			ref = *externalRef
		}
		d.publish(ctx, events.NewCreditsCreditedEvent(userID, kind.String(), amount, newBalance, ref))
		return nil
	})
	if err != nil {
		d.metrics.RecordLedgerOperation("credit", "error")
		return 0, err
	}

	d.metrics.RecordLedgerOperation("credit", "ok")
	d.metrics.RecordCredits(kind.String(), amount)
	d.logger.Info("credits added",
		zap.String("user_id", userID.String()),
		zap.String("kind", kind.String()),
		zap.Int64("amount", amount),
		zap.Int64("balance", newBalance),
	)
	return newBalance, nil
}

// Debit spends credits, bonus credits first and paid credits after.
// Returns *InsufficientCreditsError without mutating anything when the balance is short.
func (d *Domain) Debit(ctx context.Context, userID uuid.UUID, amount int64, description string) (int64, error) {
	if amount <= 0 {
		d.metrics.RecordLedgerOperation("debit", "invalid")
		return 0, ErrInvalidAmount
	}

	var newBalance int64
	err := d.txm.WithinTx(ctx, func(ctx context.Context) error {
		bal, err := d.balanceDB.GetOrCreateForUpdate(ctx, userID, d.today())
		if err != nil {
			return fmt.Errorf("lock balance: %w", err)
		}

		if available := bal.Total(); available < amount {
			return &InsufficientCreditsError{Required: amount, Available: available}
		}

		fromBonus := min(bal.BonusCredits, amount)
		bal.BonusCredits -= fromBonus
		bal.PaidCredits -= amount - fromBonus

		if err := d.persist(ctx, bal, model.TransactionTypeUsage, -amount, description, nil); err != nil {
			return err
		}
		newBalance = bal.Total()

		d.publish(ctx, events.NewCreditsDebitedEvent(userID, model.TransactionTypeUsage.String(), amount, newBalance))
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			d.metrics.RecordLedgerOperation("debit", "insufficient")
		} else {
			d.metrics.RecordLedgerOperation("debit", "error")
		}
		return 0, err
	}

	d.metrics.RecordLedgerOperation("debit", "ok")
	d.metrics.RecordCredits(model.TransactionTypeUsage.String(), amount)
	d.logger.Info("credits debited",
		zap.String("user_id", userID.String()),
		zap.Int64("amount", amount),
		zap.Int64("balance", newBalance),
	)
	return newBalance, nil
}

// Refund claws back paid credits, clamping at zero. The logged amount is the
// delta actually applied so the log still replays to the balance.
func (d *Domain) Refund(ctx context.Context, userID uuid.UUID, amount int64, externalRef *string, description string) (int64, error) {
	if amount <= 0 {
		d.metrics.RecordLedgerOperation("refund", "invalid")
		return 0, ErrInvalidAmount
	}

	var (
		newBalance int64
		removed    int64
	)
	err := d.txm.WithinTx(ctx, func(ctx context.Context) error {
		bal, err := d.balanceDB.GetOrCreateForUpdate(ctx, userID, d.today())
		if err != nil {
			return fmt.Errorf("lock balance: %w", err)
		}

		removed = min(bal.PaidCredits, amount)
		bal.PaidCredits -= removed

		if err := d.persist(ctx, bal, model.TransactionTypeRefund, -removed, description, externalRef); err != nil {
			return err
		}
		newBalance = bal.Total()

		d.publish(ctx, events.NewCreditsDebitedEvent(userID, model.TransactionTypeRefund.String(), removed, newBalance))
		return nil
	})
	if err != nil {
		d.metrics.RecordLedgerOperation("refund", "error")
		return 0, err
	}

	d.metrics.RecordLedgerOperation("refund", "ok")
	d.metrics.RecordCredits(model.TransactionTypeRefund.String(), removed)
	if removed < amount {
		d.logger.Warn("refund clamped at zero paid credits",
			zap.String("user_id", userID.String()),
			zap.Int64("requested", amount),
			zap.Int64("removed", removed),
		)
	}
	d.logger.Info("credits refunded",
		zap.String("user_id", userID.String()),
		zap.Int64("amount", removed),
		zap.Int64("balance", newBalance),
	)
	return newBalance, nil
}

// ClaimFreeCredit consumes one unit of the daily free allowance.
// Free credits never enter the spendable balance, so no ledger entry is written.
func (d *Domain) ClaimFreeCredit(ctx context.Context, userID uuid.UUID) (bool, int, error) {
	var (
		granted   bool
		remaining int
	)
	err := d.txm.WithinTx(ctx, func(ctx context.Context) error {
		today := d.today()
		bal, err := d.balanceDB.GetOrCreateForUpdate(ctx, userID, today)
		if err != nil {
			return fmt.Errorf("lock balance: %w", err)
		}

		if !sameDate(bal.LastFreeReset, today) {
			bal.FreeCreditsUsedToday = 0
			bal.LastFreeReset = today
		}
		if bal.FreeCreditsUsedToday >= d.cfg.FreeDailyAllowance {
			return nil
		}

		bal.FreeCreditsUsedToday++
		bal.UpdatedAt = d.cfg.Clock()
		if err := d.balanceDB.Update(ctx, bal); err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
		granted = true
		remaining = d.cfg.FreeDailyAllowance - bal.FreeCreditsUsedToday
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	return granted, remaining, nil
}

// --- Queries ---

// GetBalance returns the balance of a user. Users without a row have zero credits.
func (d *Domain) GetBalance(ctx context.Context, userID uuid.UUID) (*model.BalanceResponse, error) {
	bal, err := d.balanceDB.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if bal == nil {
		bal = &model.CreditBalance{UserID: userID}
	}
	return bal.ToResponse(), nil
}

// ListTransactions lists ledger entries newest first.
func (d *Domain) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.CreditTransaction, int64, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return d.entryDB.ListByUser(ctx, userID, limit, offset)
}

// VerifyReplay replays the ledger of a user and compares it to the live balance.
func (d *Domain) VerifyReplay(ctx context.Context, userID uuid.UUID) (*model.ReplayReport, error) {
	entries, err := d.entryDB.ListAllByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	bal, err := d.balanceDB.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}

	report := &model.ReplayReport{UserID: userID, TransactionCount: len(entries)}
	for _, e := range entries {
		report.ReplayedTotal += e.Amount
	}
	if n := len(entries); n > 0 {
		report.LastBalanceAfter = entries[n-1].BalanceAfter
	}
	if bal != nil {
		report.LiveTotal = bal.Total()
	}
	report.Consistent = report.ReplayedTotal == report.LastBalanceAfter && report.LastBalanceAfter == report.LiveTotal

	if !report.Consistent {
		d.logger.Error("ledger replay mismatch",
			zap.String("user_id", userID.String()),
			zap.Int64("replayed", report.ReplayedTotal),
			zap.Int64("last_balance_after", report.LastBalanceAfter),
			zap.Int64("live", report.LiveTotal),
		)
	}
	return report, nil
}

// --- Helpers ---

// persist writes the mutated balance and its ledger entry inside the current transaction.
func (d *Domain) persist(ctx context.Context, bal *model.CreditBalance, kind model.TransactionType, amount int64, description string, externalRef *string) error {
	now := d.cfg.Clock()
	bal.UpdatedAt = now
	if err := d.balanceDB.Update(ctx, bal); err != nil {
		return fmt.Errorf("update balance: %w", err)
	}

	entry := &model.CreditTransaction{
		ID:           uuid.Must(uuid.NewV7()),
		UserID:       bal.UserID,
		Type:         kind,
		Amount:       amount,
		BalanceAfter: bal.Total(),
		Description:  description,
		ExternalRef:  externalRef,
		CreatedAt:    now,
	}
	if err := d.entryDB.Create(ctx, entry); err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

func (d *Domain) publish(ctx context.Context, event events.Event) {
	if d.publisher == nil {
		return
	}
	d.txm.AfterCommit(ctx, func(ctx context.Context) {
		if err := d.publisher.Publish(ctx, event); err != nil {
			d.logger.Warn("failed to publish ledger event",
				zap.String("event_type", event.EventType()),
				zap.Error(err),
			)
		}
	})
}

func (d *Domain) today() time.Time {
	now := d.cfg.Clock().In(d.cfg.Location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, d.cfg.Location)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
