package referral

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
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

// Config holds referral bonus amounts.
type Config struct {
	ReferrerBonus int64
	WelcomeBonus  int64
}

// DefaultConfig returns the default referral configuration.
func DefaultConfig() *Config {
	return &Config{
		ReferrerBonus: 10,
		WelcomeBonus:  20,
	}
}

type referralDomain struct {
	txm        outbound.TxManagerPort
	referralDB outbound.ReferralDatabasePort
	ledger     inbound.LedgerDomain
	publisher  outbound.EventPublisherPort
	metrics    *metrics.Metrics
	cfg        *Config
	logger     *zap.Logger
}

// NewReferralDomain creates a new referral domain service.
func NewReferralDomain(
	txm outbound.TxManagerPort,
	referralDB outbound.ReferralDatabasePort,
	ledger inbound.LedgerDomain,
	publisher outbound.EventPublisherPort,
	m *metrics.Metrics,
	cfg *Config,
	logger *zap.Logger,
) inbound.ReferralDomain {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &referralDomain{
		txm:        txm,
		referralDB: referralDB,
		ledger:     ledger,
		publisher:  publisher,
		metrics:    m,
		cfg:        cfg,
		logger:     logger,
	}
}

// CreateReferral records a pending invitation.
func (d *referralDomain) CreateReferral(ctx context.Context, referrerID uuid.UUID, referredEmail string) (*model.Referral, error) {
	if referrerID == uuid.Nil {
		return nil, ErrInvalidUser
	}
	email := strings.ToLower(strings.TrimSpace(referredEmail))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return nil, ErrInvalidEmail
	}

	r := &model.Referral{
		ID:             uuid.New(),
		ReferrerUserID: referrerID,
		ReferredEmail:  email,
		Status:         model.ReferralStatusPending,
		CreatedAt:      time.Now(),
	}
	if err := d.referralDB.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create referral: %w", err)
	}
	return r, nil
}

// CompleteReferral pays out the oldest pending referral of referrerID.
// Returns false without error when there is nothing left to complete.
func (d *referralDomain) CompleteReferral(ctx context.Context, referrerID, referredID uuid.UUID) (bool, error) {
	if referrerID == uuid.Nil || referredID == uuid.Nil {
		return false, ErrInvalidUser
	}
	if referrerID == referredID {
		return false, ErrSelfReferral
	}

	var completed *model.Referral
	err := d.txm.WithinTx(ctx, func(ctx context.Context) error {
		// A referred user pays out at most one referral.
		exists, err := d.referralDB.ExistsForReferredUser(ctx, referredID)
		if err != nil {
			return fmt.Errorf("check referred user: %w", err)
		}
		if exists {
			return nil
		}

		r, err := d.referralDB.LockOldestPending(ctx, referrerID)
		if err != nil {
			return fmt.Errorf("lock referral: %w", err)
		}
		if r == nil {
			return nil
		}

		now := time.Now()
		r.Status = model.ReferralStatusCompleted
		r.ReferredUserID = &referredID
		r.CreditsEarned = d.cfg.ReferrerBonus
		r.CompletedAt = &now
		if err := d.referralDB.Update(ctx, r); err != nil {
			if errors.Is(err, outbound.ErrDuplicate) {
				return errAlreadyReferred
			}
			return fmt.Errorf("update referral: %w", err)
		}

		ref := r.ID.String()
		if _, err := d.ledger.Credit(ctx, referrerID, d.cfg.ReferrerBonus, model.TransactionTypeBonus, "Referral bonus", &ref); err != nil {
			return fmt.Errorf("credit referrer: %w", err)
		}
		if _, err := d.ledger.Credit(ctx, referredID, d.cfg.WelcomeBonus, model.TransactionTypeBonus, "Welcome bonus", &ref); err != nil {
			return fmt.Errorf("credit referred user: %w", err)
		}

		if d.publisher != nil {
			event := events.NewReferralCompletedEvent(r.ID, referrerID, referredID, d.cfg.ReferrerBonus, d.cfg.WelcomeBonus)
			d.txm.AfterCommit(ctx, func(ctx context.Context) {
				if err := d.publisher.Publish(ctx, event); err != nil {
					d.logger.Warn("failed to publish referral event", zap.Error(err))
				}
			})
		}
		completed = r
		return nil
	})
	if errors.Is(err, errAlreadyReferred) {
		completed, err = nil, nil
	}
	if err != nil {
		return false, err
	}
	if completed == nil {
		d.logger.Debug("no pending referral to complete", zap.String("referrer_id", referrerID.String()))
		return false, nil
	}

	d.metrics.RecordReferralCompleted()
	d.logger.Info("referral completed",
		zap.String("referral_id", completed.ID.String()),
		zap.String("referrer_id", referrerID.String()),
		zap.String("referred_id", referredID.String()),
	)
	return true, nil
}
