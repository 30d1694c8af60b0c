package usage

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/l2laihub/creditengine/internal/domain/ledger"
	"github.com/l2laihub/creditengine/internal/domain/ratelimit"
	"github.com/l2laihub/creditengine/internal/infra/events"
	"github.com/l2laihub/creditengine/internal/model"
	"github.com/l2laihub/creditengine/internal/port/inbound"
	"github.com/l2laihub/creditengine/internal/port/outbound"
	"github.com/l2laihub/creditengine/internal/utils/metrics"
	"go.uber.org/zap"
)

// usageDomain admits generation jobs: rate check, charge and count as one unit.
type usageDomain struct {
	txm       outbound.TxManagerPort
	usageDB   outbound.UsageRecordDatabasePort
	ledger    inbound.LedgerDomain
	limiter   inbound.RateLimitDomain
	publisher outbound.EventPublisherPort
	metrics   *metrics.Metrics
	clock     func() time.Time
	logger    *zap.Logger
}

// NewUsageDomain creates a new usage domain service.
func NewUsageDomain(
	txm outbound.TxManagerPort,
	usageDB outbound.UsageRecordDatabasePort,
	ledger inbound.LedgerDomain,
	limiter inbound.RateLimitDomain,
	publisher outbound.EventPublisherPort,
	m *metrics.Metrics,
	logger *zap.Logger,
) inbound.UsageDomain {
	return &usageDomain{
		txm:       txm,
		usageDB:   usageDB,
		ledger:    ledger,
		limiter:   limiter,
		publisher: publisher,
		metrics:   m,
		clock:     time.Now,
		logger:    logger,
	}
}

// ConsumeForUsage admits one job. Nothing is persisted unless every step
// succeeds: a rate limit rejection or a short balance leaves the counters,
// the balance and the usage log untouched.
func (d *usageDomain) ConsumeForUsage(ctx context.Context, req *model.ConsumeRequest) (*model.ConsumeResult, error) {
	if req == nil || req.UserID == uuid.Nil || strings.TrimSpace(req.Resource) == "" {
		return nil, ErrInvalidRequest
	}
	if req.CreditCost <= 0 {
		return nil, ledger.ErrInvalidAmount
	}
	tier := req.Tier
	if !tier.IsValid() {
		tier = model.TierAnonymous
	}
	identifier := req.UserID.String()

	var result *model.ConsumeResult
	err := d.txm.WithinTx(ctx, func(ctx context.Context) error {
		check, err := d.limiter.Check(ctx, identifier, req.Resource, tier)
		if err != nil {
			return fmt.Errorf("check rate limit: %w", err)
		}
		if !check.Allowed {
			return ratelimit.Rejection(check)
		}

		record := &model.UsageRecord{
			ID:        uuid.New(),
			UserID:    req.UserID,
			Resource:  req.Resource,
			Tier:      tier,
			Status:    model.UsageStatusPending,
			Metadata:  maps.Clone(req.Metadata),
			CreatedAt: d.clock(),
		}

		if req.UseFreeAllowance {
			granted, _, err := d.ledger.ClaimFreeCredit(ctx, req.UserID)
			if err != nil {
				return fmt.Errorf("claim free credit: %w", err)
			}
			record.FreeAllowance = granted
		}

		var remaining int64
		if record.FreeAllowance {
			bal, err := d.ledger.GetBalance(ctx, req.UserID)
			if err != nil {
				return fmt.Errorf("get balance: %w", err)
			}
			remaining = bal.Total
		} else {
			remaining, err = d.ledger.Debit(ctx, req.UserID, req.CreditCost, describe(req))
			if err != nil {
				return err
			}
			record.CreditsCharged = req.CreditCost
		}

		if _, err := d.limiter.Increment(ctx, identifier, req.Resource); err != nil {
			return fmt.Errorf("increment rate limit: %w", err)
		}
		if err := d.usageDB.Create(ctx, record); err != nil {
			return fmt.Errorf("create usage record: %w", err)
		}

		result = &model.ConsumeResult{
			UsageID:          record.ID,
			RemainingCredits: remaining,
			FreeAllowance:    record.FreeAllowance,
			RemainingQuota:   check.QuotaAfterUse(),
		}

		if d.publisher != nil {
			event := events.NewUsageAdmittedEvent(record.ID, record.UserID, record.Resource, tier.String(), record.CreditsCharged)
			d.txm.AfterCommit(ctx, func(ctx context.Context) {
				if err := d.publisher.Publish(ctx, event); err != nil {
					d.logger.Warn("failed to publish usage event", zap.Error(err))
				}
			})
		}
		return nil
	})
	if err != nil {
		d.metrics.RecordUsageAdmission(req.Resource, admissionOutcome(err))
		return nil, err
	}

	d.metrics.RecordUsageAdmission(req.Resource, "admitted")
	d.logger.Info("usage admitted",
		zap.String("usage_id", result.UsageID.String()),
		zap.String("user_id", identifier),
		zap.String("resource", req.Resource),
		zap.Bool("free_allowance", result.FreeAllowance),
		zap.Int64("remaining_credits", result.RemainingCredits),
	)
	return result, nil
}

// CompleteUsage records the outcome of an admitted job. It never moves credits.
func (d *usageDomain) CompleteUsage(ctx context.Context, usageID uuid.UUID, status model.UsageStatus, processingTimeMs int64, errMsg *string) (*model.UsageRecord, error) {
	if !status.IsFinal() {
		return nil, ErrInvalidStatus
	}

	var record *model.UsageRecord
	err := d.txm.WithinTx(ctx, func(ctx context.Context) error {
		r, err := d.usageDB.GetByIDForUpdate(ctx, usageID)
		if err != nil {
			return fmt.Errorf("get usage record: %w", err)
		}
		if r == nil {
			return ErrUsageNotFound
		}
		if r.Status.IsFinal() {
			return ErrUsageAlreadyFinal
		}

		now := d.clock()
		r.Status = status
		r.CompletedAt = &now
		if processingTimeMs > 0 {
			r.ProcessingTimeMs = &processingTimeMs
		}
		if status == model.UsageStatusFailed && errMsg != nil {
			msg := *errMsg
			r.ErrorMessage = &msg
		}
		if err := d.usageDB.Update(ctx, r); err != nil {
			return fmt.Errorf("update usage record: %w", err)
		}
		record = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.logger.Info("usage completed",
		zap.String("usage_id", usageID.String()),
		zap.String("status", status.String()),
	)
	return record, nil
}

// GetUsage gets a usage record.
func (d *usageDomain) GetUsage(ctx context.Context, usageID uuid.UUID) (*model.UsageRecord, error) {
	r, err := d.usageDB.GetByID(ctx, usageID)
	if err != nil {
		return nil, fmt.Errorf("get usage record: %w", err)
	}
	if r == nil {
		return nil, ErrUsageNotFound
	}
	return r, nil
}

func describe(req *model.ConsumeRequest) string {
	if theme := req.Metadata["theme"]; theme != "" {
		return fmt.Sprintf("%s (%s)", req.Resource, theme)
	}
	return req.Resource
}

func admissionOutcome(err error) string {
	switch {
	case errors.Is(err, ratelimit.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ledger.ErrInsufficientCredits):
		return "insufficient_credits"
	default:
		return "error"
	}
}
