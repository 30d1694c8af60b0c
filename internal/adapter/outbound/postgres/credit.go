package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/l2laihub/creditengine/internal/model"
	"github.com/l2laihub/creditengine/internal/port/outbound"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ========== Credit Balance Adapter ==========

// creditBalanceAdapter implements outbound.CreditBalanceDatabasePort.
type creditBalanceAdapter struct {
	db *gorm.DB
}

// NewCreditBalanceAdapter creates a new credit balance database adapter.
func NewCreditBalanceAdapter(db *gorm.DB) outbound.CreditBalanceDatabasePort {
	return &creditBalanceAdapter{db: db}
}

func (a *creditBalanceAdapter) GetOrCreateForUpdate(ctx context.Context, userID uuid.UUID, today time.Time) (*model.CreditBalance, error) {
	db := dbFromContext(ctx, a.db)

	seed := &model.CreditBalance{
		UserID:        userID,
		LastFreeReset: today,
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(seed).Error; err != nil {
		return nil, fmt.Errorf("ensure credit balance: %w", err)
	}

	var balance model.CreditBalance
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&balance).Error
	if err != nil {
		return nil, fmt.Errorf("lock credit balance: %w", err)
	}
	return &balance, nil
}

func (a *creditBalanceAdapter) Get(ctx context.Context, userID uuid.UUID) (*model.CreditBalance, error) {
	var balance model.CreditBalance
	err := dbFromContext(ctx, a.db).Where("user_id = ?", userID).First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &balance, nil
}

func (a *creditBalanceAdapter) Update(ctx context.Context, balance *model.CreditBalance) error {
	err := dbFromContext(ctx, a.db).
		Model(&model.CreditBalance{}).
		Where("user_id = ?", balance.UserID).
		Updates(map[string]interface{}{
			"paid_credits":            balance.PaidCredits,
			"bonus_credits":           balance.BonusCredits,
			"free_credits_used_today": balance.FreeCreditsUsedToday,
			"last_free_reset":         balance.LastFreeReset,
			"updated_at":              balance.UpdatedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("update credit balance: %w", err)
	}
	return nil
}

// ========== Credit Transaction Adapter ==========

// creditTransactionAdapter implements outbound.CreditTransactionDatabasePort.
type creditTransactionAdapter struct {
	db *gorm.DB
}

// NewCreditTransactionAdapter creates a new ledger entry database adapter.
func NewCreditTransactionAdapter(db *gorm.DB) outbound.CreditTransactionDatabasePort {
	return &creditTransactionAdapter{db: db}
}

func (a *creditTransactionAdapter) Create(ctx context.Context, tx *model.CreditTransaction) error {
	if err := dbFromContext(ctx, a.db).Create(tx).Error; err != nil {
		return fmt.Errorf("create credit transaction: %w", err)
	}
	return nil
}

func (a *creditTransactionAdapter) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.CreditTransaction, int64, error) {
	db := dbFromContext(ctx, a.db)

	var total int64
	if err := db.Model(&model.CreditTransaction{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var txs []*model.CreditTransaction
	err := db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&txs).Error
	if err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

func (a *creditTransactionAdapter) ListAllByUser(ctx context.Context, userID uuid.UUID) ([]*model.CreditTransaction, error) {
	var txs []*model.CreditTransaction
	err := dbFromContext(ctx, a.db).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}

// Compile-time interface checks
var (
	_ outbound.CreditBalanceDatabasePort     = (*creditBalanceAdapter)(nil)
	_ outbound.CreditTransactionDatabasePort = (*creditTransactionAdapter)(nil)
)
