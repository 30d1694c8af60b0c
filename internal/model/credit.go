package model

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType represents the kind of balance mutation recorded in the ledger.
type TransactionType string

const (
	TransactionTypePurchase TransactionType = "purchase"
	TransactionTypeUsage    TransactionType = "usage"
	TransactionTypeBonus    TransactionType = "bonus"
	TransactionTypeRefund   TransactionType = "refund"
)

// String returns the string representation of the transaction type.
func (t TransactionType) String() string {
	return string(t)
}

// IsValid checks if the transaction type is valid.
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypePurchase, TransactionTypeUsage, TransactionTypeBonus, TransactionTypeRefund:
		return true
	}
	return false
}

// CreditBalance is the per-user balance row. Both credit columns are never negative.
type CreditBalance struct {
	UserID               uuid.UUID `json:"user_id" gorm:"type:uuid;primaryKey"`
	PaidCredits          int64     `json:"paid_credits" gorm:"not null;default:0"`
	BonusCredits         int64     `json:"bonus_credits" gorm:"not null;default:0"`
	FreeCreditsUsedToday int       `json:"free_credits_used_today" gorm:"not null;default:0"`
	LastFreeReset        time.Time `json:"last_free_reset" gorm:"type:date;not null"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// TableName returns the database table name.
func (CreditBalance) TableName() string {
	return "credit_balances"
}

// Total returns the spendable balance.
func (b *CreditBalance) Total() int64 {
	return b.PaidCredits + b.BonusCredits
}

// CreditTransaction is an immutable ledger entry.
type CreditTransaction struct {
	ID           uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID       `json:"user_id" gorm:"type:uuid;not null;index:idx_credit_tx_user_created,priority:1"`
	Type         TransactionType `json:"type" gorm:"type:varchar(16);not null"`
	Amount       int64           `json:"amount" gorm:"not null"`
	BalanceAfter int64           `json:"balance_after" gorm:"not null"`
	Description  string          `json:"description"`
	ExternalRef  *string         `json:"external_ref,omitempty" gorm:"index"`
	CreatedAt    time.Time       `json:"created_at" gorm:"not null;index:idx_credit_tx_user_created,priority:2"`
}

// TableName returns the database table name.
func (CreditTransaction) TableName() string {
	return "credit_transactions"
}

// BalanceResponse is the API view of a balance.
type BalanceResponse struct {
	UserID       uuid.UUID `json:"user_id"`
	PaidCredits  int64     `json:"paid_credits"`
	BonusCredits int64     `json:"bonus_credits"`
	Total        int64     `json:"total"`
}

// ToResponse converts the balance to its API view.
func (b *CreditBalance) ToResponse() *BalanceResponse {
	return &BalanceResponse{
		UserID:       b.UserID,
		PaidCredits:  b.PaidCredits,
		BonusCredits: b.BonusCredits,
		Total:        b.Total(),
	}
}

// ReplayReport is the outcome of replaying a user's transaction log.
type ReplayReport struct {
	UserID           uuid.UUID `json:"user_id"`
	TransactionCount int       `json:"transaction_count"`
	ReplayedTotal    int64     `json:"replayed_total"`
	LastBalanceAfter int64     `json:"last_balance_after"`
	LiveTotal        int64     `json:"live_total"`
	Consistent       bool      `json:"consistent"`
}
