package model

import (
	"time"

	"github.com/google/uuid"
)

// PaymentEventType represents the lifecycle event emitted by a payment gateway.
type PaymentEventType string

const (
	PaymentEventPurchase PaymentEventType = "purchase"
	PaymentEventRefund   PaymentEventType = "refund"
)

// String returns the string representation of the event type.
func (t PaymentEventType) String() string {
	return string(t)
}

// WebhookEvent represents a stored webhook event for idempotency.
type WebhookEvent struct {
	ID          uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	Provider    string           `json:"provider" gorm:"not null;uniqueIndex:idx_provider_event"`
	EventID     string           `json:"event_id" gorm:"not null;uniqueIndex:idx_provider_event"`
	EventType   PaymentEventType `json:"event_type" gorm:"type:varchar(32);not null"`
	UserID      uuid.UUID        `json:"user_id" gorm:"type:uuid;not null;index"`
	AmountMinor int64            `json:"amount_minor" gorm:"not null"`
	Processed   bool             `json:"processed" gorm:"not null;default:false"`
	ProcessedAt *time.Time       `json:"processed_at,omitempty"`
	Success     bool             `json:"success" gorm:"not null;default:false"`
	Error       *string          `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// TableName returns the table name for GORM.
func (WebhookEvent) TableName() string {
	return "payment_webhook_events"
}

// PaymentEvent is a gateway-neutral payment lifecycle event.
type PaymentEvent struct {
	Provider    string           `json:"provider"`
	EventID     string           `json:"event_id" binding:"required"`
	Type        PaymentEventType `json:"type" binding:"required"`
	UserID      uuid.UUID        `json:"user_id" binding:"required"`
	AmountMinor int64            `json:"amount_minor" binding:"required,gt=0"`
}

// ApplyResult reports the outcome of applying a payment event.
type ApplyResult struct {
	Applied    bool  `json:"applied"`
	Credits    int64 `json:"credits,omitempty"`
	NewBalance int64 `json:"new_balance,omitempty"`
}
