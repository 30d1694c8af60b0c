package model

import (
	"time"

	"github.com/google/uuid"
)

// ReferralStatus represents the state of a referral.
type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusCompleted ReferralStatus = "completed"
)

// Referral links a referrer to an invited email until the invitee signs up.
type Referral struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	ReferrerUserID uuid.UUID      `json:"referrer_user_id" gorm:"type:uuid;not null;index"`
	ReferredEmail  string         `json:"referred_email" gorm:"not null"`
	ReferredUserID *uuid.UUID     `json:"referred_user_id,omitempty" gorm:"type:uuid"`
	Status         ReferralStatus `json:"status" gorm:"type:varchar(16);not null;default:pending"`
	CreditsEarned  int64          `json:"credits_earned" gorm:"not null;default:0"`
	CreatedAt      time.Time      `json:"created_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

// TableName returns the database table name.
func (Referral) TableName() string {
	return "referrals"
}

// IsPending reports whether the referral can still be completed.
func (r *Referral) IsPending() bool {
	return r.Status == ReferralStatusPending && r.ReferredUserID == nil
}
