package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// UsageStatus represents the lifecycle of an admitted generation job.
type UsageStatus string

const (
	UsageStatusPending   UsageStatus = "pending"
	UsageStatusCompleted UsageStatus = "completed"
	UsageStatusFailed    UsageStatus = "failed"
)

// String returns the string representation of the status.
func (s UsageStatus) String() string {
	return string(s)
}

// IsFinal reports whether the status is terminal.
func (s UsageStatus) IsFinal() bool {
	return s == UsageStatusCompleted || s == UsageStatusFailed
}

// UsageMetadata carries caller-supplied identifiers such as theme or session.
type UsageMetadata map[string]string

// Value implements driver.Valuer.
func (m UsageMetadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *UsageMetadata) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("usage metadata: unsupported scan type")
	}
	return json.Unmarshal(raw, m)
}

// UsageRecord records one admitted generation job.
type UsageRecord struct {
	ID               uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey"`
	UserID           uuid.UUID     `json:"user_id" gorm:"type:uuid;not null;index"`
	Resource         string        `json:"resource" gorm:"not null"`
	Tier             Tier          `json:"tier" gorm:"type:varchar(16);not null"`
	CreditsCharged   int64         `json:"credits_charged" gorm:"not null"`
	FreeAllowance    bool          `json:"free_allowance" gorm:"not null;default:false"`
	Status           UsageStatus   `json:"status" gorm:"type:varchar(16);not null"`
	Metadata         UsageMetadata `json:"metadata" gorm:"type:jsonb"`
	ProcessingTimeMs *int64        `json:"processing_time_ms,omitempty"`
	ErrorMessage     *string       `json:"error_message,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
}

// TableName returns the database table name.
func (UsageRecord) TableName() string {
	return "usage_records"
}

// ConsumeRequest asks for admission of one paid generation job.
type ConsumeRequest struct {
	UserID           uuid.UUID     `json:"user_id" binding:"required"`
	Resource         string        `json:"resource" binding:"required"`
	Tier             Tier          `json:"tier"`
	CreditCost       int64         `json:"credit_cost"`
	UseFreeAllowance bool          `json:"use_free_allowance"`
	Metadata         UsageMetadata `json:"metadata"`
}

// ConsumeResult is returned when a job is admitted.
type ConsumeResult struct {
	UsageID          uuid.UUID `json:"usage_id"`
	RemainingCredits int64     `json:"remaining_credits"`
	FreeAllowance    bool      `json:"free_allowance"`
	RemainingQuota   Quota     `json:"remaining_quota"`
}

// CompleteUsageRequest reports the outcome of an admitted job.
type CompleteUsageRequest struct {
	Status           UsageStatus `json:"status" binding:"required"`
	ProcessingTimeMs int64       `json:"processing_time_ms"`
	ErrorMessage     *string     `json:"error_message"`
}
