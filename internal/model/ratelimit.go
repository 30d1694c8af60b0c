package model

import (
	"time"

	"github.com/google/uuid"
)

// Tier classifies a user for rate-limit thresholds.
type Tier string

const (
	TierAnonymous Tier = "anonymous"
	TierFree      Tier = "free"
	TierPaid      Tier = "paid"
	TierPremium   Tier = "premium"
)

// String returns the string representation of the tier.
func (t Tier) String() string {
	return string(t)
}

// IsValid checks if the tier is valid.
func (t Tier) IsValid() bool {
	switch t {
	case TierAnonymous, TierFree, TierPaid, TierPremium:
		return true
	}
	return false
}

// RateLimitConfig holds administered thresholds for a (resource, tier) pair.
type RateLimitConfig struct {
	ID              uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Resource        string    `json:"resource" gorm:"not null;uniqueIndex:idx_rate_limit_resource_tier"`
	Tier            Tier      `json:"tier" gorm:"type:varchar(16);not null;uniqueIndex:idx_rate_limit_resource_tier"`
	HourlyLimit     int       `json:"hourly_limit" gorm:"not null"`
	DailyLimit      int       `json:"daily_limit" gorm:"not null"`
	MonthlyLimit    *int      `json:"monthly_limit,omitempty"`
	CooldownSeconds int       `json:"cooldown_seconds" gorm:"not null;default:0"`
	Enabled         bool      `json:"enabled" gorm:"not null;default:true"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName returns the database table name.
func (RateLimitConfig) TableName() string {
	return "rate_limit_configs"
}

// Cooldown returns the cooldown as a duration.
func (c *RateLimitConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// RateTracking holds the window counters for an (identifier, resource) pair.
type RateTracking struct {
	Identifier       string     `json:"identifier" gorm:"primaryKey"`
	Resource         string     `json:"resource" gorm:"primaryKey"`
	HourlyCount      int        `json:"hourly_count" gorm:"not null;default:0"`
	DailyCount       int        `json:"daily_count" gorm:"not null;default:0"`
	MonthlyCount     int        `json:"monthly_count" gorm:"not null;default:0"`
	LastHourlyReset  time.Time  `json:"last_hourly_reset" gorm:"not null"`
	LastDailyReset   time.Time  `json:"last_daily_reset" gorm:"not null"`
	LastMonthlyReset time.Time  `json:"last_monthly_reset" gorm:"not null"`
	LastUsedAt       *time.Time `json:"last_used_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName returns the database table name.
func (RateTracking) TableName() string {
	return "rate_tracking"
}

// RateLimitReason names the check that rejected a request.
type RateLimitReason string

const (
	RateLimitReasonNone     RateLimitReason = ""
	RateLimitReasonHourly   RateLimitReason = "hourly_limit_exceeded"
	RateLimitReasonDaily    RateLimitReason = "daily_limit_exceeded"
	RateLimitReasonMonthly  RateLimitReason = "monthly_limit_exceeded"
	RateLimitReasonCooldown RateLimitReason = "cooldown_active"
)

// RateLimitResult is returned by every check.
// MonthlyRemaining is -1 when no monthly limit applies.
type RateLimitResult struct {
	Allowed          bool            `json:"allowed"`
	Reason           RateLimitReason `json:"reason,omitempty"`
	HourlyRemaining  int             `json:"hourly_remaining"`
	DailyRemaining   int             `json:"daily_remaining"`
	MonthlyRemaining int             `json:"monthly_remaining"`
	CooldownSeconds  int             `json:"cooldown_seconds"`
	HourlyResetAt    time.Time       `json:"hourly_reset_at"`
	DailyResetAt     time.Time       `json:"daily_reset_at"`
	MonthlyResetAt   time.Time       `json:"monthly_reset_at"`
	RetryAt          *time.Time      `json:"retry_at,omitempty"`
}

// Quota is the remaining quota snapshot returned after admission.
type Quota struct {
	HourlyRemaining  int       `json:"hourly_remaining"`
	DailyRemaining   int       `json:"daily_remaining"`
	MonthlyRemaining int       `json:"monthly_remaining"`
	HourlyResetAt    time.Time `json:"hourly_reset_at"`
	DailyResetAt     time.Time `json:"daily_reset_at"`
	MonthlyResetAt   time.Time `json:"monthly_reset_at"`
}

// QuotaAfterUse returns the quota left once the checked request is counted.
func (r *RateLimitResult) QuotaAfterUse() Quota {
	q := Quota{
		HourlyRemaining:  max(r.HourlyRemaining-1, 0),
		DailyRemaining:   max(r.DailyRemaining-1, 0),
		MonthlyRemaining: r.MonthlyRemaining,
		HourlyResetAt:    r.HourlyResetAt,
		DailyResetAt:     r.DailyResetAt,
		MonthlyResetAt:   r.MonthlyResetAt,
	}
	if q.MonthlyRemaining > 0 {
		q.MonthlyRemaining--
	}
	return q
}
