package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/l2laihub/creditengine/internal/model"
	"github.com/l2laihub/creditengine/internal/port/outbound"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ========== Rate Limit Config Adapter ==========

// rateLimitConfigAdapter implements outbound.RateLimitConfigDatabasePort.
type rateLimitConfigAdapter struct {
	db *gorm.DB
}

// NewRateLimitConfigAdapter creates a new rate limit config database adapter.
func NewRateLimitConfigAdapter(db *gorm.DB) outbound.RateLimitConfigDatabasePort {
	return &rateLimitConfigAdapter{db: db}
}

func (a *rateLimitConfigAdapter) Get(ctx context.Context, resource string, tier model.Tier) (*model.RateLimitConfig, error) {
	var cfg model.RateLimitConfig
	err := dbFromContext(ctx, a.db).
		Where("resource = ? AND tier = ?", resource, tier).
		First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

// Upsert keeps the stored id and created_at of an existing (resource, tier) row
// and reloads cfg from it.
func (a *rateLimitConfigAdapter) Upsert(ctx context.Context, cfg *model.RateLimitConfig) error {
	db := dbFromContext(ctx, a.db)
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "resource"}, {Name: "tier"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"hourly_limit", "daily_limit", "monthly_limit", "cooldown_seconds", "enabled", "updated_at",
		}),
	}).Create(cfg).Error
	if err != nil {
		return fmt.Errorf("upsert rate limit config: %w", err)
	}
	return db.Where("resource = ? AND tier = ?", cfg.Resource, cfg.Tier).First(cfg).Error
}

// ========== Rate Tracking Adapter ==========

// rateTrackingAdapter implements outbound.RateTrackingDatabasePort.
type rateTrackingAdapter struct {
	db *gorm.DB
}

// NewRateTrackingAdapter creates a new rate tracking database adapter.
func NewRateTrackingAdapter(db *gorm.DB) outbound.RateTrackingDatabasePort {
	return &rateTrackingAdapter{db: db}
}

func (a *rateTrackingAdapter) GetOrCreateForUpdate(ctx context.Context, seed *model.RateTracking) (*model.RateTracking, error) {
	db := dbFromContext(ctx, a.db)

	row := *seed
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("ensure rate tracking: %w", err)
	}

	var tr model.RateTracking
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("identifier = ? AND resource = ?", seed.Identifier, seed.Resource).
		First(&tr).Error
	if err != nil {
		return nil, fmt.Errorf("lock rate tracking: %w", err)
	}
	return &tr, nil
}

func (a *rateTrackingAdapter) Get(ctx context.Context, identifier, resource string) (*model.RateTracking, error) {
	var tr model.RateTracking
	err := dbFromContext(ctx, a.db).
		Where("identifier = ? AND resource = ?", identifier, resource).
		First(&tr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tr, nil
}

func (a *rateTrackingAdapter) Update(ctx context.Context, tr *model.RateTracking) error {
	err := dbFromContext(ctx, a.db).
		Model(&model.RateTracking{}).
		Where("identifier = ? AND resource = ?", tr.Identifier, tr.Resource).
		Updates(map[string]interface{}{
			"hourly_count":       tr.HourlyCount,
			"daily_count":        tr.DailyCount,
			"monthly_count":      tr.MonthlyCount,
			"last_hourly_reset":  tr.LastHourlyReset,
			"last_daily_reset":   tr.LastDailyReset,
			"last_monthly_reset": tr.LastMonthlyReset,
			"last_used_at":       tr.LastUsedAt,
			"updated_at":         tr.UpdatedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("update rate tracking: %w", err)
	}
	return nil
}

func (a *rateTrackingAdapter) Delete(ctx context.Context, identifier, resource string) error {
	return dbFromContext(ctx, a.db).
		Where("identifier = ? AND resource = ?", identifier, resource).
		Delete(&model.RateTracking{}).Error
}

// Compile-time interface checks
var (
	_ outbound.RateLimitConfigDatabasePort = (*rateLimitConfigAdapter)(nil)
	_ outbound.RateTrackingDatabasePort    = (*rateTrackingAdapter)(nil)
)
