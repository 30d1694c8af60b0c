package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/l2laihub/creditengine/internal/model"
	"github.com/l2laihub/creditengine/internal/port/inbound"
	"github.com/l2laihub/creditengine/internal/port/outbound"
	"github.com/l2laihub/creditengine/internal/utils/metrics"
	"go.uber.org/zap"
)

// Config holds rate limiter settings.
type Config struct {
	// Location defines the hour, day and month boundaries.
	Location *time.Location
	// ConfigCacheTTL is how long administered limits stay cached.
	ConfigCacheTTL time.Duration
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// DefaultConfig returns the default rate limiter configuration.
func DefaultConfig() *Config {
	return &Config{
		Location:       time.UTC,
		ConfigCacheTTL: 5 * time.Minute,
		Clock:          time.Now,
	}
}

// Domain implements multi-window usage rate limiting.
type Domain struct {
	txm        outbound.TxManagerPort
	configDB   outbound.RateLimitConfigDatabasePort
	trackingDB outbound.RateTrackingDatabasePort
	cache      outbound.RateLimitConfigCachePort
	metrics    *metrics.Metrics
	cfg        *Config
	logger     *zap.Logger
}

// NewRateLimitDomain creates a new rate limit domain service. cache may be nil.
func NewRateLimitDomain(
	txm outbound.TxManagerPort,
	configDB outbound.RateLimitConfigDatabasePort,
	trackingDB outbound.RateTrackingDatabasePort,
	cache outbound.RateLimitConfigCachePort,
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
		txm:        txm,
		configDB:   configDB,
		trackingDB: trackingDB,
		cache:      cache,
		metrics:    m,
		cfg:        cfg,
		logger:     logger,
	}
}

// Compile-time interface check
var _ inbound.RateLimitDomain = (*Domain)(nil)

// Check locks the counter row, reconciles stale windows and evaluates the limits.
// A rejection is reported through the result, not as an error.
func (d *Domain) Check(ctx context.Context, identifier, resource string, tier model.Tier) (*model.RateLimitResult, error) {
	if err := validateKey(identifier, resource); err != nil {
		return nil, err
	}
	cfg := d.ResolveConfig(ctx, resource, tier)

	var result *model.RateLimitResult
	err := d.txm.WithinTx(ctx, func(ctx context.Context) error {
		now := d.cfg.Clock()
		w := windowsAt(now, d.cfg.Location)

		tr, err := d.trackingDB.GetOrCreateForUpdate(ctx, w.seed(identifier, resource))
		if err != nil {
			return fmt.Errorf("lock rate tracking: %w", err)
		}
		if applyResets(tr, w) {
			tr.UpdatedAt = now
			if err := d.trackingDB.Update(ctx, tr); err != nil {
				return fmt.Errorf("reset rate tracking: %w", err)
			}
		}

		result = evaluate(tr, cfg, now, w)
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.record(resource, cfg.Tier, result)
	return result, nil
}

// Increment counts one use against every window and stamps last_used_at.
func (d *Domain) Increment(ctx context.Context, identifier, resource string) (*model.RateTracking, error) {
	if err := validateKey(identifier, resource); err != nil {
		return nil, err
	}

	var tracking *model.RateTracking
	err := d.txm.WithinTx(ctx, func(ctx context.Context) error {
		now := d.cfg.Clock()
		w := windowsAt(now, d.cfg.Location)

		tr, err := d.trackingDB.GetOrCreateForUpdate(ctx, w.seed(identifier, resource))
		if err != nil {
			return fmt.Errorf("lock rate tracking: %w", err)
		}
		applyResets(tr, w)

		tr.HourlyCount++
		tr.DailyCount++
		tr.MonthlyCount++
		tr.LastUsedAt = &now
		tr.UpdatedAt = now
		if err := d.trackingDB.Update(ctx, tr); err != nil {
			return fmt.Errorf("increment rate tracking: %w", err)
		}
		tracking = tr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tracking, nil
}

// CheckAndIncrement checks and, when allowed, counts the use in one transaction.
// A rejection returns *RateLimitedError alongside the result.
func (d *Domain) CheckAndIncrement(ctx context.Context, identifier, resource string, tier model.Tier) (*model.RateLimitResult, error) {
	var result *model.RateLimitResult
	err := d.txm.WithinTx(ctx, func(ctx context.Context) error {
		res, err := d.Check(ctx, identifier, resource, tier)
		if err != nil {
			return err
		}
		result = res
		if !res.Allowed {
			return Rejection(res)
		}
		_, err = d.Increment(ctx, identifier, resource)
		return err
	})
	if err != nil {
		var limited *RateLimitedError
		if errors.As(err, &limited) {
			return result, err
		}
		return nil, err
	}

	quota := result.QuotaAfterUse()
	result.HourlyRemaining = quota.HourlyRemaining
	result.DailyRemaining = quota.DailyRemaining
	result.MonthlyRemaining = quota.MonthlyRemaining
	return result, nil
}

// Status evaluates the limits without locking or writing anything.
func (d *Domain) Status(ctx context.Context, identifier, resource string, tier model.Tier) (*model.RateLimitResult, error) {
	if err := validateKey(identifier, resource); err != nil {
		return nil, err
	}
	cfg := d.ResolveConfig(ctx, resource, tier)
	now := d.cfg.Clock()
	w := windowsAt(now, d.cfg.Location)

	tr, err := d.trackingDB.Get(ctx, identifier, resource)
	if err != nil {
		return nil, err
	}
	if tr == nil {
		tr = w.seed(identifier, resource)
	}
	applyResets(tr, w)
	return evaluate(tr, cfg, now, w), nil
}

// ResolveConfig returns the administered limits for a resource and tier, or the
// tier defaults when none are configured or the lookup fails.
func (d *Domain) ResolveConfig(ctx context.Context, resource string, tier model.Tier) *model.RateLimitConfig {
	if !tier.IsValid() {
		tier = model.TierAnonymous
	}

	if d.cache != nil {
		cached, err := d.cache.Get(ctx, resource, tier)
		switch {
		case err == nil && cached != nil:
			d.metrics.RecordCacheHit("rate_limit_config")
			return cached
		case errors.Is(err, outbound.ErrCacheMiss):
			d.metrics.RecordCacheMiss("rate_limit_config")
		case err != nil:
			d.logger.Debug("rate limit config cache unavailable", zap.Error(err))
		}
	}

	cfg, err := d.configDB.Get(ctx, resource, tier)
	if err != nil {
		d.logger.Warn("failed to load rate limit config, using tier defaults",
			zap.String("resource", resource),
			zap.String("tier", tier.String()),
			zap.Error(err),
		)
		return DefaultLimits(resource, tier)
	}
	if cfg == nil || !cfg.Enabled {
		return DefaultLimits(resource, tier)
	}

	if d.cache != nil {
		if err := d.cache.Set(ctx, cfg, d.cfg.ConfigCacheTTL); err != nil {
			d.logger.Debug("failed to cache rate limit config", zap.Error(err))
		}
	}
	return cfg
}

// UpsertConfig stores administered limits and drops any cached copy.
func (d *Domain) UpsertConfig(ctx context.Context, cfg *model.RateLimitConfig) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	now := d.cfg.Clock()
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now

	if err := d.configDB.Upsert(ctx, cfg); err != nil {
		return fmt.Errorf("upsert rate limit config: %w", err)
	}
	if d.cache != nil {
		if err := d.cache.Invalidate(ctx, cfg.Resource, cfg.Tier); err != nil {
			d.logger.Warn("failed to invalidate rate limit config cache", zap.Error(err))
		}
	}

	d.logger.Info("rate limit config updated",
		zap.String("resource", cfg.Resource),
		zap.String("tier", cfg.Tier.String()),
		zap.Int("hourly_limit", cfg.HourlyLimit),
		zap.Int("daily_limit", cfg.DailyLimit),
	)
	return nil
}

// ResetCounters drops the counters of an identifier for a resource.
func (d *Domain) ResetCounters(ctx context.Context, identifier, resource string) error {
	if err := validateKey(identifier, resource); err != nil {
		return err
	}
	if err := d.trackingDB.Delete(ctx, identifier, resource); err != nil {
		return fmt.Errorf("delete rate tracking: %w", err)
	}
	d.logger.Info("rate limit counters reset",
		zap.String("identifier", identifier),
		zap.String("resource", resource),
	)
	return nil
}

// Rejection converts a disallowed result into a *RateLimitedError.
func Rejection(res *model.RateLimitResult) *RateLimitedError {
	e := &RateLimitedError{Reason: res.Reason}
	if res.RetryAt != nil {
		e.ResetAt = *res.RetryAt
	}
	return e
}

func (d *Domain) record(resource string, tier model.Tier, res *model.RateLimitResult) {
	outcome := "allowed"
	if !res.Allowed {
		outcome = string(res.Reason)
		d.logger.Info("rate limit exceeded",
			zap.String("resource", resource),
			zap.String("tier", tier.String()),
			zap.String("reason", outcome),
		)
	}
	d.metrics.RecordRateLimitCheck(resource, tier.String(), outcome)
}

func validateKey(identifier, resource string) error {
	if strings.TrimSpace(identifier) == "" || strings.TrimSpace(resource) == "" {
		return ErrInvalidInput
	}
	return nil
}

func validateConfig(cfg *model.RateLimitConfig) error {
	switch {
	case cfg == nil:
		return ErrInvalidConfig
	case strings.TrimSpace(cfg.Resource) == "":
		return fmt.Errorf("%w: resource is required", ErrInvalidConfig)
	case !cfg.Tier.IsValid():
		return fmt.Errorf("%w: unknown tier %q", ErrInvalidConfig, cfg.Tier)
	case cfg.HourlyLimit <= 0 || cfg.DailyLimit <= 0:
		return fmt.Errorf("%w: hourly and daily limits must be positive", ErrInvalidConfig)
	case cfg.MonthlyLimit != nil && *cfg.MonthlyLimit <= 0:
		return fmt.Errorf("%w: monthly limit must be positive when set", ErrInvalidConfig)
	case cfg.CooldownSeconds < 0:
		return fmt.Errorf("%w: cooldown cannot be negative", ErrInvalidConfig)
	}
	return nil
}
