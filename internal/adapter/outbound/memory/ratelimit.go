package memory

import (
	"context"
	"time"

	"github.com/l2laihub/creditengine/internal/model"
	"github.com/l2laihub/creditengine/internal/port/outbound"
)

type rateLimitConfigAdapter struct {
	store *Store
}

// NewRateLimitConfigAdapter creates an in-memory rate limit config adapter.
func NewRateLimitConfigAdapter(s *Store) outbound.RateLimitConfigDatabasePort {
	return &rateLimitConfigAdapter{store: s}
}

func (a *rateLimitConfigAdapter) Get(ctx context.Context, resource string, tier model.Tier) (*model.RateLimitConfig, error) {
	defer a.store.lock(ctx)()

	cfg, ok := a.store.data.configs[configKey{resource: resource, tier: tier}]
	if !ok {
		return nil, nil
	}
	if cfg.MonthlyLimit != nil {
		v := *cfg.MonthlyLimit
		cfg.MonthlyLimit = &v
	}
	return &cfg, nil
}

func (a *rateLimitConfigAdapter) Upsert(ctx context.Context, cfg *model.RateLimitConfig) error {
	defer a.store.lock(ctx)()

	key := configKey{resource: cfg.Resource, tier: cfg.Tier}
	row := *cfg
	if existing, ok := a.store.data.configs[key]; ok {
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
	}
	if cfg.MonthlyLimit != nil {
		v := *cfg.MonthlyLimit
		row.MonthlyLimit = &v
	}
	a.store.data.configs[key] = row
	return nil
}

type rateTrackingAdapter struct {
	store *Store
}

// NewRateTrackingAdapter creates an in-memory window counter adapter.
func NewRateTrackingAdapter(s *Store) outbound.RateTrackingDatabasePort {
	return &rateTrackingAdapter{store: s}
}

func (a *rateTrackingAdapter) GetOrCreateForUpdate(ctx context.Context, seed *model.RateTracking) (*model.RateTracking, error) {
	defer a.store.lock(ctx)()

	key := trackingKey{identifier: seed.Identifier, resource: seed.Resource}
	tr, ok := a.store.data.tracking[key]
	if !ok {
		tr = *seed
		now := time.Now()
		tr.CreatedAt = now
		tr.UpdatedAt = now
		a.store.data.tracking[key] = tr
	}
	return &tr, nil
}

func (a *rateTrackingAdapter) Get(ctx context.Context, identifier, resource string) (*model.RateTracking, error) {
	defer a.store.lock(ctx)()

	tr, ok := a.store.data.tracking[trackingKey{identifier: identifier, resource: resource}]
	if !ok {
		return nil, nil
	}
	return &tr, nil
}

func (a *rateTrackingAdapter) Update(ctx context.Context, tracking *model.RateTracking) error {
	defer a.store.lock(ctx)()

	a.store.data.tracking[trackingKey{identifier: tracking.Identifier, resource: tracking.Resource}] = *tracking
	return nil
}

func (a *rateTrackingAdapter) Delete(ctx context.Context, identifier, resource string) error {
	defer a.store.lock(ctx)()

	delete(a.store.data.tracking, trackingKey{identifier: identifier, resource: resource})
	return nil
}

// Compile-time checks
var (
	_ outbound.RateLimitConfigDatabasePort = (*rateLimitConfigAdapter)(nil)
	_ outbound.RateTrackingDatabasePort    = (*rateTrackingAdapter)(nil)
)
