package outbound

import (
	"context"
	"time"

	"github.com/l2laihub/creditengine/internal/model"
)

// RateLimitConfigDatabasePort defines rate limit configuration persistence operations.
type RateLimitConfigDatabasePort interface {
	// Get gets the configuration for a resource and tier. Returns nil if absent.
	Get(ctx context.Context, resource string, tier model.Tier) (*model.RateLimitConfig, error)

	// Upsert creates or replaces the configuration for its resource and tier.
	Upsert(ctx context.Context, cfg *model.RateLimitConfig) error
}

// RateTrackingDatabasePort defines window counter persistence operations.
type RateTrackingDatabasePort interface {
	// GetOrCreateForUpdate ensures the counter row exists and locks it.
	// seed supplies the reset markers used when the row is created.
	GetOrCreateForUpdate(ctx context.Context, seed *model.RateTracking) (*model.RateTracking, error)

	// Get gets a counter without locking. Returns nil if absent.
	Get(ctx context.Context, identifier, resource string) (*model.RateTracking, error)

	// Update persists counters and reset markers.
	Update(ctx context.Context, tracking *model.RateTracking) error

	// Delete removes a counter row.
	Delete(ctx context.Context, identifier, resource string) error
}

// RateLimitConfigCachePort defines rate limit configuration caching (Redis).
type RateLimitConfigCachePort interface {
	// Get returns ErrCacheMiss when nothing is cached.
	Get(ctx context.Context, resource string, tier model.Tier) (*model.RateLimitConfig, error)

	// Set caches a configuration.
	Set(ctx context.Context, cfg *model.RateLimitConfig, ttl time.Duration) error

	// Invalidate drops a cached configuration.
	Invalidate(ctx context.Context, resource string, tier model.Tier) error
}

// RateLimiterPort defines request throttling operations for the HTTP edge.
type RateLimiterPort interface {
	// Allow checks if a request is allowed within rate limits.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// AllowN checks if N requests are allowed.
	AllowN(ctx context.Context, key string, n int, limit int, window time.Duration) (bool, error)

	// GetRemaining returns remaining requests in window.
	GetRemaining(ctx context.Context, key string, limit int, window time.Duration) (int, error)
}
