package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/l2laihub/creditengine/internal/model"
	"github.com/l2laihub/creditengine/internal/port/outbound"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const rateLimitConfigKeyPrefix = "ratelimit:config:"

// BreakerSettings tunes the circuit around Redis.
type BreakerSettings struct {
	// ConsecutiveFailures opens the circuit.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the circuit stays open before probing again.
	OpenTimeout time.Duration
}

// configCache implements outbound.RateLimitConfigCachePort.
type configCache struct {
	client  redis.UniversalClient
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *zap.Logger
}

// NewRateLimitConfigCache creates a read-through cache for rate limit configs.
// While the circuit is open every call fails fast and callers fall back to the database.
func NewRateLimitConfigCache(client redis.UniversalClient, bs BreakerSettings, logger *zap.Logger) outbound.RateLimitConfigCachePort {
	if bs.ConsecutiveFailures == 0 {
		bs.ConsecutiveFailures = 5
	}
	if bs.OpenTimeout <= 0 {
		bs.OpenTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "redis-rate-limit-config",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     bs.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bs.ConsecutiveFailures
		},
		// A miss is a healthy answer.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, outbound.ErrCacheMiss)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &configCache{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
		logger:  logger,
	}
}

func (c *configCache) key(resource string, tier model.Tier) string {
	return fmt.Sprintf("%s%s:%s", rateLimitConfigKeyPrefix, resource, tier)
}

func (c *configCache) Get(ctx context.Context, resource string, tier model.Tier) (*model.RateLimitConfig, error) {
	raw, err := c.breaker.Execute(func() ([]byte, error) {
		b, err := c.client.Get(ctx, c.key(resource, tier)).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, outbound.ErrCacheMiss
		}
		return b, err
	})
	if err != nil {
		return nil, err
	}

	var cfg model.RateLimitConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode cached rate limit config: %w", err)
	}
	return &cfg, nil
}

func (c *configCache) Set(ctx context.Context, cfg *model.RateLimitConfig, ttl time.Duration) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = c.breaker.Execute(func() ([]byte, error) {
		return nil, c.client.Set(ctx, c.key(cfg.Resource, cfg.Tier), raw, ttl).Err()
	})
	return err
}

// Invalidate bypasses the breaker: an open circuit must not keep a stale copy alive.
func (c *configCache) Invalidate(ctx context.Context, resource string, tier model.Tier) error {
	return c.client.Del(ctx, c.key(resource, tier)).Err()
}

// Compile-time check
var _ outbound.RateLimitConfigCachePort = (*configCache)(nil)
