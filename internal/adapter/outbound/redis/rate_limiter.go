package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/l2laihub/creditengine/internal/port/outbound"
	"github.com/redis/go-redis/v9"
)

const rateLimitKeyPrefix = "ratelimit:http:"

// slidingWindow trims the window, then admits n entries only if they fit.
// KEYS[1] window key; ARGV: now(ns), window(ns), n, limit, window(ms), member prefix.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local n = tonumber(ARGV[3])
local limit = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '0', now - window)
local count = redis.call('ZCARD', key)
if count + n > limit then
  return 0
end
for i = 0, n - 1 do
  redis.call('ZADD', key, now + i, ARGV[6] .. '-' .. i)
end
redis.call('PEXPIRE', key, ARGV[5])
return 1
`)

// rateLimiter implements outbound.RateLimiterPort.
type rateLimiter struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRateLimiter creates a new rate limiter adapter.
func NewRateLimiter(client redis.UniversalClient) outbound.RateLimiterPort {
	return &rateLimiter{client: client, now: time.Now}
}

func (r *rateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return r.AllowN(ctx, key, 1, limit, window)
}

func (r *rateLimiter) AllowN(ctx context.Context, key string, n int, limit int, window time.Duration) (bool, error) {
	if n <= 0 {
		return true, nil
	}
	now := r.now().UnixNano()
	ok, err := slidingWindow.Run(ctx, r.client,
		[]string{rateLimitKeyPrefix + key},
		now, window.Nanoseconds(), n, limit, window.Milliseconds(),
		fmt.Sprintf("%d-%s", now, uuid.NewString()),
	).Int()
	if err != nil {
		return false, fmt.Errorf("sliding window: %w", err)
	}
	return ok == 1, nil
}

func (r *rateLimiter) GetRemaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	fullKey := rateLimitKeyPrefix + key
	windowStart := r.now().UnixNano() - window.Nanoseconds()

	pipe := r.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, fullKey, "0", fmt.Sprintf("%d", windowStart))
	countCmd := pipe.ZCard(ctx, fullKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return max(limit-int(countCmd.Val()), 0), nil
}

// Compile-time check
var _ outbound.RateLimiterPort = (*rateLimiter)(nil)
