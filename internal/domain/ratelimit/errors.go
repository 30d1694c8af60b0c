package ratelimit

import (
	"errors"
	"fmt"
	"time"

	"github.com/l2laihub/creditengine/internal/model"
)

// Domain errors for rate limiting.
var (
	ErrRateLimited   = errors.New("rate limited")
	ErrInvalidConfig = errors.New("invalid rate limit config")
	ErrInvalidInput  = errors.New("identifier and resource are required")
)

// RateLimitedError carries the window that tripped and when it reopens.
type RateLimitedError struct {
	Reason  model.RateLimitReason
	ResetAt time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: %s, resets at %s", e.Reason, e.ResetAt.Format(time.RFC3339))
}

// Is makes errors.Is(err, ErrRateLimited) match.
func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// RetryAfter returns the wait until ResetAt, rounded up to whole seconds.
func (e *RateLimitedError) RetryAfter(now time.Time) time.Duration {
	d := e.ResetAt.Sub(now)
	if d <= 0 {
		return 0
	}
	if r := d % time.Second; r != 0 {
		d += time.Second - r
	}
	return d
}
