package inbound

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/l2laihub/creditengine/internal/model"
)

// RateLimitDomain defines the usage rate limiter inbound port.
type RateLimitDomain interface {
	Check(ctx context.Context, identifier, resource string, tier model.Tier) (*model.RateLimitResult, error)
	Increment(ctx context.Context, identifier, resource string) (*model.RateTracking, error)
	CheckAndIncrement(ctx context.Context, identifier, resource string, tier model.Tier) (*model.RateLimitResult, error)
	Status(ctx context.Context, identifier, resource string, tier model.Tier) (*model.RateLimitResult, error)

	ResolveConfig(ctx context.Context, resource string, tier model.Tier) *model.RateLimitConfig
	UpsertConfig(ctx context.Context, cfg *model.RateLimitConfig) error
	ResetCounters(ctx context.Context, identifier, resource string) error
}

// RateLimitHttpPort defines HTTP handler interface for rate limit operations.
type RateLimitHttpPort interface {
	// GetStatus handles GET /rate-limits/:resource/status
	GetStatus(c *gin.Context)

	// UpsertConfig handles PUT /admin/rate-limits
	UpsertConfig(c *gin.Context)

	// ResetCounters handles DELETE /admin/rate-limits/:resource/:identifier
	ResetCounters(c *gin.Context)
}
