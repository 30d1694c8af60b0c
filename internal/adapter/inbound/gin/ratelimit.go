package gin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/l2laihub/creditengine/internal/model"
	"github.com/l2laihub/creditengine/internal/port/inbound"
)

// UpsertRateLimitRequest sets the thresholds for a (resource, tier) pair.
type UpsertRateLimitRequest struct {
	Resource        string     `json:"resource" binding:"required,max=64"`
	Tier            model.Tier `json:"tier" binding:"required,oneof=anonymous free paid premium"`
	HourlyLimit     int        `json:"hourly_limit" binding:"required,gt=0"`
	DailyLimit      int        `json:"daily_limit" binding:"required,gt=0"`
	MonthlyLimit    *int       `json:"monthly_limit" binding:"omitempty,gt=0"`
	CooldownSeconds int        `json:"cooldown_seconds" binding:"gte=0"`
	Enabled         *bool      `json:"enabled"`
}

// rateLimitAdapter implements inbound.RateLimitHttpPort.
type rateLimitAdapter struct {
	domain inbound.RateLimitDomain
}

// NewRateLimitAdapter creates a new rate limit HTTP adapter.
func NewRateLimitAdapter(domain inbound.RateLimitDomain) inbound.RateLimitHttpPort {
	return &rateLimitAdapter{domain: domain}
}

// RegisterRateLimitRoutes registers the status route.
func RegisterRateLimitRoutes(r *gin.RouterGroup, adapter inbound.RateLimitHttpPort) {
	r.GET("/rate-limits/:resource/status", adapter.GetStatus)
}

// RegisterRateLimitAdminRoutes registers rate limit administration routes.
func RegisterRateLimitAdminRoutes(r *gin.RouterGroup, adapter inbound.RateLimitHttpPort) {
	limits := r.Group("/rate-limits")
	{
		limits.PUT("", adapter.UpsertConfig)
		limits.DELETE("/:resource/:identifier", adapter.ResetCounters)
	}
}

// GetStatus reports remaining quota without counting a request.
//
//	@Summary	Rate limit status
//	@Tags		RateLimit
//	@Produce	json
//	@Param		resource	path		string	true	"Resource"
//	@Param		identifier	query		string	true	"User id or IP"
//	@Param		tier		query		string	false	"Tier"
//	@Success	200			{object}	model.RateLimitResult
//	@Router		/rate-limits/{resource}/status [get]
func (a *rateLimitAdapter) GetStatus(c *gin.Context) {
	identifier := c.Query("identifier")
	if identifier == "" {
		badRequest(c, "identifier is required")
		return
	}
	tier := model.Tier(c.DefaultQuery("tier", string(model.TierAnonymous)))

	res, err := a.domain.Status(c.Request.Context(), identifier, c.Param("resource"), tier)
	if err != nil {
		handleError(c, err)
		return
	}

	c.Header("X-RateLimit-Remaining", strconv.Itoa(res.HourlyRemaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(res.HourlyResetAt.Unix(), 10))
	c.JSON(http.StatusOK, res)
}

// UpsertConfig stores administered limits.
//
//	@Summary	Upsert rate limit config
//	@Tags		RateLimit
//	@Accept		json
//	@Produce	json
//	@Param		request	body		UpsertRateLimitRequest	true	"Config"
//	@Success	200		{object}	model.RateLimitConfig
//	@Failure	400		{object}	errors.ErrorResponse
//	@Router		/admin/rate-limits [put]
func (a *rateLimitAdapter) UpsertConfig(c *gin.Context) {
	var req UpsertRateLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	cfg := &model.RateLimitConfig{
		Resource:        req.Resource,
		Tier:            req.Tier,
		HourlyLimit:     req.HourlyLimit,
		DailyLimit:      req.DailyLimit,
		MonthlyLimit:    req.MonthlyLimit,
		CooldownSeconds: req.CooldownSeconds,
		Enabled:         req.Enabled == nil || *req.Enabled,
	}
	if err := a.domain.UpsertConfig(c.Request.Context(), cfg); err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, cfg)
}

// ResetCounters drops the counters of an identifier for a resource.
//
//	@Summary	Reset rate limit counters
//	@Tags		RateLimit
//	@Param		resource	path	string	true	"Resource"
//	@Param		identifier	path	string	true	"User id or IP"
//	@Success	204
//	@Router		/admin/rate-limits/{resource}/{identifier} [delete]
func (a *rateLimitAdapter) ResetCounters(c *gin.Context) {
	if err := a.domain.ResetCounters(c.Request.Context(), c.Param("identifier"), c.Param("resource")); err != nil {
		handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Compile-time check
var _ inbound.RateLimitHttpPort = (*rateLimitAdapter)(nil)
