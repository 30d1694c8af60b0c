package gin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/l2laihub/creditengine/internal/model"
	"github.com/l2laihub/creditengine/internal/port/inbound"
)

// usageAdapter implements inbound.UsageHttpPort.
type usageAdapter struct {
	domain inbound.UsageDomain
}

// NewUsageAdapter creates a new usage HTTP adapter.
func NewUsageAdapter(domain inbound.UsageDomain) inbound.UsageHttpPort {
	return &usageAdapter{domain: domain}
}

// RegisterUsageRoutes registers usage routes. consume wraps the admission route.
func RegisterUsageRoutes(r *gin.RouterGroup, adapter inbound.UsageHttpPort, consume ...gin.HandlerFunc) {
	usage := r.Group("/usage")
	{
		usage.Group("", consume...).POST("/consume", adapter.Consume)
		usage.POST("/:id/complete", adapter.Complete)
		usage.GET("/:id", adapter.GetUsage)
	}
}

// Consume admits one generation job.
//
//	@Summary		Consume credits for usage
//	@Description	Checks the rate limit, charges credits (or the free daily allowance) and counts the request as one unit.
//	@Tags			Usage
//	@Accept			json
//	@Produce		json
//	@Param			Idempotency-Key	header		string					false	"Idempotency key"
//	@Param			request			body		model.ConsumeRequest	true	"Consume request"
//	@Success		201				{object}	model.ConsumeResult
//	@Failure		402				{object}	errors.ErrorResponse
//	@Failure		429				{object}	errors.ErrorResponse
//	@Router			/usage/consume [post]
func (a *usageAdapter) Consume(c *gin.Context) {
	var req model.ConsumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := a.domain.ConsumeForUsage(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// Complete records the outcome of an admitted job.
//
//	@Summary	Complete usage
//	@Tags		Usage
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string						true	"Usage ID"
//	@Param		request	body		model.CompleteUsageRequest	true	"Outcome"
//	@Success	200		{object}	model.UsageRecord
//	@Failure	404		{object}	errors.ErrorResponse
//	@Failure	409		{object}	errors.ErrorResponse
//	@Router		/usage/{id}/complete [post]
func (a *usageAdapter) Complete(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req model.CompleteUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	record, err := a.domain.CompleteUsage(c.Request.Context(), id, req.Status, req.ProcessingTimeMs, req.ErrorMessage)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// GetUsage returns a usage record.
//
//	@Summary	Get usage record
//	@Tags		Usage
//	@Produce	json
//	@Param		id	path		string	true	"Usage ID"
//	@Success	200	{object}	model.UsageRecord
//	@Failure	404	{object}	errors.ErrorResponse
//	@Router		/usage/{id} [get]
func (a *usageAdapter) GetUsage(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	record, err := a.domain.GetUsage(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// Compile-time check
var _ inbound.UsageHttpPort = (*usageAdapter)(nil)
