package gin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/l2laihub/creditengine/internal/model"
	"github.com/l2laihub/creditengine/internal/port/inbound"
)

// paymentAdapter implements inbound.PaymentHttpPort.
type paymentAdapter struct {
	domain inbound.PaymentDomain
}

// NewPaymentAdapter creates a new payment HTTP adapter.
func NewPaymentAdapter(domain inbound.PaymentDomain) inbound.PaymentHttpPort {
	return &paymentAdapter{domain: domain}
}

// RegisterPaymentRoutes registers the gateway-neutral payment event route.
func RegisterPaymentRoutes(r *gin.RouterGroup, adapter inbound.PaymentHttpPort) {
	r.POST("/payments/events", adapter.ApplyEvent)
}

// RegisterPaymentAdminRoutes registers payment reconciliation routes.
func RegisterPaymentAdminRoutes(r *gin.RouterGroup, adapter inbound.PaymentHttpPort) {
	r.GET("/payments/failed", adapter.ListFailedEvents)
}

// ApplyEvent applies a payment event at most once.
//
//	@Summary		Apply payment event
//	@Description	Apply a purchase or refund event. Redelivered events return applied=false.
//	@Tags			Payment
//	@Accept			json
//	@Produce		json
//	@Param			request	body		model.PaymentEvent	true	"Payment event"
//	@Success		200		{object}	model.ApplyResult
//	@Failure		400		{object}	errors.ErrorResponse
//	@Failure		422		{object}	errors.ErrorResponse
//	@Router			/payments/events [post]
func (a *paymentAdapter) ApplyEvent(c *gin.Context) {
	var event model.PaymentEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := a.domain.ApplyEvent(c.Request.Context(), &event)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListFailedEvents lists events that were recorded but could not be applied.
//
//	@Summary	List failed payment events
//	@Tags		Payment
//	@Produce	json
//	@Param		limit	query		int	false	"Maximum events"
//	@Success	200		{array}		model.WebhookEvent
//	@Router		/admin/payments/failed [get]
func (a *paymentAdapter) ListFailedEvents(c *gin.Context) {
	events, err := a.domain.ListFailedEvents(c.Request.Context(), queryInt(c, "limit", 50))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

// Compile-time check
var _ inbound.PaymentHttpPort = (*paymentAdapter)(nil)
