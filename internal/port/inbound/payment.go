package inbound

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/l2laihub/creditengine/internal/model"
)

// PaymentDomain defines the payment event processor inbound port.
type PaymentDomain interface {
	ApplyEvent(ctx context.Context, event *model.PaymentEvent) (*model.ApplyResult, error)
	ListFailedEvents(ctx context.Context, limit int) ([]*model.WebhookEvent, error)
}

// PaymentHttpPort defines HTTP handler interface for payment event operations.
type PaymentHttpPort interface {
	// ApplyEvent handles POST /payments/events
	// Applies a gateway-neutral payment event.
	ApplyEvent(c *gin.Context)

	// ListFailedEvents handles GET /admin/payments/failed
	ListFailedEvents(c *gin.Context)
}

// WebhookHttpPort defines HTTP handler interface for webhook operations.
type WebhookHttpPort interface {
	// HandleStripeWebhook handles POST /webhooks/stripe
	// Verifies the signature and applies the payment event.
	HandleStripeWebhook(c *gin.Context)
}
