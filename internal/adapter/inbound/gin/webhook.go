package gin

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"github.com/l2laihub/creditengine/internal/model"
	"github.com/l2laihub/creditengine/internal/port/inbound"
	apperrors "github.com/l2laihub/creditengine/internal/utils/errors"
)

const (
	stripeProvider        = "stripe"
	stripeSignatureHeader = "Stripe-Signature"
	stripeUserIDKey       = "user_id"

	// Stripe rejects webhook payloads larger than this.
	maxWebhookBodyBytes = 65536
)

var errIgnoredEvent = errors.New("event not relevant to credits")

// webhookAdapter implements inbound.WebhookHttpPort.
type webhookAdapter struct {
	domain inbound.PaymentDomain
	secret string
	logger *zap.Logger
}

// NewWebhookAdapter creates a new webhook HTTP adapter.
func NewWebhookAdapter(domain inbound.PaymentDomain, stripeSecret string, logger *zap.Logger) inbound.WebhookHttpPort {
	return &webhookAdapter{domain: domain, secret: stripeSecret, logger: logger}
}

// RegisterWebhookRoutes registers webhook routes.
func RegisterWebhookRoutes(r *gin.RouterGroup, adapter inbound.WebhookHttpPort) {
	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/stripe", adapter.HandleStripeWebhook)
	}
}

// HandleStripeWebhook verifies a Stripe delivery and applies it.
//
//	@Summary		Stripe webhook
//	@Description	Verifies the Stripe-Signature header. payment_intent.succeeded credits the user in metadata.user_id; charge.refunded takes credits back.
//	@Tags			Webhook
//	@Accept			json
//	@Produce		json
//	@Param			Stripe-Signature	header		string	true	"Stripe signature"
//	@Success		200					{object}	map[string]interface{}
//	@Failure		400					{object}	errors.ErrorResponse
//	@Router			/webhooks/stripe [post]
func (a *webhookAdapter) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		badRequest(c, "failed to read request body")
		return
	}

	evt, err := webhook.ConstructEventWithOptions(payload, c.GetHeader(stripeSignatureHeader), a.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		a.logger.Warn("stripe webhook rejected", zap.Error(err))
		appErr := apperrors.InvalidSignature()
		c.AbortWithStatusJSON(appErr.StatusCode, appErr.ToResponse())
		return
	}

	event, err := paymentEventFromStripe(&evt)
	if err != nil {
		// Acknowledge so Stripe stops redelivering events we will never apply.
		a.logger.Info("stripe webhook ignored",
			zap.String("event_id", evt.ID),
			zap.String("type", string(evt.Type)),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, gin.H{"received": true, "applied": false})
		return
	}

	result, err := a.domain.ApplyEvent(c.Request.Context(), event)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "applied": result.Applied, "credits": result.Credits})
}

// paymentEventFromStripe maps the Stripe events that move credits.
//
// Purchases are keyed by payment intent id, so a Checkout session and the
// payment_intent.succeeded it triggers credit the user once. Refunds are keyed
// by event id since one charge can be refunded several times.
func paymentEventFromStripe(evt *stripe.Event) (*model.PaymentEvent, error) {
	if evt.Data == nil {
		return nil, errIgnoredEvent
	}

	var (
		kind     model.PaymentEventType
		key      = evt.ID
		amount   int64
		metadata map[string]string
	)

	switch evt.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		if cs.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			return nil, errIgnoredEvent
		}
		kind, amount, metadata = model.PaymentEventPurchase, cs.AmountTotal, cs.Metadata
		key = cs.ID
		if cs.PaymentIntent != nil && cs.PaymentIntent.ID != "" {
			key = cs.PaymentIntent.ID
		}
	case stripe.EventTypePaymentIntentSucceeded:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}
		kind, amount, metadata = model.PaymentEventPurchase, pi.AmountReceived, pi.Metadata
		if amount == 0 {
			amount = pi.Amount
		}
		key = pi.ID
	case stripe.EventTypeChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(evt.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("decode charge: %w", err)
		}
		kind, amount, metadata = model.PaymentEventRefund, ch.AmountRefunded, ch.Metadata
	default:
		return nil, errIgnoredEvent
	}

	userID, err := uuid.Parse(metadata[stripeUserIDKey])
	if err != nil {
		return nil, fmt.Errorf("metadata %s: %w", stripeUserIDKey, err)
	}

	return &model.PaymentEvent{
		Provider:    stripeProvider,
		EventID:     key,
		Type:        kind,
		UserID:      userID,
		AmountMinor: amount,
	}, nil
}

// Compile-time check
var _ inbound.WebhookHttpPort = (*webhookAdapter)(nil)
