package payment

import "errors"

var (
	// ErrInvalidEvent is returned when a payment event is missing required fields.
	ErrInvalidEvent = errors.New("invalid payment event")

	// ErrUnsupportedEventType is returned for event types other than purchase and refund.
	ErrUnsupportedEventType = errors.New("unsupported payment event type")

	// ErrUnknownPriceTier is returned when an amount does not match any price tier.
	ErrUnknownPriceTier = errors.New("unknown price tier")
)
