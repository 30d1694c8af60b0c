package events

import "github.com/google/uuid"

// Event type constants.
const (
	CreditsCreditedType   = "credits.credited"
	CreditsDebitedType    = "credits.debited"
	PaymentAppliedType    = "payment.applied"
	PaymentFailedType     = "payment.failed"
	ReferralCompletedType = "referral.completed"
	UsageAdmittedType     = "usage.admitted"
)

// CreditsCreditedEvent is emitted after credits are added to a balance.
type CreditsCreditedEvent struct {
	BaseEvent

	UserID       uuid.UUID `json:"user_id"`
	Kind         string    `json:"kind"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balance_after"`
	ExternalRef  string    `json:"external_ref,omitempty"`
}

// NewCreditsCreditedEvent creates a new CreditsCreditedEvent.
func NewCreditsCreditedEvent(userID uuid.UUID, kind string, amount, balanceAfter int64, externalRef string) *CreditsCreditedEvent {
	return &CreditsCreditedEvent{
		BaseEvent:    NewBaseEvent(CreditsCreditedType, userID.String(), "CreditBalance"),
		UserID:       userID,
		Kind:         kind,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		ExternalRef:  externalRef,
	}
}

// CreditsDebitedEvent is emitted after credits are removed from a balance.
type CreditsDebitedEvent struct {
	BaseEvent

	UserID       uuid.UUID `json:"user_id"`
	Kind         string    `json:"kind"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balance_after"`
}

// NewCreditsDebitedEvent creates a new CreditsDebitedEvent.
func NewCreditsDebitedEvent(userID uuid.UUID, kind string, amount, balanceAfter int64) *CreditsDebitedEvent {
	return &CreditsDebitedEvent{
		BaseEvent:    NewBaseEvent(CreditsDebitedType, userID.String(), "CreditBalance"),
		UserID:       userID,
		Kind:         kind,
		Amount:       amount,
		BalanceAfter: balanceAfter,
	}
}

// PaymentAppliedEvent is emitted when a gateway event changed a balance.
type PaymentAppliedEvent struct {
	BaseEvent

	Provider    string    `json:"provider"`
	PaymentType string    `json:"payment_type"`
	UserID      uuid.UUID `json:"user_id"`
	AmountMinor int64     `json:"amount_minor"`
	Credits     int64     `json:"credits"`
}

// NewPaymentAppliedEvent creates a new PaymentAppliedEvent.
func NewPaymentAppliedEvent(provider, externalID, eventType string, userID uuid.UUID, amountMinor, credits int64) *PaymentAppliedEvent {
	return &PaymentAppliedEvent{
		BaseEvent:   NewBaseEvent(PaymentAppliedType, externalID, "WebhookEvent"),
		Provider:    provider,
		PaymentType: eventType,
		UserID:      userID,
		AmountMinor: amountMinor,
		Credits:     credits,
	}
}

// PaymentFailedEvent is emitted when a recorded gateway event could not be applied.
type PaymentFailedEvent struct {
	BaseEvent

	Provider    string    `json:"provider"`
	PaymentType string    `json:"payment_type"`
	UserID      uuid.UUID `json:"user_id"`
	Error       string    `json:"error"`
}

// NewPaymentFailedEvent creates a new PaymentFailedEvent.
func NewPaymentFailedEvent(provider, externalID, eventType string, userID uuid.UUID, errText string) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseEvent:   NewBaseEvent(PaymentFailedType, externalID, "WebhookEvent"),
		Provider:    provider,
		PaymentType: eventType,
		UserID:      userID,
		Error:       errText,
	}
}

// ReferralCompletedEvent is emitted when a referral pays out.
type ReferralCompletedEvent struct {
	BaseEvent

	ReferrerID    uuid.UUID `json:"referrer_id"`
	ReferredID    uuid.UUID `json:"referred_id"`
	ReferrerBonus int64     `json:"referrer_bonus"`
	WelcomeBonus  int64     `json:"welcome_bonus"`
}

// NewReferralCompletedEvent creates a new ReferralCompletedEvent.
func NewReferralCompletedEvent(referralID, referrerID, referredID uuid.UUID, referrerBonus, welcomeBonus int64) *ReferralCompletedEvent {
	return &ReferralCompletedEvent{
		BaseEvent:     NewBaseEvent(ReferralCompletedType, referralID.String(), "Referral"),
		ReferrerID:    referrerID,
		ReferredID:    referredID,
		ReferrerBonus: referrerBonus,
		WelcomeBonus:  welcomeBonus,
	}
}

// UsageAdmittedEvent is emitted when a generation job is admitted and charged.
type UsageAdmittedEvent struct {
	BaseEvent

	UserID         uuid.UUID `json:"user_id"`
	Resource       string    `json:"resource"`
	Tier           string    `json:"tier"`
	CreditsCharged int64     `json:"credits_charged"`
}

// NewUsageAdmittedEvent creates a new UsageAdmittedEvent.
func NewUsageAdmittedEvent(usageID, userID uuid.UUID, resource, tier string, credits int64) *UsageAdmittedEvent {
	return &UsageAdmittedEvent{
		BaseEvent:      NewBaseEvent(UsageAdmittedType, usageID.String(), "UsageRecord"),
		UserID:         userID,
		Resource:       resource,
		Tier:           tier,
		CreditsCharged: credits,
	}
}
