package app

import (
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/l2laihub/creditengine/internal/infra/config"
	"github.com/l2laihub/creditengine/internal/port/inbound"
	"github.com/l2laihub/creditengine/internal/port/outbound"
	"github.com/l2laihub/creditengine/internal/utils/metrics"
)

// Dependencies holds all injected dependencies.
type Dependencies struct {
	Config      *config.Config
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	Redis       goredis.UniversalClient
	RateLimiter outbound.RateLimiterPort
	Stores      *Stores

	// Domains
	LedgerDomain    inbound.LedgerDomain
	RateLimitDomain inbound.RateLimitDomain
	UsageDomain     inbound.UsageDomain
	PaymentDomain   inbound.PaymentDomain
	ReferralDomain  inbound.ReferralDomain

	// HTTP Handlers
	CreditsHandler   inbound.CreditsHttpPort
	RateLimitHandler inbound.RateLimitHttpPort
	UsageHandler     inbound.UsageHttpPort
	ReferralHandler  inbound.ReferralHttpPort
	PaymentHandler   inbound.PaymentHttpPort
	WebhookHandler   inbound.WebhookHttpPort
}
