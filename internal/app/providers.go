package app

import (
	"context"
	"fmt"

	"github.com/google/wire"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	// Domains
	"github.com/l2laihub/creditengine/internal/domain/ledger"
	"github.com/l2laihub/creditengine/internal/domain/payment"
	"github.com/l2laihub/creditengine/internal/domain/ratelimit"
	"github.com/l2laihub/creditengine/internal/domain/referral"
	"github.com/l2laihub/creditengine/internal/domain/usage"

	// Inbound adapters
	ginadapter "github.com/l2laihub/creditengine/internal/adapter/inbound/gin"

	// Ports
	"github.com/l2laihub/creditengine/internal/port/inbound"
	"github.com/l2laihub/creditengine/internal/port/outbound"

	// Outbound adapters
	"github.com/l2laihub/creditengine/internal/adapter/outbound/memory"
	natsadapter "github.com/l2laihub/creditengine/internal/adapter/outbound/nats"
	"github.com/l2laihub/creditengine/internal/adapter/outbound/postgres"
	redisadapter "github.com/l2laihub/creditengine/internal/adapter/outbound/redis"

	// Infrastructure
	"github.com/l2laihub/creditengine/internal/infra/config"
	"github.com/l2laihub/creditengine/internal/infra/events"
	"github.com/l2laihub/creditengine/internal/infra/persistence"
	"github.com/l2laihub/creditengine/internal/shared/cache"
	"github.com/l2laihub/creditengine/internal/shared/database"
	"github.com/l2laihub/creditengine/internal/shared/logger"

	// Utils
	"github.com/l2laihub/creditengine/internal/utils/metrics"
)

// ===== Infrastructure Providers =====

// InfraSet provides infrastructure dependencies.
var InfraSet = wire.NewSet(
	ProvideZapLogger,
	ProvideMetrics,
	ProvideRedisClient,
	ProvideStores,
	wire.FieldsOf(new(*Stores),
		"TxManager",
		"Balances",
		"Transactions",
		"RateLimitConfigs",
		"RateTracking",
		"UsageRecords",
		"WebhookEvents",
		"Referrals",
	),
	ProvideConfigCache,
	ProvideHTTPRateLimiter,
	ProvideEventBus,
	wire.Bind(new(outbound.EventPublisherPort), new(*events.Bus)),
)

// ProvideZapLogger creates the zap logger.
func ProvideZapLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	zapLog, err := logger.NewZapLogger(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init zap logger: %w", err)
	}
	return zapLog, func() { _ = zapLog.Sync() }, nil
}

// ProvideMetrics creates the Prometheus metrics. Disabled metrics are nil; every
// recorder is nil-safe.
func ProvideMetrics(cfg *config.Config) *metrics.Metrics {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return metrics.New(cfg.Metrics.Namespace)
}

// ProvideRedisClient creates a Redis client. Redis is optional: without it the
// config cache and the HTTP throttle are skipped.
func ProvideRedisClient(cfg *config.Config, zapLog *zap.Logger) (goredis.UniversalClient, func()) {
	if !cfg.Redis.Enabled {
		return nil, func() {}
	}
	client, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		zapLog.Warn("Redis connection failed, continuing without cache", zap.Error(err))
		return nil, func() {}
	}
	return client, func() {
		if err := cache.Close(client); err != nil {
			zapLog.Warn("failed to close redis", zap.Error(err))
		}
	}
}

// Stores groups the persistence ports of one backing store.
type Stores struct {
	TxManager        outbound.TxManagerPort
	Balances         outbound.CreditBalanceDatabasePort
	Transactions     outbound.CreditTransactionDatabasePort
	RateLimitConfigs outbound.RateLimitConfigDatabasePort
	RateTracking     outbound.RateTrackingDatabasePort
	UsageRecords     outbound.UsageRecordDatabasePort
	WebhookEvents    outbound.WebhookEventDatabasePort
	Referrals        outbound.ReferralDatabasePort

	// Ping reports whether the store is reachable.
	Ping func(ctx context.Context) error
}

// ProvideStores opens the configured store. Postgres runs pending migrations
// first when database.auto_migrate is set.
func ProvideStores(cfg *config.Config, m *metrics.Metrics, zapLog *zap.Logger) (*Stores, func(), error) {
	if cfg.Database.Driver == "memory" {
		zapLog.Warn("using in-memory store, data is lost on restart")
		return memoryStores(memory.New()), func() {}, nil
	}

	if cfg.Database.AutoMigrate {
		if err := persistence.RunMigrations(context.Background(), cfg.Database.DSN(), "up", zapLog); err != nil {
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("init database: %w", err)
	}
	cleanup := func() {
		if err := database.Close(db); err != nil {
			zapLog.Warn("failed to close database", zap.Error(err))
		}
	}

	opts := postgres.TxOptions{
		MaxRetries: cfg.Database.MaxRetries,
		BaseDelay:  cfg.Database.RetryBaseDelay,
	}
	return postgresStores(db, opts, m, zapLog), cleanup, nil
}

func postgresStores(db *gorm.DB, opts postgres.TxOptions, m *metrics.Metrics, zapLog *zap.Logger) *Stores {
	return &Stores{
		TxManager:        postgres.NewTxManager(db, opts, m, zapLog),
		Balances:         postgres.NewCreditBalanceAdapter(db),
		Transactions:     postgres.NewCreditTransactionAdapter(db),
		RateLimitConfigs: postgres.NewRateLimitConfigAdapter(db),
		RateTracking:     postgres.NewRateTrackingAdapter(db),
		UsageRecords:     postgres.NewUsageRecordAdapter(db),
		WebhookEvents:    postgres.NewWebhookEventAdapter(db),
		Referrals:        postgres.NewReferralAdapter(db),
		Ping: func(ctx context.Context) error {
			return postgres.Ping(ctx, db)
		},
	}
}

func memoryStores(s *memory.Store) *Stores {
	return &Stores{
		TxManager:        s.TxManager(),
		Balances:         memory.NewCreditBalanceAdapter(s),
		Transactions:     memory.NewCreditTransactionAdapter(s),
		RateLimitConfigs: memory.NewRateLimitConfigAdapter(s),
		RateTracking:     memory.NewRateTrackingAdapter(s),
		UsageRecords:     memory.NewUsageRecordAdapter(s),
		WebhookEvents:    memory.NewWebhookEventAdapter(s),
		Referrals:        memory.NewReferralAdapter(s),
		Ping:             func(context.Context) error { return nil },
	}
}

// ProvideConfigCache creates the Redis read-through cache for rate limit configs.
func ProvideConfigCache(client goredis.UniversalClient, cfg *config.Config, zapLog *zap.Logger) outbound.RateLimitConfigCachePort {
	if client == nil {
		return nil
	}
	return redisadapter.NewRateLimitConfigCache(client, redisadapter.BreakerSettings{
		ConsecutiveFailures: cfg.Redis.BreakerFailures,
		OpenTimeout:         cfg.Redis.BreakerTimeout,
	}, zapLog)
}

// ProvideHTTPRateLimiter creates the per-IP sliding window limiter.
func ProvideHTTPRateLimiter(client goredis.UniversalClient) outbound.RateLimiterPort {
	if client == nil {
		return nil
	}
	return redisadapter.NewRateLimiter(client)
}

// ProvideEventBus creates the domain event bus and, when NATS is enabled,
// forwards every event to it.
func ProvideEventBus(cfg *config.Config, zapLog *zap.Logger) (*events.Bus, func(), error) {
	bus := events.NewBus(zapLog)
	if !cfg.NATS.Enabled {
		return bus, func() {}, nil
	}

	nc, err := natsadapter.Connect(cfg.NATS.URL, zapLog)
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}
	bus.Register(natsadapter.NewEventForwarder(natsadapter.NewBus(nc), cfg.NATS.SubjectPrefix, zapLog))

	return bus, func() {
		if err := nc.Drain(); err != nil {
			zapLog.Warn("failed to drain nats connection", zap.Error(err))
		}
	}, nil
}

// ===== Domain Providers =====

// DomainSet provides domain services.
var DomainSet = wire.NewSet(
	ProvideLedgerDomain,
	ProvideRateLimitDomain,
	ProvideUsageDomain,
	ProvidePaymentDomain,
	ProvideReferralDomain,
)

// ProvideLedgerDomain creates the ledger domain.
func ProvideLedgerDomain(
	cfg *config.Config,
	txm outbound.TxManagerPort,
	balances outbound.CreditBalanceDatabasePort,
	transactions outbound.CreditTransactionDatabasePort,
	publisher outbound.EventPublisherPort,
	m *metrics.Metrics,
	zapLog *zap.Logger,
) (inbound.LedgerDomain, error) {
	loc, err := cfg.Limiter.LoadLocation()
	if err != nil {
		return nil, err
	}
	ledgerCfg := ledger.DefaultConfig()
	ledgerCfg.FreeDailyAllowance = cfg.Ledger.FreeDailyAllowance
	ledgerCfg.Location = loc
	return ledger.NewLedgerDomain(txm, balances, transactions, publisher, m, ledgerCfg, zapLog.Named("ledger")), nil
}

// ProvideRateLimitDomain creates the usage rate limiter domain.
func ProvideRateLimitDomain(
	cfg *config.Config,
	txm outbound.TxManagerPort,
	configs outbound.RateLimitConfigDatabasePort,
	tracking outbound.RateTrackingDatabasePort,
	configCache outbound.RateLimitConfigCachePort,
	m *metrics.Metrics,
	zapLog *zap.Logger,
) (inbound.RateLimitDomain, error) {
	loc, err := cfg.Limiter.LoadLocation()
	if err != nil {
		return nil, err
	}
	limiterCfg := ratelimit.DefaultConfig()
	limiterCfg.Location = loc
	limiterCfg.ConfigCacheTTL = cfg.Limiter.ConfigCacheTTL
	return ratelimit.NewRateLimitDomain(txm, configs, tracking, configCache, m, limiterCfg, zapLog.Named("ratelimit")), nil
}

// ProvideUsageDomain creates the usage processor domain.
func ProvideUsageDomain(
	txm outbound.TxManagerPort,
	records outbound.UsageRecordDatabasePort,
	ledgerDomain inbound.LedgerDomain,
	limiter inbound.RateLimitDomain,
	publisher outbound.EventPublisherPort,
	m *metrics.Metrics,
	zapLog *zap.Logger,
) inbound.UsageDomain {
	return usage.NewUsageDomain(txm, records, ledgerDomain, limiter, publisher, m, zapLog.Named("usage"))
}

// ProvidePaymentDomain creates the payment event processor domain.
func ProvidePaymentDomain(
	txm outbound.TxManagerPort,
	webhookEvents outbound.WebhookEventDatabasePort,
	ledgerDomain inbound.LedgerDomain,
	publisher outbound.EventPublisherPort,
	m *metrics.Metrics,
	zapLog *zap.Logger,
) inbound.PaymentDomain {
	return payment.NewPaymentDomain(txm, webhookEvents, ledgerDomain, publisher, m, zapLog.Named("payment"))
}

// ProvideReferralDomain creates the referral grantor domain.
func ProvideReferralDomain(
	cfg *config.Config,
	txm outbound.TxManagerPort,
	referrals outbound.ReferralDatabasePort,
	ledgerDomain inbound.LedgerDomain,
	publisher outbound.EventPublisherPort,
	m *metrics.Metrics,
	zapLog *zap.Logger,
) inbound.ReferralDomain {
	return referral.NewReferralDomain(txm, referrals, ledgerDomain, publisher, m, &referral.Config{
		ReferrerBonus: cfg.Referral.ReferrerBonus,
		WelcomeBonus:  cfg.Referral.WelcomeBonus,
	}, zapLog.Named("referral"))
}

// ===== HTTP Handler Providers =====

// HandlerSet provides HTTP handlers.
var HandlerSet = wire.NewSet(
	ginadapter.NewCreditsAdapter,
	ginadapter.NewRateLimitAdapter,
	ginadapter.NewUsageAdapter,
	ginadapter.NewReferralAdapter,
	ginadapter.NewPaymentAdapter,
	ProvideWebhookAdapter,
)

// ProvideWebhookAdapter creates the Stripe webhook handler.
func ProvideWebhookAdapter(cfg *config.Config, paymentDomain inbound.PaymentDomain, zapLog *zap.Logger) inbound.WebhookHttpPort {
	return ginadapter.NewWebhookAdapter(paymentDomain, cfg.Stripe.WebhookSecret, zapLog.Named("webhook"))
}

// AppSet is the complete provider set.
var AppSet = wire.NewSet(
	InfraSet,
	DomainSet,
	HandlerSet,
)
