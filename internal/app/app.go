package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	ginadapter "github.com/l2laihub/creditengine/internal/adapter/inbound/gin"
	"github.com/l2laihub/creditengine/internal/infra/config"
	"github.com/l2laihub/creditengine/internal/utils/middleware"
)

const (
	healthCheckTimeout = 2 * time.Second
	idempotencyTTL     = 24 * time.Hour

	// Referral invitations are throttled per IP on top of the global limit.
	referralCreateLimit  = 10
	referralCreateWindow = time.Hour
)

// App holds the HTTP router and everything it needs to shut down.
type App struct {
	config  *config.Config
	deps    *Dependencies
	router  *gin.Engine
	cleanup func()
}

// New builds the application from configuration.
func New(cfg *config.Config) (*App, error) {
	deps, cleanup, err := InitializeDependencies(cfg)
	if err != nil {
		return nil, fmt.Errorf("init dependencies: %w", err)
	}

	app := &App{
		config:  cfg,
		deps:    deps,
		cleanup: cleanup,
	}
	app.router = app.setupRouter()
	app.registerRoutes()

	deps.Logger.Info("application initialized",
		zap.String("store", cfg.Database.Driver),
		zap.Bool("redis", deps.Redis != nil),
		zap.Bool("nats", cfg.NATS.Enabled),
	)
	return app, nil
}

// Router returns the HTTP handler.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.deps.Logger
}

// Stop releases connections in reverse order of creation.
func (a *App) Stop() {
	if a.cleanup != nil {
		a.cleanup()
	}
}

// setupRouter creates the Gin engine with global middleware.
func (a *App) setupRouter() *gin.Engine {
	if a.config.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	log := a.deps.Logger

	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(log))
	r.Use(middleware.Metrics(a.deps.Metrics))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(a.config.Server.AllowedOrigins)))

	r.GET("/health", a.health)

	if a.config.Metrics.Enabled {
		r.GET(a.config.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}
	if a.config.Server.EnableSwagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))
	}

	return r
}

// registerRoutes mounts the API under /api/v1.
func (a *App) registerRoutes() {
	d := a.deps
	log := d.Logger

	v1 := a.router.Group("/api/v1")
	if a.config.RateLimit.Enabled {
		v1.Use(middleware.RateLimitByIP(d.RateLimiter, a.config.RateLimit.GlobalLimit, a.config.RateLimit.GlobalWindow, log))
	}

	idempotent := middleware.Idempotency(d.Redis, middleware.IdempotencyConfig{TTL: idempotencyTTL}, log)
	throttleReferrals := middleware.RateLimitByEndpoint(d.RateLimiter, referralCreateLimit, referralCreateWindow, log)

	ginadapter.RegisterUsageRoutes(v1, d.UsageHandler, idempotent)
	ginadapter.RegisterRateLimitRoutes(v1, d.RateLimitHandler)
	ginadapter.RegisterReferralRoutes(v1, d.ReferralHandler, throttleReferrals)
	ginadapter.RegisterPaymentRoutes(v1, d.PaymentHandler)
	ginadapter.RegisterWebhookRoutes(v1, d.WebhookHandler)

	// Admin routes. Authentication is expected in front of the service.
	admin := v1.Group("/admin")
	ginadapter.RegisterCreditsRoutes(admin, d.CreditsHandler, idempotent)
	ginadapter.RegisterRateLimitAdminRoutes(admin, d.RateLimitHandler)
	ginadapter.RegisterPaymentAdminRoutes(admin, d.PaymentHandler)
}

func (a *App) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	if err := a.deps.Stores.Ping(ctx); err != nil {
		a.deps.Logger.Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
