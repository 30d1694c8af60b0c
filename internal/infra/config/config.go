package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CREDITENGINE_DATABASE_HOST.
const EnvPrefix = "CREDITENGINE"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	NATS      NATSConfig      `mapstructure:"nats"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Limiter   LimiterConfig   `mapstructure:"limiter"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Referral  ReferralConfig  `mapstructure:"referral"`
	Stripe    StripeConfig    `mapstructure:"stripe"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address         string        `mapstructure:"address" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	EnableSwagger   bool          `mapstructure:"enable_swagger"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	// Driver selects the store: postgres, or memory for local runs without a database.
	Driver          string        `mapstructure:"driver" validate:"oneof=postgres memory"`
	Host            string        `mapstructure:"host" validate:"required"`
	Port            int           `mapstructure:"port" validate:"gt=0,lte=65535"`
	User            string        `mapstructure:"user" validate:"required"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database" validate:"required"`
	SSLMode         string        `mapstructure:"ssl_mode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gt=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	// MaxRetries bounds how often a conflicting transaction is re-run.
	MaxRetries uint64 `mapstructure:"max_retries" validate:"lte=10"`
	// RetryBaseDelay is the first backoff step between retries.
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay" validate:"gt=0"`
	AutoMigrate    bool          `mapstructure:"auto_migrate"`
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Database, c.SSLMode,
	)
	if c.Password != "" {
		dsn += fmt.Sprintf(" password=%s", c.Password)
	}
	return dsn
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address" validate:"required_if=Enabled true"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	// BreakerFailures opens the cache circuit after this many consecutive failures.
	BreakerFailures uint32        `mapstructure:"breaker_failures" validate:"gt=0"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout" validate:"gt=0"`
}

// NATSConfig holds event forwarding configuration.
type NATSConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url" validate:"required_if=Enabled true"`
	SubjectPrefix string `mapstructure:"subject_prefix" validate:"required"`
}

// RateLimitConfig holds the per-IP HTTP throttle configuration.
type RateLimitConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	GlobalLimit  int           `mapstructure:"global_limit" validate:"gt=0"`
	GlobalWindow time.Duration `mapstructure:"global_window" validate:"gt=0"`
}

// LimiterConfig holds usage rate limiter configuration.
type LimiterConfig struct {
	// Location is the IANA zone that defines hour, day and month boundaries.
	Location       string        `mapstructure:"location" validate:"required"`
	ConfigCacheTTL time.Duration `mapstructure:"config_cache_ttl" validate:"gt=0"`
}

// LoadLocation resolves Location.
func (c *LimiterConfig) LoadLocation() (*time.Location, error) {
	return time.LoadLocation(c.Location)
}

// LedgerConfig holds ledger configuration.
type LedgerConfig struct {
	FreeDailyAllowance int `mapstructure:"free_daily_allowance" validate:"gte=0"`
}

// ReferralConfig holds referral bonus amounts.
type ReferralConfig struct {
	ReferrerBonus int64 `mapstructure:"referrer_bonus" validate:"gt=0"`
	WelcomeBonus  int64 `mapstructure:"welcome_bonus" validate:"gtfield=ReferrerBonus"`
}

// StripeConfig holds Stripe webhook configuration.
type StripeConfig struct {
	WebhookSecret string `mapstructure:"webhook_secret"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// MetricsConfig holds Prometheus configuration.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace" validate:"required"`
	Path      string `mapstructure:"path" validate:"required,startswith=/"`
}

// Load loads configuration from .env, file and environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/creditengine")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Secrets are read directly so they never have to live in a config file.
	if password := os.Getenv(EnvPrefix + "_DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}
	if password := os.Getenv(EnvPrefix + "_REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if secret := os.Getenv(EnvPrefix + "_STRIPE_WEBHOOK_SECRET"); secret != "" {
		cfg.Stripe.WebhookSecret = secret
	}
	if origins := os.Getenv(EnvPrefix + "_ALLOWED_ORIGINS"); origins != "" {
		cfg.Server.AllowedOrigins = parseCommaSeparatedList(origins)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Limiter.LoadLocation(); err != nil {
		return fmt.Errorf("invalid config: limiter.location: %w", err)
	}
	return nil
}

func parseCommaSeparatedList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.enable_swagger", true)

	// Database defaults
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "creditengine")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 30*time.Minute)
	v.SetDefault("database.max_retries", 3)
	v.SetDefault("database.retry_base_delay", 10*time.Millisecond)
	v.SetDefault("database.auto_migrate", true)

	// Redis defaults
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.breaker_failures", 5)
	v.SetDefault("redis.breaker_timeout", 30*time.Second)

	// NATS defaults
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.subject_prefix", "creditengine")

	// HTTP throttle defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.global_limit", 100)
	v.SetDefault("rate_limit.global_window", time.Minute)

	// Usage limiter defaults
	v.SetDefault("limiter.location", "UTC")
	v.SetDefault("limiter.config_cache_ttl", 5*time.Minute)

	// Ledger defaults
	v.SetDefault("ledger.free_daily_allowance", 3)

	// Referral defaults
	v.SetDefault("referral.referrer_bonus", 10)
	v.SetDefault("referral.welcome_bonus", 20)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "creditengine")
	v.SetDefault("metrics.path", "/metrics")
}
