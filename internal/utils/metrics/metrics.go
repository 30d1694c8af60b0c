package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics.
// All Record* methods are safe to call on a nil *Metrics.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Ledger metrics
	LedgerOperationsTotal *prometheus.CounterVec
	CreditsMovedTotal     *prometheus.CounterVec

	// Rate limit metrics
	RateLimitChecksTotal *prometheus.CounterVec

	// Payment metrics
	PaymentEventsTotal *prometheus.CounterVec

	// Usage and referral metrics
	UsageAdmissionsTotal    *prometheus.CounterVec
	ReferralsCompletedTotal prometheus.Counter

	// Database metrics
	TxRetriesTotal prometheus.Counter

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
}

// New creates a new Metrics instance registered with the default registry.
func New(namespace string) *Metrics {
	return NewWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a new Metrics instance registered with reg.
func NewWithRegisterer(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "creditengine"
	}
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		LedgerOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "operations_total",
				Help:      "Total number of ledger operations",
			},
			[]string{"operation", "result"}, // result: ok, invalid, insufficient, error
		),
		CreditsMovedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "credits_total",
				Help:      "Total number of credits moved, by transaction type",
			},
			[]string{"type"},
		),

		RateLimitChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ratelimit",
				Name:      "checks_total",
				Help:      "Total number of rate limit checks",
			},
			[]string{"resource", "tier", "outcome"},
		),

		PaymentEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payment",
				Name:      "events_total",
				Help:      "Total number of payment events received",
			},
			[]string{"provider", "type", "outcome"}, // outcome: applied, duplicate, failed
		),

		UsageAdmissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "usage",
				Name:      "admissions_total",
				Help:      "Total number of usage admission attempts",
			},
			[]string{"resource", "outcome"},
		),
		ReferralsCompletedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "referral",
				Name:      "completed_total",
				Help:      "Total number of completed referrals",
			},
		),

		TxRetriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "tx_retries_total",
				Help:      "Total number of transaction retries after a conflict",
			},
		),

		CacheHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Total number of cache misses",
			},
			[]string{"cache"},
		),
	}
}

// --- Convenience methods ---

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	statusStr := statusCodeToString(status)
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordLedgerOperation records the outcome of a ledger operation.
func (m *Metrics) RecordLedgerOperation(operation, result string) {
	if m == nil {
		return
	}
	m.LedgerOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordCredits records credits moved by a transaction type.
func (m *Metrics) RecordCredits(txType string, amount int64) {
	if m == nil || amount == 0 {
		return
	}
	if amount < 0 {
		amount = -amount
	}
	m.CreditsMovedTotal.WithLabelValues(txType).Add(float64(amount))
}

// RecordRateLimitCheck records a rate limit decision.
func (m *Metrics) RecordRateLimitCheck(resource, tier, outcome string) {
	if m == nil {
		return
	}
	m.RateLimitChecksTotal.WithLabelValues(resource, tier, outcome).Inc()
}

// RecordPaymentEvent records a payment event outcome.
func (m *Metrics) RecordPaymentEvent(provider, eventType, outcome string) {
	if m == nil {
		return
	}
	m.PaymentEventsTotal.WithLabelValues(provider, eventType, outcome).Inc()
}

// RecordUsageAdmission records a usage admission outcome.
func (m *Metrics) RecordUsageAdmission(resource, outcome string) {
	if m == nil {
		return
	}
	m.UsageAdmissionsTotal.WithLabelValues(resource, outcome).Inc()
}

// RecordReferralCompleted records a completed referral.
func (m *Metrics) RecordReferralCompleted() {
	if m == nil {
		return
	}
	m.ReferralsCompletedTotal.Inc()
}

// RecordTxRetry records a retried transaction.
func (m *Metrics) RecordTxRetry() {
	if m == nil {
		return
	}
	m.TxRetriesTotal.Inc()
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit(cache string) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(cache).Inc()
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss(cache string) {
	if m == nil {
		return
	}
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

// statusCodeToString converts an HTTP status code to a string category.
func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
