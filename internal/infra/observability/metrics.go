package observability

import (
	"time"

	"github.com/boddenberg/stockdash-bfa-go/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the stock dashboard.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	authEvents      *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	products        *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockdash_request_duration_seconds",
				Help:    "Duration of operations by name.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockdash_external_errors_total",
				Help: "Total errors from the marketplace and the token backend.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockdash_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockdash_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		authEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockdash_auth_events_total",
				Help: "OAuth events by kind (login, callback, refresh, logout) and outcome.",
			},
			[]string{"event", "outcome"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockdash_notifications_total",
				Help: "User-facing notifications by severity.",
			},
			[]string{"severity"},
		),
		products: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockdash_products_total",
				Help: "Marketplace item details fetched or dropped.",
			},
			[]string{"result"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrAuthEvent counts an OAuth event; ok selects the outcome label.
func (m *Metrics) IncrAuthEvent(event string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.authEvents.WithLabelValues(event, outcome).Inc()
}

// IncrNotification counts a notification by severity.
func (m *Metrics) IncrNotification(severity domain.Severity) {
	m.notifications.WithLabelValues(string(severity)).Inc()
}

// AddProducts records fetched and dropped item details of one listing call.
func (m *Metrics) AddProducts(fetched, dropped int) {
	m.products.WithLabelValues("fetched").Add(float64(fetched))
	m.products.WithLabelValues("dropped").Add(float64(dropped))
}

// Snapshot returns the counters behind GET /v1/metrics/dashboard.
func (m *Metrics) Snapshot() *domain.DashboardMetrics {
	hits := getCounterValue(m.cacheHits, "products")
	misses := getCounterValue(m.cacheMisses, "products")

	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	external := float64(0)
	for _, svc := range []string{"marketplace", "token_backend"} {
		external += getCounterValue(m.externalErrors, svc)
	}

	return &domain.DashboardMetrics{
		ProductsFetched:  int64(getCounterValue(m.products, "fetched")),
		ProductsDropped:  int64(getCounterValue(m.products, "dropped")),
		TokenRefreshes:   int64(getCounterValue(m.authEvents, "refresh", "success")),
		RefreshFailures:  int64(getCounterValue(m.authEvents, "refresh", "failure")),
		CacheHitRate:     hitRate,
		ErrorsReported:   int64(getCounterValue(m.notifications, string(domain.SeverityError))),
		ExternalFailures: int64(external),
		Period:           "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
