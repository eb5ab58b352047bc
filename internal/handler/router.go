package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/stockdash-bfa-go/internal/domain"
	"github.com/boddenberg/stockdash-bfa-go/internal/infra/notify"
	"github.com/boddenberg/stockdash-bfa-go/internal/infra/observability"
	"github.com/boddenberg/stockdash-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/stockdash-bfa-go/internal/port"
	"github.com/boddenberg/stockdash-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// RouterOptions configures the HTTP surface.
type RouterOptions struct {
	// CallbackPath is where the marketplace sends the user back with ?code=.
	// "/" is always handled.
	CallbackPath   string
	MaxConcurrency int
}

// NewRouter creates the HTTP router with all routes and middleware.
// store may be nil; when set it is probed by /healthz.
func NewRouter(
	svc *service.Dashboard,
	feed *notify.Feed,
	states *StateSigner,
	store port.Pinger,
	opts RouterOptions,
	metrics *observability.Metrics,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.Tracing)
	r.Use(observability.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(store, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- OAuth callback ---
	r.Get("/", callbackHandler(svc, states, logger))
	if opts.CallbackPath != "" && opts.CallbackPath != "/" {
		r.Get(opts.CallbackPath, callbackHandler(svc, states, logger))
	}

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		if opts.MaxConcurrency > 0 {
			r.Use(BulkheadMiddleware(resilience.NewBulkhead(opts.MaxConcurrency), logger))
		}

		r.Route("/auth", func(r chi.Router) {
			r.Get("/login", loginHandler(svc, states, logger))
			r.Get("/status", authStatusHandler(svc))
			r.Post("/refresh", refreshHandler(svc, logger))
			r.Post("/logout", logoutHandler(svc))
			r.Put("/client-id", clientIDHandler(svc, logger))
			r.Get("/redirect-uri", redirectURIHandler(svc, logger))
		})

		r.Get("/products", listProductsHandler(svc, logger))
		r.Get("/products/{id}", getProductHandler(svc, logger))
		r.Get("/products/{id}/history", productHistoryHandler(svc, logger))
		r.Get("/dashboard/summary", summaryHandler(svc, logger))
		r.Get("/notifications", notificationsHandler(feed))
		r.Get("/metrics/dashboard", dashboardMetricsHandler(svc))
	})

	return r
}

// ============================================================
// Probes
// ============================================================

func healthzHandler(store port.Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "stockdash-bfa", Status: "healthy", LastChecked: now},
		}

		if store != nil {
			start := time.Now()
			err := store.Ping(r.Context())
			status := "healthy"
			if err != nil {
				logger.Warn("credential store ping failed", zap.Error(err))
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name:        "credential-store",
				Status:      status,
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status != "healthy" {
				overallStatus = s.Status
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
