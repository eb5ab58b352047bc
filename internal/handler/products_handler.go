package handler

import (
	"net/http"
	"strconv"

	"github.com/boddenberg/stockdash-bfa-go/internal/domain"
	"github.com/boddenberg/stockdash-bfa-go/internal/infra/notify"
	"github.com/boddenberg/stockdash-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Products: /v1/products
// ============================================================

func listProductsHandler(svc *service.Dashboard, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/products")
		defer span.End()

		resp, err := svc.ProductViews(ctx, r.URL.Query().Get("q"), queryBool(r, "refresh"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int("products.count", resp.Total))
		writeJSON(w, http.StatusOK, resp)
	}
}

func getProductHandler(svc *service.Dashboard, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/products/{id}")
		defer span.End()

		view, err := svc.Product(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func productHistoryHandler(svc *service.Dashboard, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/products/{id}/history")
		defer span.End()

		days := 0
		if v := r.URL.Query().Get("days"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "days must be an integer")
				return
			}
			days = n
		}

		history, err := svc.History(ctx, chi.URLParam(r, "id"), days)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.StockHistoryEntry]{
			Data:  history,
			Total: len(history),
		})
	}
}

// ============================================================
// Dashboard
// ============================================================

func summaryHandler(svc *service.Dashboard, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard/summary")
		defer span.End()

		summary, err := svc.Summary(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func notificationsHandler(feed *notify.Feed) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items := feed.Since(r.URL.Query().Get("since"))
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Notification]{
			Data:  items,
			Total: len(items),
		})
	}
}

func dashboardMetricsHandler(svc *service.Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Metrics())
	}
}
