package handler

import (
	"net/http"

	"github.com/boddenberg/stockdash-bfa-go/internal/infra/resilience"

	"go.uber.org/zap"
)

// BulkheadMiddleware caps concurrent requests. A request whose context ends
// while waiting for a slot gets 503.
func BulkheadMiddleware(bh *resilience.Bulkhead, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := bh.Acquire(r.Context()); err != nil {
				logger.Warn("bulkhead: request rejected",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusServiceUnavailable, "too many concurrent requests")
				return
			}
			defer bh.Release()
			next.ServeHTTP(w, r)
		})
	}
}
