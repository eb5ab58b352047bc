package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// DashboardMetrics is returned by GET /v1/metrics/dashboard.
type DashboardMetrics struct {
	ProductsFetched  int64   `json:"productsFetched"`
	ProductsDropped  int64   `json:"productsDropped"`
	TokenRefreshes   int64   `json:"tokenRefreshes"`
	RefreshFailures  int64   `json:"refreshFailures"`
	CacheHitRate     float64 `json:"cacheHitRate"`
	ErrorsReported   int64   `json:"errorsReported"`
	ExternalFailures int64   `json:"externalFailures"`
	Period           string  `json:"period"`
}

// ============================================================
// Generic API Response wrappers
// ============================================================

// ListResponse wraps list results.
type ListResponse[T any] struct {
	Data   []T           `json:"data"`
	Total  int           `json:"total"`
	Source ProductSource `json:"source,omitempty"`
}

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
