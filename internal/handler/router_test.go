package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/stockdash-bfa-go/internal/domain"
	"github.com/boddenberg/stockdash-bfa-go/internal/handler"
	"github.com/boddenberg/stockdash-bfa-go/internal/infra/cache"
	"github.com/boddenberg/stockdash-bfa-go/internal/infra/kvstore"
	"github.com/boddenberg/stockdash-bfa-go/internal/infra/notify"
	"github.com/boddenberg/stockdash-bfa-go/internal/infra/observability"
	"github.com/boddenberg/stockdash-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/stockdash-bfa-go/internal/port"
	"github.com/boddenberg/stockdash-bfa-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Mocks ---

type mockClient struct {
	mu            sync.Mutex
	clientID      string
	authenticated bool
	codes         []string
}

func (m *mockClient) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticated
}
func (m *mockClient) ClientID() string { return m.clientID }
func (m *mockClient) UserID() string   { return "" }
func (m *mockClient) RedirectURI() (domain.RedirectURI, error) {
	return domain.RedirectURI{Value: "http://localhost:8080/", Strategy: domain.StrategyFallback}, nil
}
func (m *mockClient) Authenticate() (string, error) { return m.AuthenticateWithState("") }
func (m *mockClient) AuthenticateWithState(state string) (string, error) {
	return "https://auth.example.com/authorization?client_id=" + m.clientID + "&state=" + url.QueryEscape(state), nil
}
func (m *mockClient) HandleCallback(_ context.Context, code string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes = append(m.codes, code)
	return false
}
func (m *mockClient) RefreshTokenFlow(context.Context) bool          { return false }
func (m *mockClient) GetMyProducts(context.Context) []domain.Product { return []domain.Product{} }
func (m *mockClient) Logout()                                        {}

type testServer struct {
	router http.Handler
	client *mockClient
	states *handler.StateSigner
	feed   *notify.Feed
}

func newTestServer(t *testing.T, clientID string) *testServer {
	t.Helper()
	metrics := observability.NewMetrics()
	logger := zap.NewNop()
	store := kvstore.NewMemory()
	feed := notify.NewFeed(0, metrics, logger)
	client := &mockClient{clientID: clientID}

	c := cache.New[[]domain.Product](time.Minute)
	t.Cleanup(c.Close)

	svc := service.NewDashboard(context.Background(), func(id string) port.MarketplaceClient {
		client.clientID = id
		return client
	}, store, c, feed, metrics, logger, service.DashboardOptions{DefaultClientID: clientID})

	states, err := handler.NewStateSigner("test-secret", time.Minute)
	require.NoError(t, err)
	t.Cleanup(states.Close)

	router := handler.NewRouter(svc, feed, states, store,
		handler.RouterOptions{CallbackPath: "/callback", MaxConcurrency: 4}, metrics, logger)
	return &testServer{router: router, client: client, states: states, feed: feed}
}

func (s *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

// --- Probes ---

func TestOperationalEndpoints(t *testing.T) {
	s := newTestServer(t, "123")
	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/ping"} {
		rec := s.do(http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	health := decode[domain.HealthStatus](t, s.do(http.MethodGet, "/healthz", ""))
	assert.Equal(t, "healthy", health.Status)
	require.Len(t, health.Services, 2)
	assert.Equal(t, "credential-store", health.Services[1].Name)
}

// --- Products ---

func TestListProducts_MockWhenDisconnected(t *testing.T) {
	s := newTestServer(t, "123")

	rec := s.do(http.MethodGet, "/v1/products", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []struct {
			ID      string `json:"id"`
			Metrics struct {
				RiskLevel      string   `json:"riskLevel"`
				DaysUntilEmpty *float64 `json:"daysUntilEmpty"`
			} `json:"metrics"`
		} `json:"data"`
		Total  int    `json:"total"`
		Source string `json:"source"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 4, body.Total)
	assert.Equal(t, "mock", body.Source)
	assert.Equal(t, "MLB004", body.Data[3].ID)
	assert.Equal(t, "high", body.Data[3].Metrics.RiskLevel)
	require.NotNil(t, body.Data[3].Metrics.DaysUntilEmpty)
	assert.Equal(t, 4.0, *body.Data[3].Metrics.DaysUntilEmpty)
}

func TestListProducts_Search(t *testing.T) {
	s := newTestServer(t, "123")

	rec := s.do(http.MethodGet, "/v1/products?q="+url.QueryEscape("CRÍTICO"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[domain.ListResponse[domain.ProductView]](t, rec)
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "MLB004", resp.Data[0].ID)
}

func TestGetProduct(t *testing.T) {
	s := newTestServer(t, "123")

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/products/MLB002", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/v1/products/MLB999", "").Code)
}

func TestProductHistory(t *testing.T) {
	s := newTestServer(t, "123")

	rec := s.do(http.MethodGet, "/v1/products/MLB001/history?days=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[domain.ListResponse[domain.StockHistoryEntry]](t, rec)
	assert.Equal(t, 7, resp.Total)
	assert.Equal(t, 75, resp.Data[0].Estoque)
	assert.Equal(t, 21, resp.Data[0].EstoqueMinimo)

	rec = s.do(http.MethodGet, "/v1/products/MLB001/history", "")
	assert.Equal(t, 30, decode[domain.ListResponse[domain.StockHistoryEntry]](t, rec).Total)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/v1/products/MLB001/history?days=15", "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/v1/products/MLB001/history?days=abc", "").Code)
}

func TestSummary(t *testing.T) {
	s := newTestServer(t, "123")

	rec := s.do(http.MethodGet, "/v1/dashboard/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Total           int    `json:"total"`
		CriticalCount   int    `json:"criticalCount"`
		TotalStockValue string `json:"totalStockValue"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 4, body.Total)
	assert.Equal(t, 1, body.CriticalCount)
	assert.Equal(t, "17902", body.TotalStockValue)
}

// --- OAuth callback ---

func (s *testServer) signedState(t *testing.T) string {
	t.Helper()
	state, err := s.states.Sign()
	require.NoError(t, err)
	return url.QueryEscape(state)
}

func TestCallback_StripsQueryAfterExchange(t *testing.T) {
	s := newTestServer(t, "123")

	rec := s.do(http.MethodGet, "/?code=TG-abc&state="+s.signedState(t), "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, []string{"TG-abc"}, s.client.codes)
}

func TestCallback_RequiresState(t *testing.T) {
	s := newTestServer(t, "123")

	rec := s.do(http.MethodGet, "/?code=TG-abc", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, s.client.codes)
}

func TestCallback_RejectsReplayedState(t *testing.T) {
	s := newTestServer(t, "123")
	state := s.signedState(t)

	rec := s.do(http.MethodGet, "/callback?code=TG-abc&state="+state, "")
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = s.do(http.MethodGet, "/callback?code=TG-def&state="+state, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, []string{"TG-abc"}, s.client.codes)
}

func TestCallback_ConfiguredPathWithState(t *testing.T) {
	s := newTestServer(t, "123")
	state, err := s.states.Sign()
	require.NoError(t, err)

	rec := s.do(http.MethodGet, "/callback?code=TG-abc&state="+url.QueryEscape(state), "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/callback", rec.Header().Get("Location"))
}

func TestCallback_RejectsForeignState(t *testing.T) {
	s := newTestServer(t, "123")
	other, err := handler.NewStateSigner("another-secret", time.Minute)
	require.NoError(t, err)
	state, err := other.Sign()
	require.NoError(t, err)

	rec := s.do(http.MethodGet, "/callback?code=TG-abc&state="+url.QueryEscape(state), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, s.client.codes)
}

func TestCallback_AuthorizationDenied(t *testing.T) {
	s := newTestServer(t, "123")

	rec := s.do(http.MethodGet, "/?error=access_denied", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, s.client.codes)
}

func TestCallback_NoCodeReportsStatus(t *testing.T) {
	s := newTestServer(t, "123")

	rec := s.do(http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[domain.AuthStatus](t, rec)
	assert.False(t, st.Authenticated)
	assert.Equal(t, "123", st.ClientID)
}

// --- Auth ---

func TestLogin_RedirectsWithSignedState(t *testing.T) {
	s := newTestServer(t, "123")

	rec := s.do(http.MethodGet, "/v1/auth/login", "")
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "auth.example.com", loc.Host)
	assert.NoError(t, s.states.Verify(loc.Query().Get("state")))
}

func TestLogin_MissingClientID(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.do(http.MethodGet, "/v1/auth/login", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetClientID(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.do(http.MethodPut, "/v1/auth/client-id", `{"clientId":"777"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[domain.AuthStatus](t, rec)
	assert.Equal(t, "777", st.ClientID)
	assert.True(t, st.Configured)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, "/v1/auth/client-id", `{`).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, "/v1/auth/client-id", `{"clientId":""}`).Code)
}

func TestRedirectURI_WarnsOnLocalHTTP(t *testing.T) {
	s := newTestServer(t, "123")

	rec := s.do(http.MethodGet, "/v1/auth/redirect-uri", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		RedirectURI string `json:"redirectUri"`
		Strategy    string `json:"strategy"`
		Warning     string `json:"warning"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "http://localhost:8080/", body.RedirectURI)
	assert.Equal(t, "fallback", body.Strategy)
	assert.NotEmpty(t, body.Warning)
}

func TestRefresh_FailureIsUnauthorized(t *testing.T) {
	s := newTestServer(t, "123")
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/v1/auth/refresh", "").Code)
}

func TestLogoutAndNotifications(t *testing.T) {
	s := newTestServer(t, "123")

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/v1/auth/logout", "").Code)

	rec := s.do(http.MethodGet, "/v1/notifications", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[domain.ListResponse[domain.Notification]](t, rec)
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "Desconectado com sucesso.", resp.Data[0].Message)
	assert.Equal(t, domain.SeverityInfo, resp.Data[0].Severity)

	rec = s.do(http.MethodGet, "/v1/notifications?since="+resp.Data[0].ID, "")
	assert.Equal(t, 0, decode[domain.ListResponse[domain.Notification]](t, rec).Total)
}

func TestDashboardMetrics(t *testing.T) {
	s := newTestServer(t, "123")

	rec := s.do(http.MethodGet, "/v1/metrics/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	m := decode[domain.DashboardMetrics](t, rec)
	assert.Equal(t, "all_time", m.Period)
}

// --- Middleware ---

func TestBulkheadMiddleware_RejectsWhenSaturated(t *testing.T) {
	bh := resilience.NewBulkhead(1)
	require.NoError(t, bh.Acquire(context.Background()))

	h := handler.BulkheadMiddleware(bh, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/v1/products", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
