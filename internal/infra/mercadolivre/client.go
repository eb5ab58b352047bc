// Package mercadolivre is the OAuth-aware Mercado Livre API client. It owns
// the seller credentials, exchanges authorization codes through the token
// backend and reads the seller's listings.
//
// Runtime failures never surface as errors from the public operations:
// they are reported through the notifier and yield false or an empty
// slice. Only configuration problems (missing client id, unresolvable
// redirect URI) are returned as typed errors.
package mercadolivre

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/stockdash-bfa-go/internal/domain"
	"github.com/boddenberg/stockdash-bfa-go/internal/infra/observability"
	"github.com/boddenberg/stockdash-bfa-go/internal/port"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("mercadolivre")

const (
	DefaultAPIBaseURL         = "https://api.mercadolibre.com"
	DefaultAuthBaseURL        = "https://auth.mercadolivre.com.br"
	DefaultSandboxHostPattern = "scf.usercontent.goog"

	tokenPath = "/api/mercadolivre/token"

	serviceMarketplace  = "marketplace"
	serviceTokenBackend = "token_backend"
)

// Options configures a Client. Zero values fall back to the defaults above
// and http.DefaultClient.
type Options struct {
	ClientID           string
	BackendURL         string
	APIBaseURL         string
	AuthBaseURL        string
	SandboxHostPattern string
	ExecutionContext   domain.ExecutionContext

	HTTPClient *http.Client
	Breaker    *gobreaker.CircuitBreaker
	Metrics    *observability.Metrics
	Clock      func() time.Time
}

// Client talks to the marketplace on behalf of one seller.
type Client struct {
	clientID    string
	backendURL  string
	apiBaseURL  string
	authBaseURL string
	sandboxHost string
	execCtx     domain.ExecutionContext

	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
	metrics    *observability.Metrics
	now        func() time.Time

	store    port.KeyValueStore
	notifier port.Notifier
	logger   *zap.Logger

	mu    sync.RWMutex
	creds domain.Credentials
}

var _ port.MarketplaceClient = (*Client)(nil)

// NewClient builds a client and restores any credentials persisted in store.
func NewClient(opts Options, store port.KeyValueStore, notifier port.Notifier, logger *zap.Logger) *Client {
	c := &Client{
		clientID:    strings.TrimSpace(opts.ClientID),
		backendURL:  strings.TrimRight(opts.BackendURL, "/"),
		apiBaseURL:  strings.TrimRight(orDefault(opts.APIBaseURL, DefaultAPIBaseURL), "/"),
		authBaseURL: strings.TrimRight(orDefault(opts.AuthBaseURL, DefaultAuthBaseURL), "/"),
		sandboxHost: orDefault(opts.SandboxHostPattern, DefaultSandboxHostPattern),
		execCtx:     opts.ExecutionContext,
		httpClient:  opts.HTTPClient,
		cb:          opts.Breaker,
		metrics:     opts.Metrics,
		now:         opts.Clock,
		store:       store,
		notifier:    notifier,
		logger:      logger.With(zap.String("component", "mercadolivre")),
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.now == nil {
		c.now = time.Now
	}

	c.creds = c.loadCredentials(context.Background())
	c.logger.Debug("client created",
		zap.String("client_id", c.clientID),
		zap.Bool("authenticated", c.creds.AccessToken != ""),
	)
	return c
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

// IsAuthenticated reports whether an access token is held.
func (c *Client) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds.AccessToken != ""
}

// ClientID returns the marketplace application id this client was built with.
func (c *Client) ClientID() string {
	return c.clientID
}

// UserID returns the authenticated seller id, or "".
func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds.UserID
}

// Credentials returns a copy of the current credential state.
func (c *Client) Credentials() domain.Credentials {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds
}

// Logout forgets the tokens and the user id, in memory and in the store.
// The persisted application id is kept.
func (c *Client) Logout() {
	c.mu.Lock()
	c.creds = domain.Credentials{}
	c.mu.Unlock()

	err := c.store.Delete(context.Background(),
		domain.KeyAccessToken, domain.KeyRefreshToken, domain.KeyUserID)
	if err != nil {
		c.logger.Error("failed to clear persisted credentials", zap.Error(err))
	}
}

func (c *Client) loadCredentials(ctx context.Context) domain.Credentials {
	var creds domain.Credentials
	for key, dst := range map[string]*string{
		domain.KeyAccessToken:  &creds.AccessToken,
		domain.KeyRefreshToken: &creds.RefreshToken,
		domain.KeyUserID:       &creds.UserID,
	} {
		v, ok, err := c.store.Get(ctx, key)
		if err != nil {
			c.logger.Warn("failed to load credential", zap.String("key", key), zap.Error(err))
			continue
		}
		if ok {
			*dst = v
		}
	}
	return creds
}

// saveCredentials replaces the in-memory state and mirrors it to the
// store. Empty fields are removed from the store.
func (c *Client) saveCredentials(ctx context.Context, creds domain.Credentials) {
	c.mu.Lock()
	c.creds = creds
	c.mu.Unlock()

	var empty []string
	for key, v := range map[string]string{
		domain.KeyAccessToken:  creds.AccessToken,
		domain.KeyRefreshToken: creds.RefreshToken,
		domain.KeyUserID:       creds.UserID,
	} {
		if v == "" {
			empty = append(empty, key)
			continue
		}
		if err := c.store.Set(ctx, key, v); err != nil {
			c.logger.Error("failed to persist credential", zap.String("key", key), zap.Error(err))
		}
	}
	if len(empty) > 0 {
		if err := c.store.Delete(ctx, empty...); err != nil {
			c.logger.Error("failed to clear credential", zap.Strings("keys", empty), zap.Error(err))
		}
	}
}

func (c *Client) externalError(service string) {
	if c.metrics != nil {
		c.metrics.IncrExternalError(service)
	}
}

func (c *Client) authEvent(event string, ok bool) {
	if c.metrics != nil {
		c.metrics.IncrAuthEvent(event, ok)
	}
}
