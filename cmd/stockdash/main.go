package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/stockdash-bfa-go/internal/config"
	"github.com/boddenberg/stockdash-bfa-go/internal/domain"
	"github.com/boddenberg/stockdash-bfa-go/internal/handler"
	"github.com/boddenberg/stockdash-bfa-go/internal/infra/cache"
	"github.com/boddenberg/stockdash-bfa-go/internal/infra/kvstore"
	"github.com/boddenberg/stockdash-bfa-go/internal/infra/mercadolivre"
	"github.com/boddenberg/stockdash-bfa-go/internal/infra/notify"
	"github.com/boddenberg/stockdash-bfa-go/internal/infra/observability"
	"github.com/boddenberg/stockdash-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/stockdash-bfa-go/internal/port"
	"github.com/boddenberg/stockdash-bfa-go/internal/service"

	"go.uber.org/zap"
)

// credentialStore is what every kvstore backend provides.
type credentialStore interface {
	port.KeyValueStore
	port.Pinger
}

func main() {
	// --- Load .env file (for local development) ---
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid .env file: %v\n", err)
	}

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("backend_url", cfg.BackendURL),
		zap.String("public_origin", cfg.PublicOrigin),
		zap.String("callback_path", cfg.CallbackPath),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Bool("store_encrypted", cfg.TokenEncryptionKey != ""),
		zap.Bool("client_id_set", cfg.MLClientID != ""),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, observability.ServiceName)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("marketplace", logger)

	// --- Credential store ---
	store, closeStore, err := openStore(cfg)
	if err != nil {
		logger.Fatal("failed to open credential store", zap.Error(err))
	}
	defer closeStore()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 30*time.Second)
	err = resilience.RetryWithBackoff(pingCtx, resilienceCfg, func(ctx context.Context) error {
		return store.Ping(ctx)
	})
	cancelPing()
	if err != nil {
		logger.Fatal("credential store unreachable", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}

	// --- Notifications & cache ---
	feed := notify.NewFeed(notify.DefaultCapacity, metrics, logger)
	productCache := cache.New[[]domain.Product](cfg.CacheTTL)
	defer productCache.Close()

	// --- Marketplace client ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	newClient := func(clientID string) port.MarketplaceClient {
		return mercadolivre.NewClient(mercadolivre.Options{
			ClientID:           clientID,
			BackendURL:         cfg.BackendURL,
			APIBaseURL:         cfg.MLAPIBaseURL,
			AuthBaseURL:        cfg.MLAuthBaseURL,
			SandboxHostPattern: cfg.SandboxHostPattern,
			ExecutionContext:   cfg.ExecutionContext(),
			HTTPClient:         httpClient,
			Breaker:            cb,
			Metrics:            metrics,
		}, store, feed, logger)
	}

	// --- Services ---
	dashboard := service.NewDashboard(context.Background(), newClient, store, productCache, feed, metrics, logger,
		service.DashboardOptions{DefaultClientID: cfg.MLClientID})

	if cfg.PublicOrigin == "" {
		logger.Warn("PUBLIC_ORIGIN not set: the OAuth redirect uri cannot be derived")
	}

	// --- Router ---
	states, err := handler.NewStateSigner(cfg.StateSecret, handler.DefaultStateTTL)
	if err != nil {
		logger.Fatal("failed to init oauth state signer", zap.Error(err))
	}
	defer states.Close()
	router := handler.NewRouter(dashboard, feed, states, store, handler.RouterOptions{
		CallbackPath:   cfg.CallbackPath,
		MaxConcurrency: cfg.MaxConcurrency,
	}, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

// openStore builds the configured credential store, wrapped in the
// encrypting decorator when TOKEN_ENCRYPTION_KEY is set.
func openStore(cfg *config.Config) (credentialStore, func() error, error) {
	var (
		store credentialStore
		closeFn = func() error { return nil }
	)

	switch cfg.StoreBackend {
	case config.StoreSQLite:
		s, err := kvstore.OpenSQLite(cfg.SQLiteDSN)
		if err != nil {
			return nil, nil, err
		}
		store, closeFn = s, s.Close
	case config.StoreRedis:
		s := kvstore.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		store, closeFn = s, s.Close
	default:
		store = kvstore.NewMemory()
	}

	if cfg.TokenEncryptionKey != "" {
		store = kvstore.NewEncrypted(store, cfg.TokenEncryptionKey)
	}
	return store, closeFn, nil
}
