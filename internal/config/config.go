package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/stockdash-bfa-go/internal/domain"
)

// Store backends selectable with STORE_BACKEND.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Marketplace
	BackendURL         string // token-exchange proxy
	MLClientID         string
	MLAPIBaseURL       string
	MLAuthBaseURL      string
	SandboxHostPattern string

	// Where the dashboard is served; used to derive the OAuth redirect URI.
	PublicOrigin    string
	CallbackPath    string
	AncestorOrigins []string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Credential store
	StoreBackend       string
	SQLiteDSN          string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	TokenEncryptionKey string

	// OAuth state signing
	StateSecret string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		BackendURL:         getEnv("BACKEND_URL", "http://localhost:3001"),
		MLClientID:         getEnv("ML_CLIENT_ID", ""),
		MLAPIBaseURL:       getEnv("ML_API_BASE_URL", "https://api.mercadolibre.com"),
		MLAuthBaseURL:      getEnv("ML_AUTH_BASE_URL", "https://auth.mercadolivre.com.br"),
		SandboxHostPattern: getEnv("SANDBOX_HOST_PATTERN", "scf.usercontent.goog"),

		PublicOrigin:    strings.TrimRight(getEnv("PUBLIC_ORIGIN", ""), "/"),
		CallbackPath:    getEnv("CALLBACK_PATH", "/"),
		AncestorOrigins: getEnvList("ANCESTOR_ORIGINS"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		CacheTTL: getEnvDuration("CACHE_TTL", 2*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		StoreBackend:       strings.ToLower(getEnv("STORE_BACKEND", StoreMemory)),
		SQLiteDSN:          getEnv("SQLITE_DSN", "stockdash.db"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		TokenEncryptionKey: getEnv("TOKEN_ENCRYPTION_KEY", ""),

		StateSecret: getEnv("STATE_SECRET", ""),
	}
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory, StoreSQLite, StoreRedis:
	default:
		return &domain.ErrConfiguration{
			Setting: "STORE_BACKEND",
			Message: fmt.Sprintf("unknown backend %q (want memory, sqlite or redis)", c.StoreBackend),
		}
	}
	if c.Port <= 0 || c.Port > 65535 {
		return &domain.ErrConfiguration{Setting: "PORT", Message: fmt.Sprintf("invalid port %d", c.Port)}
	}
	if !strings.HasPrefix(c.CallbackPath, "/") {
		return &domain.ErrConfiguration{Setting: "CALLBACK_PATH", Message: "must start with /"}
	}
	return nil
}

// ExecutionContext describes the public location of the dashboard for
// redirect URI resolution. It is empty when PUBLIC_ORIGIN is unset.
func (c *Config) ExecutionContext() domain.ExecutionContext {
	if c.PublicOrigin == "" {
		return domain.ExecutionContext{AncestorOrigins: c.AncestorOrigins}
	}
	protocol := ""
	if i := strings.Index(c.PublicOrigin, "//"); i > 0 {
		protocol = c.PublicOrigin[:i]
	}
	return domain.ExecutionContext{
		Origin:          c.PublicOrigin,
		Pathname:        c.CallbackPath,
		Protocol:        protocol,
		AncestorOrigins: c.AncestorOrigins,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
