package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/stockdash-bfa-go/internal/config"
	"github.com/boddenberg/stockdash-bfa-go/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "BACKEND_URL", "CACHE_TTL", "STORE_BACKEND", "PUBLIC_ORIGIN", "ANCESTOR_ORIGINS", "CALLBACK_PATH"} {
		t.Setenv(k, "")
	}

	cfg := config.Load()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "http://localhost:3001", cfg.BackendURL)
	assert.Equal(t, 2*time.Minute, cfg.CacheTTL)
	assert.Equal(t, config.StoreMemory, cfg.StoreBackend)
	assert.Equal(t, "/", cfg.CallbackPath)
	assert.Nil(t, cfg.AncestorOrigins)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("HTTP_TIMEOUT", "3s")
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("PUBLIC_ORIGIN", "https://dash.example.com/")
	t.Setenv("CALLBACK_PATH", "/oauth/callback")
	t.Setenv("ANCESTOR_ORIGINS", " https://a.example.com , ,https://b.scf.usercontent.goog")
	t.Setenv("MAX_RETRIES", "not-a-number")

	cfg := config.Load()

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, config.StoreSQLite, cfg.StoreBackend)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, []string{"https://a.example.com", "https://b.scf.usercontent.goog"}, cfg.AncestorOrigins)

	assert.Equal(t, domain.ExecutionContext{
		Origin:          "https://dash.example.com",
		Pathname:        "/oauth/callback",
		Protocol:        "https:",
		AncestorOrigins: cfg.AncestorOrigins,
	}, cfg.ExecutionContext())
}

func TestValidate(t *testing.T) {
	cfg := config.Load()
	cfg.StoreBackend = "etcd"
	var cfgErr *domain.ErrConfiguration
	require.ErrorAs(t, cfg.Validate(), &cfgErr)
	assert.Equal(t, "STORE_BACKEND", cfgErr.Setting)

	cfg = config.Load()
	cfg.CallbackPath = "callback"
	require.ErrorAs(t, cfg.Validate(), &cfgErr)
	assert.Equal(t, "CALLBACK_PATH", cfgErr.Setting)
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("ML_CLIENT_ID=from-file\nLOG_LEVEL=debug\n"), 0o600))

	t.Setenv("ML_CLIENT_ID", "from-env")
	t.Setenv("LOG_LEVEL", "")
	os.Unsetenv("LOG_LEVEL")

	require.NoError(t, config.LoadDotEnv(path, filepath.Join(dir, "missing.env")))

	assert.Equal(t, "from-env", os.Getenv("ML_CLIENT_ID"))
	assert.Equal(t, "debug", os.Getenv("LOG_LEVEL"))
}
