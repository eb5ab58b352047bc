package mercadolivre_test

import (
	"testing"

	"github.com/boddenberg/stockdash-bfa-go/internal/domain"
	"github.com/boddenberg/stockdash-bfa-go/internal/infra/mercadolivre"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sandbox = mercadolivre.DefaultSandboxHostPattern

func TestResolveRedirectURI(t *testing.T) {
	tests := []struct {
		name     string
		ec       domain.ExecutionContext
		want     string
		strategy domain.RedirectStrategy
	}{
		{
			name:     "sandbox origin wins over path",
			ec:       domain.ExecutionContext{Origin: "https://abc123.scf.usercontent.goog", Pathname: "/deep/path"},
			want:     "https://abc123.scf.usercontent.goog/",
			strategy: domain.StrategySandboxOrigin,
		},
		{
			name:     "sandbox origin over http is upgraded",
			ec:       domain.ExecutionContext{Origin: "http://abc123.scf.usercontent.goog"},
			want:     "https://abc123.scf.usercontent.goog/",
			strategy: domain.StrategySandboxOrigin,
		},
		{
			name: "first sandbox ancestor",
			ec: domain.ExecutionContext{
				Origin:          "https://frame.example.com",
				Pathname:        "/app",
				AncestorOrigins: []string{"https://outer.example.com", "https://one.scf.usercontent.goog", "https://two.scf.usercontent.goog"},
			},
			want:     "https://one.scf.usercontent.goog/",
			strategy: domain.StrategySandboxAncestor,
		},
		{
			name: "ancestors without sandbox fall back",
			ec: domain.ExecutionContext{
				Origin:          "https://frame.example.com",
				Pathname:        "/app",
				AncestorOrigins: []string{"https://outer.example.com"},
			},
			want:     "https://frame.example.com/app",
			strategy: domain.StrategyFallback,
		},
		{
			name:     "http is upgraded to https",
			ec:       domain.ExecutionContext{Origin: "http://dash.example.com", Pathname: "/callback"},
			want:     "https://dash.example.com/callback",
			strategy: domain.StrategyFallback,
		},
		{
			name:     "localhost keeps http",
			ec:       domain.ExecutionContext{Origin: "http://localhost:5173"},
			want:     "http://localhost:5173/",
			strategy: domain.StrategyFallback,
		},
		{
			name:     "duplicate slashes are collapsed",
			ec:       domain.ExecutionContext{Origin: "https://dash.example.com/", Pathname: "//a//b"},
			want:     "https://dash.example.com/a/b",
			strategy: domain.StrategyFallback,
		},
		{
			name:     "relative path gets a leading slash",
			ec:       domain.ExecutionContext{Origin: "https://dash.example.com", Pathname: "cb"},
			want:     "https://dash.example.com/cb",
			strategy: domain.StrategyFallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mercadolivre.ResolveRedirectURI(tt.ec, sandbox)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Value)
			assert.Equal(t, tt.strategy, got.Strategy)
		})
	}
}

func TestResolveRedirectURI_Unresolvable(t *testing.T) {
	tests := []struct {
		name   string
		ec     domain.ExecutionContext
		reason string
	}{
		{"blob document", domain.ExecutionContext{Origin: "https://dash.example.com", Protocol: "blob:"}, domain.RedirectBlobContext},
		{"no origin", domain.ExecutionContext{Pathname: "/"}, domain.RedirectEmptyOrigin},
		{"opaque origin", domain.ExecutionContext{Origin: "null"}, domain.RedirectEmptyOrigin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mercadolivre.ResolveRedirectURI(tt.ec, sandbox)
			var unresolved *domain.ErrRedirectUnresolvable
			require.ErrorAs(t, err, &unresolved)
			assert.Equal(t, tt.reason, unresolved.Reason)
		})
	}
}

func TestResolveRedirectURI_SandboxOriginIgnoresBlob(t *testing.T) {
	got, err := mercadolivre.ResolveRedirectURI(domain.ExecutionContext{
		Origin:   "https://abc.scf.usercontent.goog",
		Protocol: "blob:",
	}, sandbox)
	require.NoError(t, err)
	assert.Equal(t, "https://abc.scf.usercontent.goog/", got.Value)
}
