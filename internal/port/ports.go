// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/stockdash-bfa-go/internal/domain"
)

// KeyValueStore persists the marketplace credentials between restarts.
// Get reports ok=false for a missing key.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Pinger is implemented by stores that can probe their backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Notifier delivers user-facing messages (the dashboard toasts).
type Notifier interface {
	Report(message string, severity domain.Severity)
}

// RandomSource yields uniform values in [0, 1).
type RandomSource interface {
	Float64() float64
}

// MarketplaceClient is the OAuth-aware marketplace API client.
type MarketplaceClient interface {
	IsAuthenticated() bool
	ClientID() string
	UserID() string
	RedirectURI() (domain.RedirectURI, error)
	Authenticate() (string, error)
	AuthenticateWithState(state string) (string, error)
	HandleCallback(ctx context.Context, code string) bool
	RefreshTokenFlow(ctx context.Context) bool
	GetMyProducts(ctx context.Context) []domain.Product
	Logout()
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	Clear()
}
