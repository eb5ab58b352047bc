package handler

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/boddenberg/stockdash-bfa-go/internal/domain"
	"github.com/boddenberg/stockdash-bfa-go/internal/infra/cache"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultStateTTL bounds the time between login and callback.
const DefaultStateTTL = 10 * time.Minute

const stateIssuer = "stockdash-bfa"

// StateSigner issues and checks the OAuth state parameter as a short-lived
// HS256 token, so callbacks not started by this server are rejected. Each
// state is accepted once.
type StateSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu   sync.Mutex
	used *cache.InMemory[struct{}]
}

// NewStateSigner creates a signer. An empty secret draws a random one,
// which invalidates pending logins on restart.
func NewStateSigner(secret string, ttl time.Duration) (*StateSigner, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate state secret: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateSigner{
		secret: key,
		ttl:    ttl,
		now:    time.Now,
		used:   cache.New[struct{}](ttl),
	}, nil
}

// Sign returns a fresh state value.
func (s *StateSigner) Sign() (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    stateIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks a state value returned by the marketplace and marks it as
// spent. A missing, foreign, expired or already used state is rejected.
func (s *StateSigner) Verify(state string) error {
	if state == "" {
		return &domain.ErrUnauthorized{Message: "missing oauth state"}
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(state, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(stateIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid || claims.ID == "" {
		return &domain.ErrUnauthorized{Message: "invalid or expired oauth state"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, spent := s.used.Get(claims.ID); spent {
		return &domain.ErrUnauthorized{Message: "oauth state already used"}
	}
	s.used.Set(claims.ID, struct{}{})
	return nil
}

// Close stops the sweeper of the spent-state cache.
func (s *StateSigner) Close() {
	s.used.Close()
}
