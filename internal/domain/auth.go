package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ============================================================
// Credentials
// ============================================================

// Persisted credential keys. AppID survives logout.
const (
	KeyAccessToken  = "ml_access_token"
	KeyRefreshToken = "ml_refresh_token"
	KeyUserID       = "ml_user_id"
	KeyAppID        = "ml_app_id"
)

// Credentials is the OAuth state held by the marketplace client.
// An empty string means "not set".
type Credentials struct {
	AccessToken  string
	RefreshToken string
	UserID       string
}

// ============================================================
// Token exchange (backend proxy)
// ============================================================

// TokenRequest is the body POSTed to {BACKEND_URL}/api/mercadolivre/token.
type TokenRequest struct {
	GrantType    string `json:"grant_type"`
	Code         string `json:"code,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	RedirectURI  string `json:"redirect_uri"`
}

// TokenResponse covers both the success and the error shape of the backend.
type TokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	UserID       FlexibleID   `json:"user_id"`
	ExpiresIn    int          `json:"expires_in"`
	Scope        string       `json:"scope"`
	TokenType    string       `json:"token_type"`
	Error        string       `json:"error,omitempty"`
	Message      string       `json:"message,omitempty"`
	Details      *ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail carries the upstream OAuth error description.
type ErrorDetail struct {
	ErrorDescription string `json:"error_description,omitempty"`
}

// ErrorMessage picks the most specific error text, or fallback.
func (r *TokenResponse) ErrorMessage(fallback string) string {
	switch {
	case r.Details != nil && r.Details.ErrorDescription != "":
		return r.Details.ErrorDescription
	case r.Error != "":
		return r.Error
	case r.Message != "":
		return r.Message
	}
	return fallback
}

// FlexibleID decodes an identifier sent either as a JSON number or string.
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexibleID(n.String())
	return nil
}

// ============================================================
// Redirect URI resolution
// ============================================================

// ExecutionContext describes where the dashboard runs: the values a browser
// would read from window.location.
type ExecutionContext struct {
	Origin          string   `json:"origin"`
	Pathname        string   `json:"pathname"`
	Protocol        string   `json:"protocol,omitempty"` // e.g. "https:", "blob:"
	AncestorOrigins []string `json:"ancestorOrigins,omitempty"`
}

// RedirectStrategy records which rule produced a redirect URI.
type RedirectStrategy string

const (
	StrategySandboxOrigin   RedirectStrategy = "sandbox_origin"
	StrategySandboxAncestor RedirectStrategy = "sandbox_ancestor"
	StrategyFallback        RedirectStrategy = "fallback"
)

// RedirectURI is a resolved OAuth callback URL.
type RedirectURI struct {
	Value    string           `json:"redirectUri"`
	Strategy RedirectStrategy `json:"strategy"`
}

// IsLocalHTTP reports whether the URI is plain-http localhost, which the
// marketplace may refuse.
func (r RedirectURI) IsLocalHTTP() bool {
	return strings.HasPrefix(r.Value, "http://localhost")
}

// AuthStatus is returned by GET /v1/auth/status.
type AuthStatus struct {
	Authenticated bool   `json:"authenticated"`
	Configured    bool   `json:"configured"`
	ClientID      string `json:"clientId,omitempty"`
	UserID        string `json:"userId,omitempty"`
}
