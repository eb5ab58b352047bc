package handler

import (
	"encoding/json"
	"net/http"

	"github.com/boddenberg/stockdash-bfa-go/internal/domain"
	"github.com/boddenberg/stockdash-bfa-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// OAuth callback: GET / and GET {CALLBACK_PATH}
// ============================================================

// callbackHandler captures ?code=, checks the signed state issued by
// /v1/auth/login, exchanges the code and redirects to the same path without
// the query so a reload cannot replay the code. Without a code it reports
// the connection state.
func callbackHandler(svc *service.Dashboard, states *StateSigner, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET callback")
		defer span.End()

		q := r.URL.Query()
		if oauthErr := q.Get("error"); oauthErr != "" {
			logger.Warn("authorization denied",
				zap.String("error", oauthErr),
				zap.String("description", q.Get("error_description")),
			)
			writeError(w, http.StatusBadRequest, "authorization denied: "+oauthErr)
			return
		}

		code := q.Get("code")
		if code == "" {
			writeJSON(w, http.StatusOK, svc.Status())
			return
		}
		span.SetAttributes(attribute.Bool("oauth.state_present", q.Get("state") != ""))

		if err := states.Verify(q.Get("state")); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		if err := svc.CompleteLogin(ctx, code); err != nil {
			// The outcome reaches the user through the notification feed.
			logger.Warn("authorization code exchange failed", zap.Error(err))
		}
		http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
	}
}

// ============================================================
// Auth: /v1/auth
// ============================================================

func loginHandler(svc *service.Dashboard, states *StateSigner, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/auth/login")
		defer span.End()

		state, err := states.Sign()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		authURL, err := svc.StartLogin(state)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

func authStatusHandler(svc *service.Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	}
}

func refreshHandler(svc *service.Dashboard, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/refresh")
		defer span.End()

		if err := svc.Refresh(ctx); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "session refreshed"})
	}
}

func logoutHandler(svc *service.Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc.Logout()
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "logged out"})
	}
}

func clientIDHandler(svc *service.Dashboard, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/auth/client-id")
		defer span.End()

		var req struct {
			ClientID string `json:"clientId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := svc.SetClientID(ctx, req.ClientID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, svc.Status())
	}
}

type redirectURIResponse struct {
	domain.RedirectURI
	Warning string `json:"warning,omitempty"`
}

func redirectURIHandler(svc *service.Dashboard, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uri, err := svc.RedirectURI()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		resp := redirectURIResponse{RedirectURI: uri}
		if uri.IsLocalHTTP() {
			resp.Warning = "O Mercado Livre pode exigir HTTPS para URIs de redirecionamento. " +
				"Use um túnel HTTPS (ex.: ngrok) para testes locais."
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
