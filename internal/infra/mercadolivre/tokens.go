package mercadolivre

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/boddenberg/stockdash-bfa-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// HandleCallback exchanges an authorization code for tokens through the
// backend. It reports success; on failure the credential state is left
// untouched.
func (c *Client) HandleCallback(ctx context.Context, code string) bool {
	ctx, span := tracer.Start(ctx, "mercadolivre.HandleCallback")
	defer span.End()

	redirect, err := c.RedirectURI()
	if err != nil {
		c.notifier.Report("ERRO CRÍTICO no callback: A URI de redirecionamento é inválida. A autenticação falhará.", domain.SeverityError)
		c.authEvent("callback", false)
		span.SetStatus(codes.Error, err.Error())
		return false
	}

	ok, data, err := c.postToken(ctx, domain.TokenRequest{
		GrantType:   "authorization_code",
		Code:        code,
		RedirectURI: redirect.Value,
	})
	if err != nil {
		c.logger.Error("token exchange failed", zap.Error(err))
		c.notifier.Report(fmt.Sprintf("Erro de comunicação: %s", err), domain.SeverityError)
		c.authEvent("callback", false)
		span.SetStatus(codes.Error, err.Error())
		return false
	}
	if !ok || data.AccessToken == "" {
		msg := data.ErrorMessage("Falha na autenticação via backend.")
		c.logger.Warn("token exchange rejected", zap.String("reason", msg))
		c.notifier.Report("Erro de autenticação: "+msg, domain.SeverityError)
		c.authEvent("callback", false)
		span.SetStatus(codes.Error, msg)
		return false
	}

	c.saveCredentials(ctx, domain.Credentials{
		AccessToken:  data.AccessToken,
		RefreshToken: data.RefreshToken,
		UserID:       string(data.UserID),
	})
	span.SetAttributes(attribute.String("ml.user_id", string(data.UserID)))
	c.logger.Info("seller authenticated", zap.String("user_id", string(data.UserID)))
	c.notifier.Report("Conectado com sucesso ao Mercado Livre!", domain.SeveritySuccess)
	c.authEvent("callback", true)
	return true
}

// RefreshTokenFlow trades the refresh token for a new access token. Any
// failure logs the seller out.
func (c *Client) RefreshTokenFlow(ctx context.Context) bool {
	ctx, span := tracer.Start(ctx, "mercadolivre.RefreshTokenFlow")
	defer span.End()

	fail := func(msg string) bool {
		c.notifier.Report(msg, domain.SeverityError)
		c.Logout()
		c.authEvent("refresh", false)
		span.SetStatus(codes.Error, msg)
		return false
	}

	current := c.Credentials()
	if current.RefreshToken == "" {
		return fail("Sessão expirada. Refresh token não encontrado.")
	}

	redirect, err := c.RedirectURI()
	if err != nil {
		return fail("ERRO CRÍTICO no refresh: A URI de redirecionamento é inválida.")
	}

	ok, data, err := c.postToken(ctx, domain.TokenRequest{
		GrantType:    "refresh_token",
		RefreshToken: current.RefreshToken,
		ClientID:     c.clientID,
		RedirectURI:  redirect.Value,
	})
	if err != nil {
		c.logger.Error("token refresh failed", zap.Error(err))
		return fail(fmt.Sprintf("Erro na atualização da sessão: %s", err))
	}
	if !ok || data.AccessToken == "" {
		msg := data.ErrorMessage("Falha ao atualizar token.")
		c.logger.Warn("token refresh rejected", zap.String("reason", msg))
		return fail(fmt.Sprintf("Erro ao atualizar sessão: %s. Por favor, conecte-se novamente.", msg))
	}

	next := domain.Credentials{
		AccessToken:  data.AccessToken,
		RefreshToken: current.RefreshToken,
		UserID:       current.UserID,
	}
	if data.RefreshToken != "" {
		next.RefreshToken = data.RefreshToken
	}
	if data.UserID != "" {
		next.UserID = string(data.UserID)
	}
	c.saveCredentials(ctx, next)

	c.logger.Info("session refreshed", zap.String("user_id", next.UserID))
	c.notifier.Report("Sessão atualizada com sucesso.", domain.SeveritySuccess)
	c.authEvent("refresh", true)
	return true
}

// postToken calls the backend token endpoint. ok reports a 2xx answer; err
// is set only when the exchange itself failed (transport or undecodable
// body).
func (c *Client) postToken(ctx context.Context, body domain.TokenRequest) (ok bool, data *domain.TokenResponse, err error) {
	ctx, span := tracer.Start(ctx, "mercadolivre.postToken")
	defer span.End()
	span.SetAttributes(attribute.String("oauth.grant_type", body.GrantType))

	payload, err := json.Marshal(body)
	if err != nil {
		return false, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.backendURL+tokenPath, bytes.NewReader(payload))
	if err != nil {
		return false, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.externalError(serviceTokenBackend)
		return false, nil, err
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	data = &domain.TokenResponse{}
	if err := json.NewDecoder(resp.Body).Decode(data); err != nil {
		c.externalError(serviceTokenBackend)
		return false, nil, fmt.Errorf("decode token response (status %d): %w", resp.StatusCode, err)
	}

	ok = resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok {
		c.externalError(serviceTokenBackend)
	}
	return ok, data, nil
}
