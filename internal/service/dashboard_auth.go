package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/boddenberg/stockdash-bfa-go/internal/domain"

	"go.uber.org/zap"
)

const missingClientIDMessage = "Por favor, insira o seu Client ID (App ID)."

// Status reports the connection state shown on the auth screen.
func (d *Dashboard) Status() domain.AuthStatus {
	client := d.currentClient()
	return domain.AuthStatus{
		Authenticated: client.IsAuthenticated(),
		Configured:    client.ClientID() != "",
		ClientID:      client.ClientID(),
		UserID:        client.UserID(),
	}
}

// RedirectURI is the callback URL to register with the marketplace.
func (d *Dashboard) RedirectURI() (domain.RedirectURI, error) {
	return d.currentClient().RedirectURI()
}

// StartLogin returns the marketplace authorization URL; state is echoed
// back on the callback.
func (d *Dashboard) StartLogin(state string) (string, error) {
	client := d.currentClient()
	if client.ClientID() == "" {
		d.notifier.Report(missingClientIDMessage, domain.SeverityError)
		return "", &domain.ErrConfiguration{Setting: "client_id", Message: "marketplace client id is not set"}
	}
	return client.AuthenticateWithState(state)
}

// CompleteLogin exchanges the authorization code captured on the callback.
func (d *Dashboard) CompleteLogin(ctx context.Context, code string) error {
	ctx, span := tracer.Start(ctx, "Dashboard.CompleteLogin")
	defer span.End()

	if strings.TrimSpace(code) == "" {
		d.notifier.Report("Erro ao finalizar autenticação: API ou código em falta.", domain.SeverityError)
		return &domain.ErrValidation{Field: "code", Message: "authorization code is required"}
	}

	d.authMu.Lock()
	defer d.authMu.Unlock()

	d.invalidate()
	if !d.currentClient().HandleCallback(ctx, code) {
		return &domain.ErrUnauthorized{Message: "authorization code exchange failed"}
	}
	return nil
}

// Refresh renews the access token. A failed refresh disconnects the seller.
// Concurrent calls share one refresh, which also waits for any listing load
// that may be rotating the token.
func (d *Dashboard) Refresh(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Dashboard.Refresh")
	defer span.End()

	v, _, _ := d.loads.Do(refreshFlight, func() (any, error) {
		d.authMu.Lock()
		defer d.authMu.Unlock()
		return d.currentClient().RefreshTokenFlow(context.WithoutCancel(ctx)), nil
	})
	if !v.(bool) {
		d.invalidate()
		return &domain.ErrUnauthorized{Message: "session refresh failed"}
	}
	return nil
}

// Logout disconnects the seller. The saved application id is kept.
func (d *Dashboard) Logout() {
	d.authMu.Lock()
	d.currentClient().Logout()
	d.authMu.Unlock()

	d.invalidate()
	d.metrics.IncrAuthEvent("logout", true)
	d.notifier.Report("Desconectado com sucesso.", domain.SeverityInfo)
}

// SetClientID saves a new marketplace application id and rebuilds the
// client with it. Persisted tokens are picked up by the new client.
func (d *Dashboard) SetClientID(ctx context.Context, clientID string) error {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		d.notifier.Report(missingClientIDMessage, domain.SeverityError)
		return &domain.ErrValidation{Field: "clientId", Message: "must not be empty"}
	}

	if err := d.store.Set(ctx, domain.KeyAppID, clientID); err != nil {
		return fmt.Errorf("save client id: %w", err)
	}

	client := d.newClient(clientID)
	d.mu.Lock()
	d.client = client
	d.mu.Unlock()
	d.invalidate()

	d.logger.Info("marketplace client id changed", zap.String("client_id", clientID))
	return nil
}
