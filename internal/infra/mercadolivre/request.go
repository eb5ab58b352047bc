package mercadolivre

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/boddenberg/stockdash-bfa-go/internal/domain"
	"github.com/boddenberg/stockdash-bfa-go/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// maxErrorBody bounds how much of a failed response is kept as message.
const maxErrorBody = 1 << 10

type apiResponse struct {
	status int
	body   []byte
}

// doAuthenticated GETs url with the bearer token and decodes the JSON
// answer into out. A 401 triggers one refresh and, when it succeeds,
// exactly one retry.
func (c *Client) doAuthenticated(ctx context.Context, url string, out any) error {
	token := c.Credentials().AccessToken
	if token == "" {
		c.notifier.Report("Token de acesso não disponível. Tente reconectar.", domain.SeverityError)
		return &domain.ErrUnauthorized{Message: "Token de acesso não disponível."}
	}

	resp, err := c.get(ctx, url, token)
	if err != nil {
		return err
	}

	if resp.status == http.StatusUnauthorized {
		c.notifier.Report("Sessão expirada. Tentando renovar...", domain.SeverityInfo)
		if !c.RefreshTokenFlow(ctx) {
			return &domain.ErrUnauthorized{Message: "Falha ao atualizar token. Faça login novamente."}
		}
		resp, err = c.get(ctx, url, c.Credentials().AccessToken)
		if err != nil {
			return err
		}
	}

	if resp.status < 200 || resp.status >= 300 {
		c.externalError(serviceMarketplace)
		return &domain.ErrHTTPStatus{Status: resp.status, Message: errorMessage(resp.body)}
	}

	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// get performs one GET through the circuit breaker. Only transport
// failures and 5xx answers count against the breaker.
func (c *Client) get(ctx context.Context, url, token string) (*apiResponse, error) {
	ctx, span := tracer.Start(ctx, "mercadolivre.get")
	defer span.End()
	span.SetAttributes(attribute.String("http.url", url))

	var resp *apiResponse
	err := resilience.Guard(c.cb, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		r, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer r.Body.Close()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			return err
		}
		resp = &apiResponse{status: r.StatusCode, body: body}
		if r.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("marketplace returned status %d", r.StatusCode)
		}
		return nil
	})

	if resp != nil {
		span.SetAttributes(attribute.Int("http.status_code", resp.status))
		if resp.status >= http.StatusInternalServerError {
			// A 5xx still carries a readable error body.
			return resp, nil
		}
	}
	if err != nil {
		c.externalError(serviceMarketplace)
		span.SetStatus(codes.Error, err.Error())
		return nil, &domain.ErrExternalService{Service: serviceMarketplace, Err: err}
	}
	return resp, nil
}

// errorMessage extracts the "message" field of a JSON error body. A JSON
// object without one is returned verbatim, truncated; a body that is not a
// JSON object yields nothing and ErrHTTPStatus then says "Erro HTTP <status>".
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	body = bytes.TrimSpace(body)
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return string(body)
}
