package mercadolivre

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/boddenberg/stockdash-bfa-go/internal/domain"

	"go.uber.org/zap"
)

var (
	repeatedSlashes = regexp.MustCompile(`//+`)
	// Used only when the URI cannot be parsed; keeps the "://" of the scheme.
	looseRepeatedSlashes = regexp.MustCompile(`([^:]/)/+`)
)

// ResolveRedirectURI derives the OAuth callback URL for an execution
// context. Precedence:
//
//  1. the origin itself is a sandbox host: origin + "/"
//  2. an ancestor origin is a sandbox host: first such ancestor + "/"
//  3. origin + pathname
//
// The result is upgraded to https unless it points at localhost, and
// repeated slashes in its path are collapsed.
func ResolveRedirectURI(ec domain.ExecutionContext, sandboxHost string) (domain.RedirectURI, error) {
	var res domain.RedirectURI

	switch {
	case sandboxHost != "" && strings.Contains(ec.Origin, sandboxHost):
		res = domain.RedirectURI{Value: ec.Origin + "/", Strategy: domain.StrategySandboxOrigin}
	case sandboxAncestor(ec.AncestorOrigins, sandboxHost) != "":
		res = domain.RedirectURI{
			Value:    sandboxAncestor(ec.AncestorOrigins, sandboxHost) + "/",
			Strategy: domain.StrategySandboxAncestor,
		}
	default:
		v, err := fallbackURI(ec)
		if err != nil {
			return domain.RedirectURI{}, err
		}
		res = domain.RedirectURI{Value: v, Strategy: domain.StrategyFallback}
	}

	res.Value = normalize(upgradeScheme(res.Value))
	return res, nil
}

func sandboxAncestor(ancestors []string, sandboxHost string) string {
	if sandboxHost == "" {
		return ""
	}
	for _, a := range ancestors {
		if strings.Contains(a, sandboxHost) {
			return a
		}
	}
	return ""
}

func fallbackURI(ec domain.ExecutionContext) (string, error) {
	if ec.Protocol == "blob:" {
		return "", &domain.ErrRedirectUnresolvable{Reason: domain.RedirectBlobContext}
	}
	if ec.Origin == "" || ec.Origin == "null" {
		return "", &domain.ErrRedirectUnresolvable{Reason: domain.RedirectEmptyOrigin}
	}

	path := ec.Pathname
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if strings.HasSuffix(ec.Origin, "/") && strings.HasPrefix(path, "/") {
		return ec.Origin + path[1:], nil
	}
	return ec.Origin + path, nil
}

// upgradeScheme rewrites http to https except for localhost.
func upgradeScheme(uri string) string {
	if !strings.HasPrefix(uri, "http:") {
		return uri
	}
	if u, err := url.Parse(uri); err == nil {
		if u.Hostname() == "localhost" {
			return uri
		}
	} else if strings.HasPrefix(uri, "http://localhost") {
		return uri
	}
	return "https:" + strings.TrimPrefix(uri, "http:")
}

func normalize(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return looseRepeatedSlashes.ReplaceAllString(uri, "$1")
	}
	u.Path = repeatedSlashes.ReplaceAllString(u.Path, "/")
	u.RawPath = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// RedirectURI resolves the callback URL for the configured execution context.
func (c *Client) RedirectURI() (domain.RedirectURI, error) {
	res, err := ResolveRedirectURI(c.execCtx, c.sandboxHost)
	if err != nil {
		c.logger.Warn("redirect uri unresolved", zap.Error(err))
		return res, err
	}
	c.logger.Debug("redirect uri resolved",
		zap.String("redirect_uri", res.Value),
		zap.String("strategy", string(res.Strategy)),
	)
	return res, nil
}

// Authenticate returns the marketplace authorization URL the user agent
// must be sent to. No network call is made.
func (c *Client) Authenticate() (string, error) {
	return c.AuthenticateWithState("")
}

// AuthenticateWithState is Authenticate with an opaque state parameter
// echoed back on the callback.
func (c *Client) AuthenticateWithState(state string) (string, error) {
	if c.clientID == "" {
		c.notifier.Report("Client ID em falta na API. Verifique a configuração.", domain.SeverityError)
		c.authEvent("login", false)
		return "", &domain.ErrConfiguration{Setting: "client_id", Message: "marketplace client id is not set"}
	}

	redirect, err := c.RedirectURI()
	if err != nil {
		c.notifier.Report("ERRO CRÍTICO: A URI de redirecionamento não pôde ser determinada automaticamente. "+
			"Configure a URL correta no Mercado Livre.", domain.SeverityError)
		c.authEvent("login", false)
		return "", err
	}

	authURL := c.authBaseURL + "/authorization?response_type=code" +
		"&client_id=" + url.QueryEscape(c.clientID) +
		"&redirect_uri=" + url.QueryEscape(redirect.Value)
	if state != "" {
		authURL += "&state=" + url.QueryEscape(state)
	}

	c.notifier.Report("A redirecionar para o Mercado Livre para autorização...", domain.SeverityInfo)
	c.authEvent("login", true)
	c.logger.Info("authorization url built", zap.String("redirect_uri", redirect.Value))
	return authURL, nil
}
