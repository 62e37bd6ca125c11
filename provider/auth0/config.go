package auth0

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	hostedauth "github.com/goliatone/go-hosted-auth"
	"golang.org/x/oauth2"
)

// Config holds the Auth0 tenant settings for the hosted login client.
type Config struct {
	// Domain is the Auth0 tenant domain (e.g., "example.us.auth0.com").
	Domain string

	// ClientID identifies the application registered with the tenant.
	ClientID string

	// ClientSecret authenticates the code exchange. Leave empty for
	// public clients relying on PKCE alone.
	ClientSecret string

	// RedirectURI is the callback the hosted pages return to.
	RedirectURI string

	// LogoutRedirectURI is where the hosted logout endpoint sends the
	// browser afterwards. Must be listed as an allowed logout URL on
	// the tenant.
	LogoutRedirectURI string

	// Audience is the API identifier to request access tokens for
	// (optional). ID tokens are always validated against ClientID.
	Audience string

	// Scopes requested during authorization.
	// Default: "openid profile email".
	Scopes []string

	// OfflineAccess requests a refresh token so AccessToken can renew
	// expired tokens without a new login.
	OfflineAccess bool

	// Issuer overrides the default issuer URL (optional).
	// Default: "https://{Domain}/".
	Issuer string

	// CacheTTL is how long to cache JWKS keys.
	// Default: 5 minutes.
	CacheTTL time.Duration

	// SkipIDTokenVerification disables signature and claim checks on
	// returned ID tokens. Only for tests against stub token endpoints.
	SkipIDTokenVerification bool

	// Endpoint overrides the endpoints derived from Domain (optional).
	// Mainly for tests against stub servers.
	Endpoint *oauth2.Endpoint

	// UserinfoURL overrides the userinfo endpoint derived from Domain
	// (optional). Mainly for tests against stub servers.
	UserinfoURL string

	// HTTPClient performs userinfo requests (optional).
	// Default: 10 second timeout.
	HTTPClient *http.Client

	// ProfileMapper customizes how verified claims become a profile (optional).
	ProfileMapper ProfileMapper

	// ClaimsNamespace is the URL prefix the tenant uses for custom
	// claims. Matching claims are copied into profile metadata with the
	// prefix stripped (optional).
	ClaimsNamespace string

	// CustomClaims defines the custom claim type to extract.
	// Default: IDTokenClaims.
	CustomClaims func() validator.CustomClaims

	// ContextFunc provides a context for JWKS fetch/validation.
	// Default: context.Background.
	ContextFunc func() context.Context

	// Logger receives client diagnostics (optional).
	Logger hostedauth.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(domain, clientID string) Config {
	return Config{
		Domain:   domain,
		ClientID: clientID,
		Scopes:   []string{"openid", "profile", "email"},
		CacheTTL: 5 * time.Minute,
	}
}

// FromAuthConfig lifts the shared auth settings into an adapter config.
// Tenant-specific fields (audience, scopes, secret) are left at their
// defaults and can be set on the returned value.
func FromAuthConfig(cfg hostedauth.Config) Config {
	out := DefaultConfig(cfg.Domain, cfg.ClientID)
	out.RedirectURI = cfg.RedirectURI
	out.LogoutRedirectURI = cfg.LogoutRedirectURI
	return out
}

func (c Config) withDefaults() Config {
	if len(c.Scopes) == 0 {
		c.Scopes = []string{"openid", "profile", "email"}
	}
	if c.OfflineAccess && !containsScope(c.Scopes, "offline_access") {
		c.Scopes = append(c.Scopes, "offline_access")
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
	return c
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Domain) == "" {
		return fmt.Errorf("auth0: domain is required")
	}
	if strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("auth0: client ID is required")
	}
	if strings.TrimSpace(c.RedirectURI) == "" {
		return fmt.Errorf("auth0: redirect URI is required")
	}
	return nil
}

// baseURL returns the tenant origin without a trailing slash.
func (c Config) baseURL() string {
	domain := strings.TrimSpace(c.Domain)
	if domain == "" {
		return ""
	}
	if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
		domain = "https://" + domain
	}
	return strings.TrimSuffix(domain, "/")
}

func (c Config) authorizeURL() string {
	return c.baseURL() + "/authorize"
}

func (c Config) tokenURL() string {
	return c.baseURL() + "/oauth/token"
}

func (c Config) deviceAuthURL() string {
	return c.baseURL() + "/oauth/device/code"
}

func (c Config) logoutURL() string {
	return c.baseURL() + "/v2/logout"
}

func (c Config) userinfoURL() string {
	if c.UserinfoURL != "" {
		return c.UserinfoURL
	}
	return c.baseURL() + "/userinfo"
}

func (c Config) issuerURL() string {
	if c.Issuer != "" {
		return normalizeIssuer(c.Issuer)
	}

	domain := strings.TrimSpace(c.Domain)
	if domain == "" {
		return ""
	}

	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return normalizeIssuer(domain)
	}

	return fmt.Sprintf("https://%s/", strings.TrimSuffix(domain, "/"))
}

func normalizeIssuer(issuer string) string {
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return issuer
	}
	if strings.HasSuffix(issuer, "/") {
		return issuer
	}
	return issuer + "/"
}

func containsScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}
