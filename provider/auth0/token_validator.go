package auth0

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/golang-jwt/jwt/v5"
	hostedauth "github.com/goliatone/go-hosted-auth"
)

// IDTokenVerifier checks ID tokens returned by the code exchange against
// the tenant JWKS and maps their claims to a profile.
//
// ID tokens are addressed to the application, so the expected audience is
// the client ID rather than any API identifier.
type IDTokenVerifier struct {
	config    Config
	validator *validator.Validator
	mapper    ProfileMapper
}

// NewIDTokenVerifier creates a verifier for the tenant described by cfg.
func NewIDTokenVerifier(cfg Config) (*IDTokenVerifier, error) {
	issuer := cfg.issuerURL()
	if issuer == "" {
		return nil, fmt.Errorf("auth0: issuer or domain is required")
	}

	issuerURL, err := url.Parse(issuer)
	if err != nil {
		return nil, fmt.Errorf("auth0: invalid issuer URL: %w", err)
	}
	if issuerURL.Scheme == "" || issuerURL.Host == "" {
		return nil, fmt.Errorf("auth0: invalid issuer URL: %s", issuer)
	}

	if cfg.ClientID == "" {
		return nil, fmt.Errorf("auth0: client ID is required")
	}

	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}

	provider := jwks.NewCachingProvider(issuerURL, cacheTTL)

	customClaims := cfg.CustomClaims
	if customClaims == nil {
		customClaims = func() validator.CustomClaims {
			return &IDTokenClaims{}
		}
	}

	jwtValidator, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuerURL.String(),
		[]string{cfg.ClientID},
		validator.WithCustomClaims(customClaims),
	)
	if err != nil {
		return nil, fmt.Errorf("auth0: failed to create validator: %w", err)
	}

	mapper := cfg.ProfileMapper
	if mapper == nil {
		mapper = &IDTokenProfileMapper{Namespace: cfg.ClaimsNamespace}
	}

	return &IDTokenVerifier{
		config:    cfg,
		validator: jwtValidator,
		mapper:    mapper,
	}, nil
}

// Verify validates the raw ID token and returns the mapped profile.
func (v *IDTokenVerifier) Verify(ctx context.Context, rawToken string) (*hostedauth.Profile, error) {
	if ctx == nil {
		ctx = context.Background()
		if v.config.ContextFunc != nil {
			ctx = v.config.ContextFunc()
		}
	}

	token, err := v.validator.ValidateToken(ctx, rawToken)
	if err != nil {
		return nil, normalizeValidationError(err)
	}

	validatedClaims, ok := token.(*validator.ValidatedClaims)
	if !ok || validatedClaims == nil {
		return nil, ErrTokenMalformed
	}

	return v.mapper.Map(ctx, validatedClaims)
}

func normalizeValidationError(err error) error {
	if err == nil {
		return nil
	}

	// The jose based validator and golang-jwt spell expiry differently,
	// so match the message as well as the sentinel.
	clone := ErrTokenMalformed.Clone()
	if stderrors.Is(err, jwt.ErrTokenExpired) || strings.Contains(err.Error(), "token is expired") {
		clone = ErrTokenExpired.Clone()
	}

	if clone == nil {
		return err
	}

	clone.Source = err
	return clone.WithMetadata(map[string]any{
		"provider": "auth0",
		"cause":    err.Error(),
	})
}
