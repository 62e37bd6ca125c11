package auth0

import (
	"context"
	"encoding/json"
	"time"
)

// IDTokenClaims holds the profile claims Auth0 places in ID tokens.
type IDTokenClaims struct {
	Email          string         `json:"email"`
	EmailVerified  bool           `json:"email_verified"`
	Name           string         `json:"name"`
	Nickname       string         `json:"nickname"`
	Picture        string         `json:"picture"`
	Locale         string         `json:"locale"`
	PhoneNumber    string         `json:"phone_number"`
	PhoneVerified  bool           `json:"phone_number_verified"`
	UpdatedAt      string         `json:"updated_at"`
	OrganizationID string         `json:"org_id"`
	Metadata       map[string]any `json:"app_metadata"`
	Raw            map[string]any `json:"-"`
}

// Validate satisfies validator.CustomClaims. Profile claims are optional,
// so there is nothing to enforce here.
func (c *IDTokenClaims) Validate(ctx context.Context) error {
	return nil
}

// UnmarshalJSON captures both known and raw claims so namespaced custom
// claims stay reachable for mapping.
func (c *IDTokenClaims) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	type alias IDTokenClaims
	var decoded alias
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	*c = IDTokenClaims(decoded)
	c.Raw = raw
	return nil
}

// updatedAtTime parses the RFC3339 updated_at claim, returning the zero
// time when absent or unparseable.
func (c *IDTokenClaims) updatedAtTime() time.Time {
	if c.UpdatedAt == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, c.UpdatedAt)
	if err != nil {
		return time.Time{}
	}
	return ts
}
