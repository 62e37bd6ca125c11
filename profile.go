package hostedauth

import (
	"strings"
	"time"
)

// Profile is the normalized identity read through the auth surface. A
// nil *Profile means no user; the provider never hands out a partially
// populated session instead of nil.
type Profile struct {
	// Subject is the platform's stable identifier, e.g. "auth0|abc123".
	Subject string `json:"subject"`

	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`

	Name     string `json:"name,omitempty"`
	Nickname string `json:"nickname,omitempty"`
	Picture  string `json:"picture,omitempty"`
	Locale   string `json:"locale,omitempty"`

	// Phone is E.164 when the platform adapter could normalize it,
	// otherwise whatever the platform sent.
	Phone         string `json:"phone,omitempty"`
	PhoneVerified bool   `json:"phone_verified,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`

	// Metadata carries platform claims that have no dedicated field.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// DisplayName picks the best human facing label for the profile.
func (p *Profile) DisplayName() string {
	if p == nil {
		return ""
	}
	for _, candidate := range []string{p.Name, p.Nickname, p.Email, p.Subject} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return ""
}

// Clone returns a copy so consumers cannot mutate shared provider state.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	out := *p
	if p.Metadata != nil {
		out.Metadata = make(map[string]any, len(p.Metadata))
		for key, value := range p.Metadata {
			out.Metadata[key] = value
		}
	}
	return &out
}

func (p *Profile) metadataValue(key string) (any, bool) {
	if p == nil || p.Metadata == nil {
		return nil, false
	}
	val, ok := p.Metadata[key]
	return val, ok
}
