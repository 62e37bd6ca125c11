package auth0

import (
	"context"
	"strings"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	hostedauth "github.com/goliatone/go-hosted-auth"
	"github.com/nyaruka/phonenumbers"
)

// ProfileMapper transforms verified token claims into a profile.
type ProfileMapper interface {
	// Map converts provider-specific claims to a hostedauth.Profile.
	// Implementations should populate Subject and whatever identity
	// claims the token carries.
	Map(ctx context.Context, externalClaims any) (*hostedauth.Profile, error)
}

// IDTokenProfileMapper maps Auth0 ID token claims to a profile. Standard
// OIDC claims come from the token directly; tenant rules that publish
// custom claims under a namespace URL are folded into profile metadata
// with the namespace stripped.
type IDTokenProfileMapper struct {
	Namespace string

	// MetadataClaimKeys lists additional claims to copy into profile
	// metadata verbatim.
	MetadataClaimKeys []string

	EmailClaimKey   string
	NameClaimKey    string
	PictureClaimKey string
}

// Map implements ProfileMapper.
func (m *IDTokenProfileMapper) Map(ctx context.Context, externalClaims any) (*hostedauth.Profile, error) {
	validated, ok := externalClaims.(*validator.ValidatedClaims)
	if !ok || validated == nil {
		return nil, ErrTokenMalformed
	}

	claims, ok := validated.CustomClaims.(*IDTokenClaims)
	if !ok || claims == nil {
		claims = &IDTokenClaims{}
	}

	profile := &hostedauth.Profile{
		Subject:       validated.RegisteredClaims.Subject,
		Email:         m.extractEmail(claims),
		EmailVerified: claims.EmailVerified,
		Name:          m.extractName(claims),
		Nickname:      claims.Nickname,
		Picture:       m.extractPicture(claims),
		Locale:        claims.Locale,
		Phone:         normalizePhone(claims.PhoneNumber),
		PhoneVerified: claims.PhoneVerified,
		UpdatedAt:     claims.updatedAtTime(),
	}

	metadata := map[string]any{}
	for key, val := range claims.Metadata {
		metadata[key] = val
	}
	if claims.OrganizationID != "" {
		metadata["org_id"] = claims.OrganizationID
	}
	for _, key := range m.MetadataClaimKeys {
		if val, ok := claimValue(claims, key); ok {
			metadata[key] = val
		}
	}
	for key, val := range m.namespacedClaims(claims) {
		metadata[key] = val
	}
	if len(metadata) > 0 {
		profile.Metadata = metadata
	}

	return profile, nil
}

func (m *IDTokenProfileMapper) extractEmail(claims *IDTokenClaims) string {
	if email := m.claimString(claims, m.emailClaimKeys()...); email != "" {
		return email
	}
	return claims.Email
}

func (m *IDTokenProfileMapper) extractName(claims *IDTokenClaims) string {
	if name := m.claimString(claims, m.nameClaimKeys()...); name != "" {
		return name
	}
	return claims.Name
}

func (m *IDTokenProfileMapper) extractPicture(claims *IDTokenClaims) string {
	if picture := m.claimString(claims, m.pictureClaimKeys()...); picture != "" {
		return picture
	}
	return claims.Picture
}

// namespacedClaims returns all raw claims under the configured namespace
// with the prefix stripped.
func (m *IDTokenProfileMapper) namespacedClaims(claims *IDTokenClaims) map[string]any {
	prefix := m.namespacePrefix()
	if prefix == "" || claims.Raw == nil {
		return nil
	}

	out := map[string]any{}
	for key, val := range claims.Raw {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		short := strings.TrimPrefix(key, prefix)
		if short == "" {
			continue
		}
		out[short] = val
	}
	return out
}

func (m *IDTokenProfileMapper) emailClaimKeys() []string {
	return uniqueKeys(
		m.EmailClaimKey,
		m.namespacedKey("email"),
	)
}

func (m *IDTokenProfileMapper) nameClaimKeys() []string {
	return uniqueKeys(
		m.NameClaimKey,
		m.namespacedKey("name"),
	)
}

func (m *IDTokenProfileMapper) pictureClaimKeys() []string {
	return uniqueKeys(
		m.PictureClaimKey,
		m.namespacedKey("picture"),
	)
}

func (m *IDTokenProfileMapper) claimString(claims *IDTokenClaims, keys ...string) string {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if val, ok := claimValue(claims, key); ok {
			if str := stringFromAny(val); str != "" {
				return str
			}
		}
	}
	return ""
}

func (m *IDTokenProfileMapper) namespacePrefix() string {
	namespace := strings.TrimSpace(m.Namespace)
	if namespace == "" {
		return ""
	}
	if strings.HasSuffix(namespace, "/") || strings.HasSuffix(namespace, ":") {
		return namespace
	}
	return namespace + "/"
}

func (m *IDTokenProfileMapper) namespacedKey(key string) string {
	if key == "" {
		return ""
	}
	prefix := m.namespacePrefix()
	if prefix == "" {
		return ""
	}
	return prefix + key
}

// normalizePhone canonicalizes the phone_number claim to E.164. Auth0
// sends international format for SMS connections; anything unparseable
// passes through untouched.
func normalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	parsed, err := phonenumbers.Parse(raw, "")
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return raw
	}

	return phonenumbers.Format(parsed, phonenumbers.E164)
}

func claimValue(claims *IDTokenClaims, key string) (any, bool) {
	if claims == nil || key == "" {
		return nil, false
	}
	if claims.Raw != nil {
		if val, ok := claims.Raw[key]; ok {
			return val, true
		}
	}
	if claims.Metadata != nil {
		if val, ok := claims.Metadata[key]; ok {
			return val, true
		}
	}
	return nil, false
}

func stringFromAny(val any) string {
	switch typed := val.(type) {
	case string:
		return typed
	}
	return ""
}

func uniqueKeys(values ...string) []string {
	seen := map[string]struct{}{}
	keys := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		keys = append(keys, value)
	}
	return keys
}
