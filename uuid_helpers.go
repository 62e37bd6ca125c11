package hostedauth

import (
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// ProfileUUID derives a stable local UUID for a platform profile, so
// callers can key caches and activity records without leaking the raw
// platform identifier. The subject seeds the hash when present, the
// email otherwise.
func ProfileUUID(profile *Profile) (uuid.UUID, error) {
	if profile == nil {
		return uuid.Nil, errors.New("no profile", errors.CategoryValidation)
	}

	seed := profile.Subject
	if seed == "" {
		seed = profile.Email
	}
	if seed == "" {
		return uuid.Nil, errors.New("profile has no stable identifier", errors.CategoryValidation)
	}

	return hashid.NewUUID(seed)
}

// HasProfileUUID reports whether ProfileUUID will succeed.
func HasProfileUUID(profile *Profile) bool {
	_, err := ProfileUUID(profile)
	return err == nil
}

// SubjectConnection extracts the connection prefix from a platform
// subject like "auth0|abc123" or "google-oauth2|123".
func SubjectConnection(subject string) string {
	if i := strings.Index(subject, "|"); i > 0 {
		return subject[:i]
	}
	return ""
}
