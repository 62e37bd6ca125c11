package auth0

import "github.com/goliatone/go-errors"

const (
	// TextCodeTokenExpired indicates the ID token lifetime has elapsed.
	TextCodeTokenExpired = "auth0_token_expired"
	// TextCodeTokenMalformed indicates the ID token could not be parsed or verified.
	TextCodeTokenMalformed = "auth0_token_malformed"
	// TextCodeMissingIDToken indicates the token response carried no id_token.
	TextCodeMissingIDToken = "auth0_missing_id_token"
	// TextCodeDeviceFlow indicates the device authorization grant failed.
	TextCodeDeviceFlow = "auth0_device_flow_failed"
	// TextCodeUserinfo indicates the userinfo profile fetch failed.
	TextCodeUserinfo = "auth0_userinfo_failed"
)

// ErrTokenExpired is returned when the ID token presented at the callback
// is past its expiry.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned when the ID token cannot be parsed or its
// signature cannot be verified.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrMissingIDToken is returned when the openid scope was requested but
// the token response does not include an ID token. Without openid the
// client falls back to the userinfo endpoint instead.
var ErrMissingIDToken = errors.New("token response missing id_token", errors.CategoryAuth).
	WithTextCode(TextCodeMissingIDToken).
	WithCode(errors.CodeUnauthorized)

// ErrDeviceFlowUnavailable is returned when the device authorization grant
// is started without a device endpoint configured.
var ErrDeviceFlowUnavailable = errors.New("device authorization endpoint not configured", errors.CategoryOperation).
	WithTextCode(TextCodeDeviceFlow).
	WithCode(errors.CodeInternal)
