package hostedauth

import "github.com/goliatone/go-errors"

const (
	TextCodeOutsideProvider  = "hostedauth_outside_provider"
	TextCodeFlowUnsupported  = "hostedauth_flow_unsupported"
	TextCodeInvalidFlowState = "hostedauth_invalid_flow_state"
	TextCodeFlowStateExpired = "hostedauth_flow_state_expired"
	TextCodeMissingCode      = "hostedauth_missing_code"
	TextCodeExchangeFailed   = "hostedauth_exchange_failed"
	TextCodePlatformDenied   = "hostedauth_platform_denied"
	TextCodeSignupDisabled   = "hostedauth_signup_disabled"
)

// ErrOutsideProvider is the failure raised when the auth surface is
// read from a context no provider was attached to.
var ErrOutsideProvider = errors.New("auth used outside its provider", errors.CategoryOperation).
	WithTextCode(TextCodeOutsideProvider).
	WithCode(errors.CodeInternal)

// ErrFlowUnsupported is returned when the platform exposes no hosted flow.
var ErrFlowUnsupported = errors.New("platform does not support hosted flows", errors.CategoryOperation).
	WithTextCode(TextCodeFlowUnsupported).
	WithCode(errors.CodeInternal)

// ErrInvalidFlowState is returned when the callback state is invalid or tampered.
var ErrInvalidFlowState = errors.New("invalid flow state", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidFlowState).
	WithCode(errors.CodeBadRequest)

// ErrFlowStateExpired is returned when the callback state has expired.
var ErrFlowStateExpired = errors.New("flow state expired", errors.CategoryBadInput).
	WithTextCode(TextCodeFlowStateExpired).
	WithCode(errors.CodeBadRequest)

// ErrMissingCode is returned when the callback has no authorization code.
var ErrMissingCode = errors.New("missing authorization code", errors.CategoryBadInput).
	WithTextCode(TextCodeMissingCode).
	WithCode(errors.CodeBadRequest)

// ErrExchangeFailed is returned when the authorization code exchange fails.
var ErrExchangeFailed = errors.New("code exchange failed", errors.CategoryAuth).
	WithTextCode(TextCodeExchangeFailed).
	WithCode(errors.CodeUnauthorized)

// ErrPlatformDenied is returned when the platform reports an error on
// the callback instead of a code.
var ErrPlatformDenied = errors.New("platform denied the request", errors.CategoryAuth).
	WithTextCode(TextCodePlatformDenied).
	WithCode(errors.CodeUnauthorized)

// ErrSignupDisabled is returned when signup is gated off.
var ErrSignupDisabled = errors.New("signup disabled", errors.CategoryAuth).
	WithTextCode(TextCodeSignupDisabled).
	WithCode(errors.CodeForbidden)
