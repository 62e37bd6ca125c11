package hostedauth

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// LoggerProvider hands out named child loggers.
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// Platform is the vendor-facing boundary: the minimal surface a hosted
// identity platform client must provide. Richer behavior (hosted page
// redirects, logout URLs, token access, change notification) is
// discovered through the optional capability interfaces below.
type Platform interface {
	// Name identifies the platform, e.g. "auth0".
	Name() string
	// Snapshot reports the platform's current view of the session.
	Snapshot(ctx context.Context) Snapshot
}

// StateNotifier is implemented by platforms that push state changes.
// The provider consumes a single subscription and applies emissions in
// order.
type StateNotifier interface {
	StateChanges() <-chan Snapshot
}

// ReadySignaler is implemented by platforms that can report the end of
// their own initialization. The provider opens the bootstrap gate at
// the earlier of this signal and the configured delay.
type ReadySignaler interface {
	Ready() <-chan struct{}
}

// LoginStarter runs the platform's own interactive login, e.g. a device
// authorization flow for non-browser apps. Backs the zero-argument
// Login action.
type LoginStarter interface {
	StartLogin(ctx context.Context) error
}

// RegisterStarter is the signup variant of LoginStarter.
type RegisterStarter interface {
	StartRegister(ctx context.Context) error
}

// LogoutCapable clears the platform's session.
type LogoutCapable interface {
	Logout(ctx context.Context) error
}

// TokenSource exposes the platform's current access token. Absence is
// reported as an empty string, not an error.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// HostedFlow produces redirects into the platform's hosted pages and
// completes the round-trip. Used by the HTTP controller. CompleteLogin
// receives the state token the flow began with so platforms can recover
// per-flow material such as a PKCE verifier.
type HostedFlow interface {
	BeginLogin(ctx context.Context, req FlowRequest) (*FlowRedirect, error)
	CompleteLogin(ctx context.Context, code, state string) (*Profile, error)
}

// RegistrationFlow adds the platform's signup hint to the hosted flow.
type RegistrationFlow interface {
	BeginRegister(ctx context.Context, req FlowRequest) (*FlowRedirect, error)
}

// LogoutURLBuilder builds the platform's hosted logout URL.
type LogoutURLBuilder interface {
	LogoutURL(returnTo string) string
}

// FlowRequest carries per-request parameters into a hosted flow.
type FlowRequest struct {
	// State is the opaque round-trip value echoed back on the callback.
	State string
	// Prompt forwards the platform's prompt hint, e.g. "login".
	Prompt string
}

// FlowRedirect is the hosted page target for a browser redirect.
type FlowRedirect struct {
	URL string
}

// Action is a zero-argument, fire-and-forget delegation to the
// platform. Actions never return errors to the caller; failures are
// logged by the provider.
type Action func(ctx context.Context)

// NoopAction is the explicit absent action. The provider substitutes it
// whenever the platform lacks a capability so the surface is always
// callable.
func NoopAction(context.Context) {}

func normalizeAction(action Action) Action {
	if action == nil {
		return NoopAction
	}
	return action
}

// TokenFunc resolves the current access token or "" when absent. It
// never fails: retrieval errors are swallowed and normalized to "".
type TokenFunc func(ctx context.Context) string

func normalizeTokenFunc(fn TokenFunc) TokenFunc {
	if fn == nil {
		return func(context.Context) string { return "" }
	}
	return fn
}

// Auth is the normalized surface consumers read. One instance per
// provider; all seven members are safe to use unconditionally.
type Auth interface {
	Authenticated() bool
	Loading() bool
	User() *Profile
	Login(ctx context.Context)
	Register(ctx context.Context)
	Logout(ctx context.Context)
	Token(ctx context.Context) string
}

// ResolveLogger resolves a named logger from the provider when one is
// configured, falling back to the supplied logger and finally to the
// package default.
func ResolveLogger(name string, provider LoggerProvider, fallback Logger) (LoggerProvider, Logger) {
	if provider != nil {
		return provider, provider.GetLogger(name)
	}
	if fallback != nil {
		return nil, fallback
	}
	return nil, defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] HOSTEDAUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] HOSTEDAUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] HOSTEDAUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] HOSTEDAUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
