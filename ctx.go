package hostedauth

import (
	"context"

	"github.com/goliatone/go-router"
)

var authCtxKey = &contextKey{"auth"}
var stateCtxKey = &contextKey{"auth_state"}

type contextKey struct {
	name string
}

// Default locals keys used by the middleware when none is configured.
const (
	DefaultAuthLocalsKey  = "auth"
	DefaultStateLocalsKey = "auth_state"
)

// WithAuth attaches the auth surface to the given context
func WithAuth(ctx context.Context, auth Auth) context.Context {
	return context.WithValue(ctx, authCtxKey, auth)
}

// FromContext finds the auth surface in the context.
func FromContext(ctx context.Context) (Auth, bool) {
	raw, ok := ctx.Value(authCtxKey).(Auth)
	return raw, ok
}

// MustFromContext returns the auth surface or panics with
// ErrOutsideProvider. Reading auth outside the provider is a wiring
// bug, not a runtime condition, so the failure is fatal by default;
// use FromContext to probe without crashing.
func MustFromContext(ctx context.Context) Auth {
	auth, ok := FromContext(ctx)
	if !ok {
		panic(ErrOutsideProvider)
	}
	return auth
}

// WithState attaches a per request state reading to the given context
func WithState(ctx context.Context, state State) context.Context {
	return context.WithValue(ctx, stateCtxKey, state)
}

// StateFromContext finds the state reading in the context.
func StateFromContext(ctx context.Context) (State, bool) {
	raw, ok := ctx.Value(stateCtxKey).(State)
	return raw, ok
}

// MustStateFromContext returns the state reading or panics with
// ErrOutsideProvider.
func MustStateFromContext(ctx context.Context) State {
	state, ok := StateFromContext(ctx)
	if !ok {
		panic(ErrOutsideProvider)
	}
	return state
}

// RouterAuth extracts the auth surface from the router context, looking
// at locals first and the request context second.
func RouterAuth(ctx router.Context, key string) (Auth, bool) {
	if key == "" {
		key = DefaultAuthLocalsKey
	}
	if raw := ctx.Locals(key); raw != nil {
		if auth, ok := raw.(Auth); ok {
			return auth, true
		}
	}
	return FromContext(ctx.Context())
}

// MustRouterAuth is RouterAuth with the fatal default.
func MustRouterAuth(ctx router.Context, key string) Auth {
	auth, ok := RouterAuth(ctx, key)
	if !ok {
		panic(ErrOutsideProvider)
	}
	return auth
}

// RouterState extracts the per request state reading from the router
// context, looking at locals first and the request context second.
func RouterState(ctx router.Context, key string) (State, bool) {
	if key == "" {
		key = DefaultStateLocalsKey
	}
	if raw := ctx.Locals(key); raw != nil {
		if state, ok := raw.(State); ok {
			return state, true
		}
	}
	return StateFromContext(ctx.Context())
}

// MustRouterState is RouterState with the fatal default.
func MustRouterState(ctx router.Context, key string) State {
	state, ok := RouterState(ctx, key)
	if !ok {
		panic(ErrOutsideProvider)
	}
	return state
}
