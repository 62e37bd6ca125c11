// Package hostedauth bridges a hosted identity platform (Auth0 and
// compatible services) into an app-owned auth surface. All substantive
// auth work (login pages, token issuance, refresh, session storage) is
// delegated to the platform; this package owns only the normalized state
// and the plumbing that makes it consumable.
//
// Provider:
//   - Provider wraps a Platform client and republishes its state as a
//     stable seven-member surface: Authenticated, Loading, User, Login,
//     Register, Logout, Token. Absent vendor values are normalized to
//     safe defaults (false, nil, no-op, empty token) so consumers never
//     branch on an indeterminate state.
//   - Start arms a one-shot bootstrap gate (default 1s) before any
//     platform state becomes visible. Platforms exposing a readiness
//     signal open the gate early. Loading settles to false exactly once
//     and never reverts.
//
// Accessors:
//   - WithAuth installs the surface on a context.Context, FromContext
//     reads it back, and MustFromContext panics with ErrOutsideProvider
//     when no provider is installed. Misuse is meant to fail during
//     development, not be handled at runtime.
//
// HTTP:
//   - Middleware installs the surface into request contexts and renders
//     a placeholder while the gate is closed. AuthController serves the
//     hosted login/register/logout/callback round-trips, and the
//     template helpers drive welcome-vs-login rendering in views.
//
// Nesting providers is not supported: installing a second provider on a
// derived context shadows the outer one with plain context semantics and
// no coordination between the two instances.
package hostedauth
