// Package auth0 implements the hostedauth.Platform contract against the
// Auth0 Universal Login surface.
//
// The client keeps a single in-memory principal per process and never
// persists tokens. Login and registration redirect to the hosted pages,
// the callback exchange verifies the returned ID token against the tenant
// JWKS, and logout clears the local session before handing the browser to
// the hosted logout endpoint.
package auth0
