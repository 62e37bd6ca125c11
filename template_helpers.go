package hostedauth

import (
	"github.com/goliatone/go-router"
)

var TemplateUserKey = "current_user"
var TemplateStateKey = "auth"

// TemplateHelpers returns a map of helper functions and data that can be
// used with go-template's WithGlobalData option for auth-related
// template functionality.
//
// Usage:
//
//	renderer, err := template.NewRenderer(
//	    template.WithBaseDir("./templates"),
//	    template.WithGlobalData(hostedauth.TemplateHelpers()),
//	)
//
// In templates, you can then use:
//
//	{% if current_user %}
//	{% if auth|is_authenticated %}
//	{{ current_user|welcome_message }}
func TemplateHelpers() map[string]any {
	return map[string]any{
		"is_authenticated": isAuthenticated,
		"is_loading":       isLoading,
		"display_name":     displayName,
		"welcome_message":  welcomeMessage,
		"email_verified":   emailVerified,
		"profile_claim":    profileClaim,
	}
}

// TemplateHelpersWithState returns template helpers with a specific
// state reading injected, so templates branch on one consistent value.
func TemplateHelpersWithState(state State) map[string]any {
	helpers := TemplateHelpers()
	helpers[TemplateStateKey] = state
	if state.User != nil {
		helpers[TemplateUserKey] = state.User
	}
	return helpers
}

// TemplateHelpersWithRouter returns template helpers with the state
// reading taken from the router context, where the middleware put it.
func TemplateHelpersWithRouter(ctx router.Context, stateKey string) map[string]any {
	helpers := TemplateHelpers()

	if state, ok := RouterState(ctx, stateKey); ok {
		helpers[TemplateStateKey] = state
		if state.User != nil {
			helpers[TemplateUserKey] = state.User
		}
	}

	return helpers
}

// GetTemplateUser extracts the current profile from the router context
// for template usage.
func GetTemplateUser(ctx router.Context, stateKey string) (*Profile, bool) {
	state, ok := RouterState(ctx, stateKey)
	if !ok || state.User == nil {
		return nil, false
	}
	return state.User, true
}

// isAuthenticated reports whether the value carries a usable session
func isAuthenticated(v any) bool {
	switch u := v.(type) {
	case State:
		return u.LoggedIn()
	case *State:
		return u != nil && u.LoggedIn()
	case *Profile:
		return u != nil
	case Profile:
		return true
	case map[string]any:
		// Handle JSON-converted state objects
		if auth, ok := u["authenticated"].(bool); ok {
			return auth
		}
		return len(u) > 0
	default:
		return false
	}
}

// isLoading reports whether the bootstrap gate is still open
func isLoading(v any) bool {
	switch u := v.(type) {
	case State:
		return u.Loading
	case *State:
		return u != nil && u.Loading
	case map[string]any:
		if loading, ok := u["loading"].(bool); ok {
			return loading
		}
		return false
	default:
		return false
	}
}

// displayName picks the best label for the value
func displayName(v any) string {
	switch u := v.(type) {
	case *Profile:
		return u.DisplayName()
	case Profile:
		return u.DisplayName()
	case State:
		return u.User.DisplayName()
	case *State:
		if u == nil {
			return ""
		}
		return u.User.DisplayName()
	case map[string]any:
		// Handle JSON-converted profile objects
		for _, key := range []string{"name", "nickname", "email", "subject"} {
			if s, ok := u[key].(string); ok && s != "" {
				return s
			}
		}
		return ""
	default:
		return ""
	}
}

// welcomeMessage greets the signed in user by email
func welcomeMessage(v any) string {
	who := profileEmail(v)
	if who == "" {
		who = displayName(v)
	}
	if who == "" {
		return ""
	}
	return "Welcome " + who
}

// emailVerified reports whether the platform verified the address
func emailVerified(v any) bool {
	switch u := v.(type) {
	case *Profile:
		return u != nil && u.EmailVerified
	case Profile:
		return u.EmailVerified
	case State:
		return u.User != nil && u.User.EmailVerified
	case *State:
		return u != nil && u.User != nil && u.User.EmailVerified
	case map[string]any:
		if verified, ok := u["email_verified"].(bool); ok {
			return verified
		}
		return false
	default:
		return false
	}
}

// profileClaim reads a metadata claim off the profile
func profileClaim(v any, key string) any {
	switch u := v.(type) {
	case *Profile:
		if val, ok := u.metadataValue(key); ok {
			return val
		}
		return nil
	case Profile:
		if val, ok := u.metadataValue(key); ok {
			return val
		}
		return nil
	case State:
		return profileClaim(u.User, key)
	case *State:
		if u == nil {
			return nil
		}
		return profileClaim(u.User, key)
	case map[string]any:
		if meta, ok := u["metadata"].(map[string]any); ok {
			return meta[key]
		}
		return nil
	default:
		return nil
	}
}

func profileEmail(v any) string {
	switch u := v.(type) {
	case *Profile:
		if u == nil {
			return ""
		}
		return u.Email
	case Profile:
		return u.Email
	case State:
		return profileEmail(u.User)
	case *State:
		if u == nil {
			return ""
		}
		return profileEmail(u.User)
	case map[string]any:
		if email, ok := u["email"].(string); ok {
			return email
		}
		return ""
	default:
		return ""
	}
}
