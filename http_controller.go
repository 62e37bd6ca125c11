package hostedauth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-featuregate/gate/guard"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// AuthControllerRoutes names the controller routes, relative to the
// group they are registered on.
type AuthControllerRoutes struct {
	Login    string
	Register string
	Callback string
	Logout   string
	Session  string
}

// AuthController drives the platform's hosted pages: it hands the
// browser to them and completes the round trip on the callback. There
// are no local credential forms; the platform owns those screens.
type AuthController struct {
	Debug       bool
	Logger      Logger
	Provider    *Provider
	States      FlowStateManager
	FeatureGate gate.FeatureGate
	Routes      *AuthControllerRoutes

	// SignupFeature is the gate key consulted before Register.
	SignupFeature string

	// SuccessRedirect is the default redirect after a completed flow.
	SuccessRedirect string

	// ErrorRedirect is the redirect for flow errors.
	ErrorRedirect string

	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

// NewAuthController builds the controller. Provider and States are
// required; everything else has a default.
func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:          defLogger{},
		SignupFeature:   gate.FeatureUsersSignup,
		SuccessRedirect: "/",
		ErrorRedirect:   "/",
		Routes: &AuthControllerRoutes{
			Login:    "/login",
			Register: "/register",
			Callback: "/callback",
			Logout:   "/logout",
			Session:  "/session",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Provider == nil {
		panic("Missing Provider in auth controller...")
	}

	if c.States == nil {
		panic("Missing FlowStateManager in auth controller...")
	}

	return c
}

// WithLogger overrides the controller logger.
func (a *AuthController) WithLogger(logger Logger) *AuthController {
	if logger != nil {
		a.Logger = logger
	}
	return a
}

// RegisterRoutes registers the hosted flow routes on the given group.
func (a *AuthController) RegisterRoutes(group RouteRegistrar) {
	group.Get(a.Routes.Login, a.BeginLogin)
	group.Get(a.Routes.Register, a.BeginRegister)
	group.Get(a.Routes.Callback, a.Callback)
	group.Get(a.Routes.Logout, a.Logout)
	group.Get(a.Routes.Session, a.Session)
}

// BeginLogin redirects the browser to the platform's hosted login page.
func (a *AuthController) BeginLogin(ctx router.Context) error {
	return a.beginFlow(ctx, FlowActionLogin)
}

// BeginRegister redirects to the hosted signup page. Signup can be
// gated off per environment through the feature gate.
func (a *AuthController) BeginRegister(ctx router.Context) error {
	if err := a.requireSignupEnabled(ctx.Context()); err != nil {
		return a.handleError(ctx, err)
	}
	return a.beginFlow(ctx, FlowActionSignup)
}

func (a *AuthController) beginFlow(ctx router.Context, action string) error {
	platform := a.Provider.Platform()

	returnTo := ctx.Query("return_to", "")
	if returnTo == "" {
		returnTo = a.SuccessRedirect
	}

	token, err := a.States.Encode(&FlowState{
		Action:   action,
		ReturnTo: returnTo,
	})
	if err != nil {
		return a.handleError(ctx, err)
	}

	req := FlowRequest{
		State:  token,
		Prompt: ctx.Query("prompt", ""),
	}

	var redirect *FlowRedirect
	switch action {
	case FlowActionSignup:
		reg, ok := platform.(RegistrationFlow)
		if !ok {
			return a.handleError(ctx, ErrFlowUnsupported)
		}
		redirect, err = reg.BeginRegister(ctx.Context(), req)
	default:
		flow, ok := platform.(HostedFlow)
		if !ok {
			return a.handleError(ctx, ErrFlowUnsupported)
		}
		redirect, err = flow.BeginLogin(ctx.Context(), req)
	}
	if err != nil {
		return a.handleError(ctx, err)
	}

	if a.Debug {
		fmt.Println("======= AUTH REDIRECT ======")
		fmt.Println(print.MaybePrettyJSON(redirect))
		fmt.Println("============================")
	}

	return ctx.Redirect(redirect.URL, http.StatusTemporaryRedirect)
}

// Callback completes the hosted round trip: verify the state we minted
// on the way out, exchange the code, fold the session into the
// provider, and send the browser where it was headed.
func (a *AuthController) Callback(ctx router.Context) error {
	if errCode := ctx.Query("error", ""); errCode != "" {
		errDesc := ctx.Query("error_description", "")
		a.Logger.Warn("platform error on callback: %s %s", errCode, errDesc)

		redirectURL := appendQueryParam(a.ErrorRedirect, "platform_error", errCode)
		if errDesc != "" {
			redirectURL = appendQueryParam(redirectURL, "desc", errDesc)
		}
		return ctx.Redirect(redirectURL, http.StatusTemporaryRedirect)
	}

	code := ctx.Query("code", "")
	stateToken := ctx.Query("state", "")
	if code == "" || stateToken == "" {
		return a.handleError(ctx, ErrMissingCode)
	}

	state, err := a.States.Decode(stateToken)
	if err != nil {
		return a.handleError(ctx, err)
	}

	flow, ok := a.Provider.Platform().(HostedFlow)
	if !ok {
		return a.handleError(ctx, ErrFlowUnsupported)
	}

	profile, err := flow.CompleteLogin(ctx.Context(), code, stateToken)
	if err != nil {
		return a.handleError(ctx, errors.Wrap(err, errors.CategoryAuth, "code exchange failed").
			WithTextCode(TextCodeExchangeFailed).
			WithCode(errors.CodeUnauthorized))
	}

	a.Provider.RecordActivity(ctx.Context(), ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Subject:   profile.Subject,
		Email:     profile.Email,
		Metadata:  map[string]any{"action": state.Action},
	})
	a.Provider.Refresh()

	if a.Debug {
		fmt.Println("======= AUTH CALLBACK ======")
		fmt.Println(print.MaybePrettyJSON(profile))
		fmt.Println("============================")
	}

	redirectURL := state.ReturnTo
	if redirectURL == "" {
		redirectURL = a.SuccessRedirect
	}

	if state.Action == FlowActionSignup {
		redirectURL = appendQueryParam(redirectURL, "new_user", "true")
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Signed in",
	}).Redirect(redirectURL, fiber.StatusSeeOther)
}

// Logout clears the local session and hands the browser to the
// platform's logout page so the hosted session ends too.
func (a *AuthController) Logout(ctx router.Context) error {
	a.Provider.Logout(ctx.Context())

	if builder, ok := a.Provider.Platform().(LogoutURLBuilder); ok {
		return ctx.Redirect(builder.LogoutURL(""), http.StatusTemporaryRedirect)
	}

	return ctx.Redirect(a.SuccessRedirect, http.StatusTemporaryRedirect)
}

// Session reports the current normalized reading as JSON.
func (a *AuthController) Session(ctx router.Context) error {
	state, ok := RouterState(ctx, "")
	if !ok {
		state = a.Provider.State()
	}

	var user any
	if state.User != nil {
		user = state.User
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"authenticated": state.Authenticated,
		"loading":       state.Loading,
		"user":          user,
	})
}

func (a *AuthController) requireSignupEnabled(ctx context.Context) error {
	if a.FeatureGate == nil {
		return nil
	}
	return guard.Require(ctx, a.FeatureGate, a.SignupFeature,
		guard.WithDisabledError(ErrSignupDisabled),
		guard.WithErrorMapper(normalizeFeatureGateError),
	)
}

func normalizeFeatureGateError(err error) error {
	if err == nil {
		return nil
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return err
	}

	return errors.Wrap(err, errors.CategoryAuthz, "Feature gate check failed").
		WithCode(errors.CodeForbidden)
}

func (a *AuthController) handleError(ctx router.Context, err error) error {
	if a.ErrorHandler != nil {
		return a.ErrorHandler(ctx, err)
	}

	code := "auth_failed"
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode != "" {
		code = richErr.TextCode
	}

	a.Logger.Error("auth flow error: %v", err)

	redirectURL := appendQueryParam(a.ErrorRedirect, "error", code)
	return flash.WithError(ctx, router.ViewContext{
		"error_message": err.Error(),
	}).Redirect(redirectURL, http.StatusTemporaryRedirect)
}

func appendQueryParam(rawURL, key, value string) string {
	if rawURL == "" {
		return ""
	}

	parsed, err := url.Parse(rawURL)
	if err == nil {
		query := parsed.Query()
		query.Set(key, value)
		parsed.RawQuery = query.Encode()
		return parsed.String()
	}

	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value)
}
