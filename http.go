package hostedauth

import (
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// MiddlewareConfig tunes the request side of the provider.
type MiddlewareConfig struct {
	// AuthLocalsKey is where the auth surface is stored in router locals.
	AuthLocalsKey string
	// StateLocalsKey is where the per request state reading is stored.
	StateLocalsKey string

	// LoadingView is the template rendered while the gate is open. Empty
	// renders a plain text placeholder.
	LoadingView string

	// WaitForSettle blocks a request up to WaitTimeout for the gate to
	// close instead of answering with the placeholder.
	WaitForSettle bool
	WaitTimeout   time.Duration

	// LoginRoute is where unauthenticated requests are sent.
	LoginRoute string

	// RejectedRouteKey is the cookie holding the URL an unauthenticated
	// request was rejected from.
	RejectedRouteKey     string
	RejectedRouteDefault string
}

// DefaultMiddlewareConfig returns a MiddlewareConfig with defaults.
func DefaultMiddlewareConfig() MiddlewareConfig {
	return MiddlewareConfig{
		AuthLocalsKey:        DefaultAuthLocalsKey,
		StateLocalsKey:       DefaultStateLocalsKey,
		WaitTimeout:          2 * time.Second,
		LoginRoute:           "/auth/login",
		RejectedRouteKey:     "rejected_route",
		RejectedRouteDefault: "/",
	}
}

// Middleware is the request facing side of the provider: it takes one
// state reading per request, attaches it for handlers and templates,
// and keeps gated requests on the placeholder so downstream handlers
// never observe a half bootstrapped surface.
type Middleware struct {
	provider *Provider
	cfg      MiddlewareConfig
	logger   Logger

	AuthErrorHandler func(c router.Context, err error) error
	ErrorHandler     func(c router.Context, err error) error
}

// NewMiddleware builds the middleware around a provider.
func NewMiddleware(provider *Provider, cfg ...MiddlewareConfig) *Middleware {
	c := DefaultMiddlewareConfig()
	if len(cfg) > 0 {
		c = normalizeMiddlewareConfig(cfg[0])
	}

	m := &Middleware{
		provider: provider,
		cfg:      c,
		logger:   defLogger{},
	}

	m.ErrorHandler = m.defaultErrHandler
	m.AuthErrorHandler = m.defaultAuthErrHandler

	return m
}

// WithLogger overrides the middleware logger.
func (m *Middleware) WithLogger(logger Logger) *Middleware {
	if logger != nil {
		m.logger = logger
	}
	return m
}

func normalizeMiddlewareConfig(c MiddlewareConfig) MiddlewareConfig {
	def := DefaultMiddlewareConfig()
	if c.AuthLocalsKey == "" {
		c.AuthLocalsKey = def.AuthLocalsKey
	}
	if c.StateLocalsKey == "" {
		c.StateLocalsKey = def.StateLocalsKey
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = def.WaitTimeout
	}
	if c.LoginRoute == "" {
		c.LoginRoute = def.LoginRoute
	}
	if c.RejectedRouteKey == "" {
		c.RejectedRouteKey = def.RejectedRouteKey
	}
	if c.RejectedRouteDefault == "" {
		c.RejectedRouteDefault = def.RejectedRouteDefault
	}
	return c
}

// Handler attaches the auth surface and a per request state reading.
// While the bootstrap gate is open the placeholder is returned and the
// wrapped handler never runs, so one request always sees one state.
func (m *Middleware) Handler() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			state := m.provider.State()

			if state.Loading && m.cfg.WaitForSettle {
				if err := m.waitForSettle(ctx); err != nil {
					return err
				}
				state = m.provider.State()
			}

			if state.Loading {
				return m.renderLoading(ctx)
			}

			ctx.Locals(m.cfg.AuthLocalsKey, Auth(m.provider))
			ctx.Locals(m.cfg.StateLocalsKey, state)
			ctx.SetContext(WithState(WithAuth(ctx.Context(), m.provider), state))

			return next(ctx)
		}
	}
}

// RequireAuth keeps unauthenticated requests out of a route. It runs
// after Handler and remembers the rejected URL so login can send the
// browser back.
func (m *Middleware) RequireAuth() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			state, ok := RouterState(ctx, m.cfg.StateLocalsKey)
			if !ok {
				state = m.provider.State()
			}

			if state.Loading {
				return m.renderLoading(ctx)
			}

			if !state.LoggedIn() {
				return m.AuthErrorHandler(ctx, errors.New("authentication required", errors.CategoryAuth).
					WithCode(errors.CodeUnauthorized))
			}

			return next(ctx)
		}
	}
}

func (m *Middleware) waitForSettle(ctx router.Context) error {
	timeout := time.NewTimer(m.cfg.WaitTimeout)
	defer timeout.Stop()

	select {
	case <-m.provider.Settled():
		return nil
	case <-timeout.C:
		return nil
	case <-ctx.Context().Done():
		return ctx.Context().Err()
	}
}

func (m *Middleware) renderLoading(ctx router.Context) error {
	ctx.SetHeader("Retry-After", "1")
	if m.cfg.LoadingView != "" {
		return ctx.Status(http.StatusServiceUnavailable).Render(m.cfg.LoadingView, router.ViewContext{})
	}
	return ctx.Status(http.StatusServiceUnavailable).SendString("Loading...")
}

// SetRedirect remembers the URL a rejected request was aiming for.
func (m *Middleware) SetRedirect(ctx router.Context) {
	ctx.Cookie(&router.Cookie{
		Name:     m.cfg.RejectedRouteKey,
		Value:    ctx.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// ConsumeRedirect returns the remembered URL, falling back to the
// referer and then the configured default, and clears the cookie.
func (m *Middleware) ConsumeRedirect(ctx router.Context) string {
	r := ctx.Cookies(m.cfg.RejectedRouteKey, ctx.Referer())
	if r == "" {
		r = m.cfg.RejectedRouteDefault
	}
	m.cookieDel(ctx, m.cfg.RejectedRouteKey)
	return r
}

func (m *Middleware) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (m *Middleware) defaultAuthErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "An unexpected authentication error").
			WithCode(errors.CodeUnauthorized)
	}

	m.logger.Info("Authentication required, redirecting to login: error=%s path=%s",
		richErr.Message, c.OriginalURL())

	m.SetRedirect(c)

	statusCode := http.StatusSeeOther
	if c.Method() == string(router.GET) {
		statusCode = http.StatusFound
	}
	return c.Redirect(m.cfg.LoginRoute, statusCode)
}

func (m *Middleware) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	m.logger.Info("Middleware error handler: error=%s category=%s details=%s",
		richErr.Message, richErr.Category, print.MaybePrettyJSON(richErr.Metadata))

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return m.AuthErrorHandler(c, richErr)
	default:
		return c.Status(richErr.Code).Render("errors/500", router.ViewContext{
			"error": richErr,
		})
	}
}
