package hostedauth_test

import (
	"context"
	"crypto/sha256"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	hostedauth "github.com/goliatone/go-hosted-auth"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	_ hostedauth.HostedFlow       = (*hostedPlatform)(nil)
	_ hostedauth.RegistrationFlow = (*hostedPlatform)(nil)
	_ hostedauth.LogoutURLBuilder = (*hostedPlatform)(nil)
	_ hostedauth.LogoutCapable    = (*hostedPlatform)(nil)
)

// hostedPlatform fakes a platform with hosted pages: redirects carry the
// state out and CompleteLogin folds a session in.
type hostedPlatform struct {
	*stubPlatform

	flowMu       sync.Mutex
	profile      *hostedauth.Profile
	completeErr  error
	beginReqs    []hostedauth.FlowRequest
	registerReqs []hostedauth.FlowRequest
	completed    []string
	logouts      int
}

func newHostedPlatform(profile *hostedauth.Profile) *hostedPlatform {
	return &hostedPlatform{
		stubPlatform: newStubPlatform(hostedauth.Snapshot{}),
		profile:      profile,
	}
}

func (h *hostedPlatform) BeginLogin(ctx context.Context, req hostedauth.FlowRequest) (*hostedauth.FlowRedirect, error) {
	h.flowMu.Lock()
	defer h.flowMu.Unlock()
	h.beginReqs = append(h.beginReqs, req)
	return &hostedauth.FlowRedirect{
		URL: "https://tenant.example.test/authorize?state=" + url.QueryEscape(req.State),
	}, nil
}

func (h *hostedPlatform) BeginRegister(ctx context.Context, req hostedauth.FlowRequest) (*hostedauth.FlowRedirect, error) {
	h.flowMu.Lock()
	defer h.flowMu.Unlock()
	h.registerReqs = append(h.registerReqs, req)
	return &hostedauth.FlowRedirect{
		URL: "https://tenant.example.test/authorize?screen_hint=signup&state=" + url.QueryEscape(req.State),
	}, nil
}

func (h *hostedPlatform) CompleteLogin(ctx context.Context, code, state string) (*hostedauth.Profile, error) {
	h.flowMu.Lock()
	defer h.flowMu.Unlock()
	if h.completeErr != nil {
		return nil, h.completeErr
	}
	h.completed = append(h.completed, code+"|"+state)
	h.setSnapshot(hostedauth.Snapshot{Authenticated: true, User: h.profile})
	return h.profile, nil
}

func (h *hostedPlatform) Logout(ctx context.Context) error {
	h.flowMu.Lock()
	h.logouts++
	h.flowMu.Unlock()
	h.setSnapshot(hostedauth.Snapshot{})
	return nil
}

func (h *hostedPlatform) LogoutURL(returnTo string) string {
	return "https://tenant.example.test/logout?returnTo=" + url.QueryEscape(returnTo)
}

func testFlowStates() *hostedauth.EncryptedFlowStateManager {
	encKey := sha256.Sum256([]byte("integration-secret:enc"))
	macKey := sha256.Sum256([]byte("integration-secret:mac"))
	return hostedauth.NewEncryptedFlowStateManager(encKey[:], macKey[:], 0)
}

// flashGuards registers tolerant expectations for the flash helper calls
// made on the way out of a completed flow.
func flashGuards(mockCtx *MockContext) {
	mockCtx.On("Cookie", mock.Anything).Return().Maybe()
	mockCtx.On("Locals", mock.Anything, mock.Anything).Return(nil).Maybe()
	mockCtx.On("Set", mock.Anything, mock.Anything).Return().Maybe()
	mockCtx.On("SetHeader", mock.Anything, mock.Anything).Return().Maybe()
	mockCtx.On("GetString", mock.Anything, mock.Anything).Return("").Maybe()
	mockCtx.On("Get", mock.Anything, mock.Anything).Return(nil).Maybe()
}

func TestHostedRoundTripIntegration(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}

	profile := &hostedauth.Profile{
		Subject:       "auth0|integration",
		Email:         "integration@example.com",
		EmailVerified: true,
		Name:          "Integration User",
	}

	platform := newHostedPlatform(profile)
	provider := hostedauth.New(platform,
		hostedauth.WithBootstrapDelay(time.Millisecond),
		hostedauth.WithActivitySink(sink),
	)
	defer provider.Close()
	provider.Start(ctx)
	waitSettled(t, provider)

	states := testFlowStates()
	controller := hostedauth.NewAuthController(func(c *hostedauth.AuthController) *hostedauth.AuthController {
		c.Provider = provider
		c.States = states
		c.SuccessRedirect = "/dashboard"
		c.ErrorRedirect = "/"
		return c
	})

	// Step 1: the login route hands the browser to the hosted page.
	loginCtx := new(MockContext)
	loginCtx.On("Query", "return_to", "").Return("/reports")
	loginCtx.On("Query", "prompt", "").Return("")
	loginCtx.On("Context").Return(ctx)

	var hostedURL string
	loginCtx.On("Redirect", mock.Anything, []int{http.StatusTemporaryRedirect}).Run(func(args mock.Arguments) {
		hostedURL = args.String(0)
	}).Return(nil)

	require.NoError(t, controller.BeginLogin(loginCtx))
	require.NotEmpty(t, hostedURL)

	parsed, err := url.Parse(hostedURL)
	require.NoError(t, err)
	stateToken := parsed.Query().Get("state")
	require.NotEmpty(t, stateToken)

	// The state we handed out decodes to the flow we started.
	flowState, err := states.Decode(stateToken)
	require.NoError(t, err)
	assert.Equal(t, hostedauth.FlowActionLogin, flowState.Action)
	assert.Equal(t, "/reports", flowState.ReturnTo)

	// Step 2: the platform calls back with a code and the same state.
	callbackCtx := new(MockContext)
	callbackCtx.On("Query", "error", "").Return("")
	callbackCtx.On("Query", "code", "").Return("test-code")
	callbackCtx.On("Query", "state", "").Return(stateToken)
	callbackCtx.On("Context").Return(ctx)
	flashGuards(callbackCtx)

	var finalURL string
	callbackCtx.On("Redirect", mock.Anything, []int{http.StatusSeeOther}).Run(func(args mock.Arguments) {
		finalURL = args.String(0)
	}).Return(nil)

	require.NoError(t, controller.Callback(callbackCtx))
	assert.Equal(t, "/reports", finalURL)
	require.Equal(t, []string{"test-code|" + stateToken}, platform.completed)

	// The refresh lands and the surface flips to authenticated.
	require.Eventually(t, func() bool {
		return sink.count(hostedauth.ActivityEventSessionChanged) == 1
	}, time.Second, 5*time.Millisecond)
	require.True(t, provider.Authenticated())
	require.NotNil(t, provider.User())
	assert.Equal(t, "auth0|integration", provider.User().Subject)

	// Step 3: a protected route now passes.
	mw := hostedauth.NewMiddleware(provider)
	protectedCtx := new(MockContext)
	protectedCtx.On("Locals", hostedauth.DefaultStateLocalsKey).Return(nil)
	protectedCtx.On("Context").Return(ctx)

	nextRan := false
	err = mw.RequireAuth()(func(c router.Context) error {
		nextRan = true
		return nil
	})(protectedCtx)
	require.NoError(t, err)
	assert.True(t, nextRan)

	// Step 4: logout clears the local session and redirects to the
	// hosted logout page.
	logoutCtx := new(MockContext)
	logoutCtx.On("Context").Return(ctx)

	var logoutURL string
	logoutCtx.On("Redirect", mock.Anything, []int{http.StatusTemporaryRedirect}).Run(func(args mock.Arguments) {
		logoutURL = args.String(0)
	}).Return(nil)

	require.NoError(t, controller.Logout(logoutCtx))
	assert.Contains(t, logoutURL, "https://tenant.example.test/logout")

	require.Eventually(t, func() bool {
		return sink.count(hostedauth.ActivityEventSessionChanged) == 2
	}, time.Second, 5*time.Millisecond)
	require.False(t, provider.Authenticated())

	// The activity trail tells the whole story in order.
	events := sink.all()
	var types []hostedauth.ActivityEventType
	for _, event := range events {
		types = append(types, event.EventType)
	}
	require.Equal(t, []hostedauth.ActivityEventType{
		hostedauth.ActivityEventBootstrapSettled,
		hostedauth.ActivityEventLoginSuccess,
		hostedauth.ActivityEventSessionChanged,
		hostedauth.ActivityEventLogout,
		hostedauth.ActivityEventSessionChanged,
	}, types)

	assert.Equal(t, "auth0|integration", events[1].Subject)
	assert.Equal(t, "integration@example.com", events[1].Email)
	assert.Equal(t, "auth0|integration", events[3].Subject, "logout is recorded against the session it ends")
	assert.Equal(t, "", events[4].Subject)
}

func TestHostedRegisterRoundTrip(t *testing.T) {
	ctx := context.Background()

	platform := newHostedPlatform(&hostedauth.Profile{Subject: "auth0|fresh", Email: "fresh@example.com"})
	provider := hostedauth.New(platform, hostedauth.WithBootstrapDelay(time.Millisecond))
	defer provider.Close()
	provider.Start(ctx)
	waitSettled(t, provider)

	states := testFlowStates()
	controller := hostedauth.NewAuthController(func(c *hostedauth.AuthController) *hostedauth.AuthController {
		c.Provider = provider
		c.States = states
		c.SuccessRedirect = "/welcome"
		return c
	})

	registerCtx := new(MockContext)
	registerCtx.On("Query", "return_to", "").Return("")
	registerCtx.On("Query", "prompt", "").Return("")
	registerCtx.On("Context").Return(ctx)

	var hostedURL string
	registerCtx.On("Redirect", mock.Anything, []int{http.StatusTemporaryRedirect}).Run(func(args mock.Arguments) {
		hostedURL = args.String(0)
	}).Return(nil)

	require.NoError(t, controller.BeginRegister(registerCtx))
	assert.Contains(t, hostedURL, "screen_hint=signup")
	require.Len(t, platform.registerReqs, 1)

	stateToken := platform.registerReqs[0].State
	flowState, err := states.Decode(stateToken)
	require.NoError(t, err)
	assert.Equal(t, hostedauth.FlowActionSignup, flowState.Action)
	assert.Equal(t, "/welcome", flowState.ReturnTo)

	callbackCtx := new(MockContext)
	callbackCtx.On("Query", "error", "").Return("")
	callbackCtx.On("Query", "code", "").Return("signup-code")
	callbackCtx.On("Query", "state", "").Return(stateToken)
	callbackCtx.On("Context").Return(ctx)
	flashGuards(callbackCtx)

	var finalURL string
	callbackCtx.On("Redirect", mock.Anything, []int{http.StatusSeeOther}).Run(func(args mock.Arguments) {
		finalURL = args.String(0)
	}).Return(nil)

	require.NoError(t, controller.Callback(callbackCtx))

	// Signup completions are flagged so the app can greet new users.
	parsed, err := url.Parse(finalURL)
	require.NoError(t, err)
	assert.Equal(t, "/welcome", parsed.Path)
	assert.Equal(t, "true", parsed.Query().Get("new_user"))
}
