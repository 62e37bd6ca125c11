package auth0

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	hostedauth "github.com/goliatone/go-hosted-auth"
	"golang.org/x/oauth2"
)

// pendingFlowTTL bounds how long a started login may wait for its callback.
const pendingFlowTTL = 10 * time.Minute

var (
	_ hostedauth.Platform         = (*Client)(nil)
	_ hostedauth.StateNotifier    = (*Client)(nil)
	_ hostedauth.ReadySignaler    = (*Client)(nil)
	_ hostedauth.HostedFlow       = (*Client)(nil)
	_ hostedauth.RegistrationFlow = (*Client)(nil)
	_ hostedauth.LogoutCapable    = (*Client)(nil)
	_ hostedauth.TokenSource      = (*Client)(nil)
	_ hostedauth.LogoutURLBuilder = (*Client)(nil)
	_ hostedauth.LoginStarter     = (*Client)(nil)
)

// Client talks to an Auth0 tenant. It redirects to the hosted pages for
// login and registration, completes the code exchange at the callback,
// and holds the resulting principal in memory until logout.
//
// Every authorization request carries a PKCE challenge; the verifier is
// kept per state token so concurrent login attempts do not trample each
// other.
type Client struct {
	config     Config
	oauth      *oauth2.Config
	verifier   *IDTokenVerifier
	mapper     ProfileMapper
	logger     hostedauth.Logger
	httpClient *http.Client

	mu      sync.RWMutex
	session *session
	pending map[string]pendingFlow

	changes chan hostedauth.Snapshot
	ready   chan struct{}
}

// session is the in-memory principal. The token source refreshes the
// access token transparently when a refresh token was granted.
type session struct {
	profile *hostedauth.Profile
	token   *oauth2.Token
	source  oauth2.TokenSource
}

type pendingFlow struct {
	verifier string
	created  time.Time
}

// New creates a client for the tenant described by cfg.
func New(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var idVerifier *IDTokenVerifier
	if !cfg.SkipIDTokenVerification {
		v, err := NewIDTokenVerifier(cfg)
		if err != nil {
			return nil, err
		}
		idVerifier = v
	}

	mapper := cfg.ProfileMapper
	if mapper == nil {
		mapper = &IDTokenProfileMapper{Namespace: cfg.ClaimsNamespace}
	}

	endpoint := oauth2.Endpoint{
		AuthURL:       cfg.authorizeURL(),
		TokenURL:      cfg.tokenURL(),
		DeviceAuthURL: cfg.deviceAuthURL(),
	}
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}

	_, logger := hostedauth.ResolveLogger("auth0", nil, cfg.Logger)

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	client := &Client{
		config:     cfg,
		verifier:   idVerifier,
		mapper:     mapper,
		logger:     logger,
		httpClient: httpClient,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		pending: map[string]pendingFlow{},
		changes: make(chan hostedauth.Snapshot, 8),
		ready:   make(chan struct{}),
	}

	// Initialization is synchronous, the client is usable as soon as it
	// exists.
	close(client.ready)

	return client, nil
}

// Name implements hostedauth.Platform.
func (c *Client) Name() string {
	return "auth0"
}

// Snapshot implements hostedauth.Platform.
func (c *Client) Snapshot(ctx context.Context) hostedauth.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.session == nil {
		return hostedauth.Snapshot{}
	}

	return hostedauth.Snapshot{
		Authenticated: true,
		User:          c.session.profile.Clone(),
	}
}

// StateChanges implements hostedauth.StateNotifier. Emissions are full
// snapshots in the order sessions change.
func (c *Client) StateChanges() <-chan hostedauth.Snapshot {
	return c.changes
}

// Ready implements hostedauth.ReadySignaler. The channel is closed at
// construction since the client needs no asynchronous warm-up.
func (c *Client) Ready() <-chan struct{} {
	return c.ready
}

// BeginLogin implements hostedauth.HostedFlow.
func (c *Client) BeginLogin(ctx context.Context, req hostedauth.FlowRequest) (*hostedauth.FlowRedirect, error) {
	return c.beginFlow(req)
}

// BeginRegister implements hostedauth.RegistrationFlow. Auth0 renders the
// signup screen of the same hosted page when screen_hint is set.
func (c *Client) BeginRegister(ctx context.Context, req hostedauth.FlowRequest) (*hostedauth.FlowRedirect, error) {
	return c.beginFlow(req, oauth2.SetAuthURLParam("screen_hint", "signup"))
}

func (c *Client) beginFlow(req hostedauth.FlowRequest, extra ...oauth2.AuthCodeOption) (*hostedauth.FlowRedirect, error) {
	if req.State == "" {
		return nil, hostedauth.ErrInvalidFlowState
	}

	verifier := oauth2.GenerateVerifier()
	c.storePending(req.State, verifier)

	opts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier)}
	if c.config.Audience != "" {
		opts = append(opts, oauth2.SetAuthURLParam("audience", c.config.Audience))
	}
	if req.Prompt != "" {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", req.Prompt))
	}
	opts = append(opts, extra...)

	return &hostedauth.FlowRedirect{
		URL: c.oauth.AuthCodeURL(req.State, opts...),
	}, nil
}

// CompleteLogin implements hostedauth.HostedFlow. The state token must
// match a flow this client started; the stored PKCE verifier is consumed
// either way.
func (c *Client) CompleteLogin(ctx context.Context, code, state string) (*hostedauth.Profile, error) {
	verifier, ok := c.takePending(state)
	if !ok {
		return nil, hostedauth.ErrInvalidFlowState
	}

	token, err := c.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryAuth, "code exchange failed").
			WithCode(errors.CodeUnauthorized)
	}

	profile, err := c.profileFromToken(ctx, token)
	if err != nil {
		return nil, err
	}

	c.setSession(profile, token)

	return profile.Clone(), nil
}

// StartLogin implements hostedauth.LoginStarter using the device
// authorization grant. It blocks while polling for approval, which suits
// the fire-and-forget action it backs. Headless registration is not
// offered since the device grant has no signup hint.
func (c *Client) StartLogin(ctx context.Context) error {
	if c.oauth.Endpoint.DeviceAuthURL == "" {
		return ErrDeviceFlowUnavailable
	}

	var opts []oauth2.AuthCodeOption
	if c.config.Audience != "" {
		opts = append(opts, oauth2.SetAuthURLParam("audience", c.config.Audience))
	}

	grant, err := c.oauth.DeviceAuth(ctx, opts...)
	if err != nil {
		return errors.Wrap(err, errors.CategoryAuth, "device authorization request failed").
			WithTextCode(TextCodeDeviceFlow).
			WithCode(errors.CodeUnauthorized)
	}

	uri := grant.VerificationURIComplete
	if uri == "" {
		uri = grant.VerificationURI
	}
	c.logger.Info("visit %s and enter code %s to sign in", uri, grant.UserCode)

	token, err := c.oauth.DeviceAccessToken(ctx, grant)
	if err != nil {
		return errors.Wrap(err, errors.CategoryAuth, "device authorization was not completed").
			WithTextCode(TextCodeDeviceFlow).
			WithCode(errors.CodeUnauthorized)
	}

	profile, err := c.profileFromToken(ctx, token)
	if err != nil {
		return err
	}

	c.setSession(profile, token)

	return nil
}

// Logout implements hostedauth.LogoutCapable. It only clears the local
// session; ending the hosted session is the LogoutURL redirect's job.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	had := c.session != nil
	c.session = nil
	c.mu.Unlock()

	if had {
		c.emit(hostedauth.Snapshot{})
	}

	return nil
}

// LogoutURL implements hostedauth.LogoutURLBuilder. An empty returnTo
// falls back to the configured logout redirect URI.
func (c *Client) LogoutURL(returnTo string) string {
	if returnTo == "" {
		returnTo = c.config.LogoutRedirectURI
	}

	query := url.Values{}
	query.Set("client_id", c.config.ClientID)
	if returnTo != "" {
		query.Set("returnTo", returnTo)
	}

	return c.config.logoutURL() + "?" + query.Encode()
}

// AccessToken implements hostedauth.TokenSource. Without a session it
// returns an empty token and no error. With one, the token source renews
// through the refresh token when the access token has expired.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	sess := c.session
	c.mu.RUnlock()

	if sess == nil {
		return "", nil
	}

	token, err := sess.source.Token()
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryAuth, "token refresh failed").
			WithCode(errors.CodeUnauthorized)
	}

	c.mu.Lock()
	if c.session == sess {
		sess.token = token
	}
	c.mu.Unlock()

	return token.AccessToken, nil
}

//---

func (c *Client) profileFromToken(ctx context.Context, token *oauth2.Token) (*hostedauth.Profile, error) {
	rawID, _ := token.Extra("id_token").(string)
	if rawID == "" {
		// With openid among the scopes the tenant must issue an ID
		// token, so its absence is an error. Without it the userinfo
		// endpoint is the designated profile source.
		if containsScope(c.oauth.Scopes, "openid") {
			return nil, ErrMissingIDToken
		}
		return c.userinfoProfile(ctx, token)
	}

	if c.verifier != nil {
		return c.verifier.Verify(ctx, rawID)
	}

	return c.unverifiedProfile(ctx, rawID)
}

// userinfoProfile fetches identity claims from the tenant's userinfo
// endpoint with the fresh access token.
func (c *Client) userinfoProfile(ctx context.Context, token *oauth2.Token) (*hostedauth.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.userinfoURL(), nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryAuth, "userinfo request failed").
			WithTextCode(TextCodeUserinfo).
			WithCode(errors.CodeUnauthorized)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryAuth, "userinfo request failed").
			WithTextCode(TextCodeUserinfo).
			WithCode(errors.CodeUnauthorized)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("userinfo request failed", errors.CategoryAuth).
			WithTextCode(TextCodeUserinfo).
			WithCode(errors.CodeUnauthorized).
			WithMetadata(map[string]any{"status": resp.StatusCode})
	}

	claims := &IDTokenClaims{}
	if err := json.NewDecoder(resp.Body).Decode(claims); err != nil {
		return nil, errors.Wrap(err, errors.CategoryAuth, "userinfo response malformed").
			WithTextCode(TextCodeUserinfo).
			WithCode(errors.CodeUnauthorized)
	}

	subject, _ := claims.Raw["sub"].(string)
	validated := &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{Subject: subject},
		CustomClaims:     claims,
	}

	return c.mapper.Map(ctx, validated)
}

// unverifiedProfile decodes the ID token without signature checks. Only
// reachable when SkipIDTokenVerification is set, so stub token endpoints
// can mint tokens with throwaway keys.
func (c *Client) unverifiedProfile(ctx context.Context, rawToken string) (*hostedauth.Profile, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(rawToken, claims); err != nil {
		return nil, normalizeValidationError(err)
	}

	payload, err := json.Marshal(map[string]any(claims))
	if err != nil {
		return nil, normalizeValidationError(err)
	}

	idClaims := &IDTokenClaims{}
	if err := json.Unmarshal(payload, idClaims); err != nil {
		return nil, normalizeValidationError(err)
	}

	subject, _ := claims["sub"].(string)
	validated := &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{Subject: subject},
		CustomClaims:     idClaims,
	}

	return c.mapper.Map(ctx, validated)
}

func (c *Client) setSession(profile *hostedauth.Profile, token *oauth2.Token) {
	// Refreshes outlive the request that triggered the exchange.
	source := c.oauth.TokenSource(context.Background(), token)

	c.mu.Lock()
	c.session = &session{
		profile: profile,
		token:   token,
		source:  source,
	}
	c.mu.Unlock()

	c.emit(hostedauth.Snapshot{
		Authenticated: true,
		User:          profile.Clone(),
	})
}

// emit never blocks. When the consumer lags, the oldest buffered emission
// is displaced so the channel always ends on the newest state.
func (c *Client) emit(snap hostedauth.Snapshot) {
	for {
		select {
		case c.changes <- snap:
			return
		default:
		}

		select {
		case <-c.changes:
		default:
		}
	}
}

func (c *Client) storePending(state, verifier string) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		c.pending = map[string]pendingFlow{}
	}

	for key, flow := range c.pending {
		if now.Sub(flow.created) > pendingFlowTTL {
			delete(c.pending, key)
		}
	}

	c.pending[state] = pendingFlow{verifier: verifier, created: now}
}

func (c *Client) takePending(state string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	flow, ok := c.pending[state]
	if !ok {
		return "", false
	}

	delete(c.pending, state)

	if time.Since(flow.created) > pendingFlowTTL {
		return "", false
	}

	return flow.verifier, true
}
