package hostedauth

import (
	"context"
	"sync"
	"time"
)

// DefaultBootstrapDelay is how long the provider holds the loading gate
// open before its first platform read.
const DefaultBootstrapDelay = 1000 * time.Millisecond

// ProviderOption customizes provider construction.
type ProviderOption func(*Provider)

// WithLogger overrides the logger used by the provider.
func WithLogger(logger Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithLoggerProvider resolves the provider's logger from a named logger
// factory.
func WithLoggerProvider(provider LoggerProvider) ProviderOption {
	return func(p *Provider) {
		if provider != nil {
			p.loggerProvider = provider
		}
	}
}

// WithBootstrapDelay overrides the loading gate duration. Zero is
// allowed and settles on the next scheduler tick.
func WithBootstrapDelay(delay time.Duration) ProviderOption {
	return func(p *Provider) {
		if delay >= 0 {
			p.delay = delay
		}
	}
}

// WithActivitySink sets the ActivitySink used to publish auth events.
func WithActivitySink(sink ActivitySink) ProviderOption {
	return func(p *Provider) {
		p.activity = normalizeActivitySink(sink)
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) ProviderOption {
	return func(p *Provider) {
		if clock != nil {
			p.now = clock
		}
	}
}

// Provider owns one platform client and presents the normalized auth
// surface. Construct with New, call Start once, and Close when done.
// One provider per process; nesting providers is not supported.
type Provider struct {
	platform Platform
	name     string

	delay          time.Duration
	logger         Logger
	loggerProvider LoggerProvider
	activity       ActivitySink
	now            func() time.Time

	loginFn    Action
	registerFn Action
	logoutFn   Action
	tokenFn    TokenFunc

	mu      sync.RWMutex
	snap    Snapshot
	settled bool
	closed  bool

	timer     *time.Timer
	gate      chan struct{}
	ready     <-chan struct{}
	refreshCh chan struct{}
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

var _ Auth = (*Provider)(nil)

// New builds a provider around the given platform. A nil platform is
// allowed: every member of the surface degrades to its typed absent
// form, so consumers never branch on wiring.
func New(platform Platform, opts ...ProviderOption) *Provider {
	p := &Provider{
		platform:  platform,
		name:      platformName(platform),
		delay:     DefaultBootstrapDelay,
		activity:  noopActivitySink{},
		now:       time.Now,
		gate:      make(chan struct{}),
		ready:     readyChannel(platform),
		refreshCh: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	p.loggerProvider, p.logger = ResolveLogger("hostedauth", p.loggerProvider, p.logger)

	p.loginFn = normalizeAction(p.platformLogin())
	p.registerFn = normalizeAction(p.platformRegister())
	p.logoutFn = normalizeAction(p.platformLogout())
	p.tokenFn = normalizeTokenFunc(p.platformToken())

	return p
}

// Start begins the bootstrap run. The loading gate holds until the
// configured delay elapses or the platform signals readiness, whichever
// comes first; only then does the provider take its first platform
// read. Start is idempotent.
func (p *Provider) Start(ctx context.Context) *Provider {
	p.startOnce.Do(func() {
		if ctx == nil {
			ctx = context.Background()
		}
		p.timer = time.NewTimer(p.delay)
		p.wg.Add(1)
		go p.run(ctx)
	})
	return p
}

// Close cancels the bootstrap timer and stops the state loop. In-flight
// actions are not interrupted; they run against their own contexts.
// Closing before the gate settles leaves the surface loading, matching
// a teardown during bootstrap.
func (p *Provider) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		if p.timer != nil {
			p.timer.Stop()
		}
		close(p.done)
		p.wg.Wait()
	})
	return nil
}

// Loading reports whether the surface is still warming up: true while
// the bootstrap gate is open and, when the platform signals readiness,
// until that signal arrives. It starts true and flips to false exactly
// once; both conditions are one-way, so it never reverts.
func (p *Provider) Loading() bool {
	p.mu.RLock()
	settled := p.settled
	p.mu.RUnlock()
	return !settled || !readyClosed(p.ready)
}

// Authenticated reports the settled platform reading, false while the
// gate is open.
func (p *Provider) Authenticated() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.settled {
		return false
	}
	return p.snap.Authenticated
}

// User returns the current profile or nil, never a partial value. Nil
// while the gate is open.
func (p *Provider) User() *Profile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.settled {
		return nil
	}
	return p.snap.User.Clone()
}

// State returns the full normalized reading as one consistent value.
func (p *Provider) State() State {
	p.mu.RLock()
	snap := p.snap.clone()
	settled := p.settled
	p.mu.RUnlock()
	return stateOf(snap, !settled || !readyClosed(p.ready))
}

// Login delegates to the platform's interactive login. Fire and forget:
// it returns immediately and failures are logged, never surfaced.
func (p *Provider) Login(ctx context.Context) {
	p.runAction(ctx, "login", ActivityEventLoginStarted, p.loginFn)
}

// Register delegates to the platform's signup flow. Fire and forget.
func (p *Provider) Register(ctx context.Context) {
	p.runAction(ctx, "register", ActivityEventRegisterStarted, p.registerFn)
}

// Logout clears the platform session. Fire and forget.
func (p *Provider) Logout(ctx context.Context) {
	p.runAction(ctx, "logout", ActivityEventLogout, p.logoutFn)
}

// Token returns the current access token or "". It never fails: token
// errors are logged and normalized to the empty string, and the gate
// suppresses platform reads while open.
func (p *Provider) Token(ctx context.Context) string {
	if p.Loading() {
		return ""
	}
	return p.tokenFn(ctx)
}

// Refresh asks the state loop to take a fresh platform read. The read
// goes through the same single applier as platform emissions, so
// ordering holds; while the gate is open the read waits for it to
// settle. No-op after Close.
func (p *Provider) Refresh() {
	select {
	case p.refreshCh <- struct{}{}:
	default:
	}
}

// Platform exposes the underlying client so collaborators, like the
// HTTP controller, can discover richer capabilities.
func (p *Provider) Platform() Platform {
	return p.platform
}

// Name identifies the wrapped platform.
func (p *Provider) Name() string {
	return p.name
}

// Settled reports whether the gate has closed. Unlike Loading this
// reads naturally in wait loops.
func (p *Provider) Settled() <-chan struct{} {
	return p.gate
}

//--- bootstrap and state loop

// run is the only goroutine that touches the platform state: gate
// first, one settle read, then emissions in order.
func (p *Provider) run(ctx context.Context) {
	defer p.wg.Done()
	defer p.timer.Stop()

	select {
	case <-p.timer.C:
	case <-p.ready:
	case <-p.done:
		return
	case <-ctx.Done():
		return
	}

	var changes <-chan Snapshot
	if notifier, ok := p.platform.(StateNotifier); ok {
		changes = notifier.StateChanges()
	}

	// When the timer opened the gate ahead of a still-warming platform,
	// one more read is taken the moment readiness arrives.
	lateReady := p.ready
	if readyClosed(p.ready) {
		lateReady = nil
	}

	// Emissions buffered while the gate was open are superseded by the
	// settle read, which reflects everything emitted so far.
	drain(changes)
	p.settle(ctx, p.read(ctx))

	for {
		select {
		case snap, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			p.apply(ctx, snap)
		case <-lateReady:
			lateReady = nil
			p.apply(ctx, p.read(ctx))
		case <-p.refreshCh:
			p.apply(ctx, p.read(ctx))
		case <-p.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (p *Provider) settle(ctx context.Context, snap Snapshot) {
	p.mu.Lock()
	if p.settled || p.closed {
		p.mu.Unlock()
		return
	}
	p.snap = snap
	p.settled = true
	p.mu.Unlock()

	close(p.gate)

	p.logger.Debug("bootstrap settled platform=%s authenticated=%t", p.name, snap.Authenticated)
	p.record(ctx, ActivityEventBootstrapSettled, nil)
}

func (p *Provider) apply(ctx context.Context, snap Snapshot) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	prev := p.snap
	p.snap = snap
	p.mu.Unlock()

	if sessionChanged(prev, snap) {
		p.logger.Debug("session changed platform=%s authenticated=%t", p.name, snap.Authenticated)
		p.record(ctx, ActivityEventSessionChanged, nil)
	}
}

func (p *Provider) read(ctx context.Context) Snapshot {
	if p.platform == nil {
		return Snapshot{}
	}
	return p.platform.Snapshot(ctx).clone()
}

//--- capability resolution

func (p *Provider) platformLogin() Action {
	starter, ok := p.platform.(LoginStarter)
	if !ok {
		return nil
	}
	return func(ctx context.Context) {
		if err := starter.StartLogin(ctx); err != nil {
			p.logger.Error("login failed platform=%s: %v", p.name, err)
			p.record(ctx, ActivityEventLoginFailure, map[string]any{"error": err.Error()})
			return
		}
		p.Refresh()
	}
}

func (p *Provider) platformRegister() Action {
	starter, ok := p.platform.(RegisterStarter)
	if !ok {
		return nil
	}
	return func(ctx context.Context) {
		if err := starter.StartRegister(ctx); err != nil {
			p.logger.Error("register failed platform=%s: %v", p.name, err)
			p.record(ctx, ActivityEventLoginFailure, map[string]any{"error": err.Error()})
			return
		}
		p.Refresh()
	}
}

func (p *Provider) platformLogout() Action {
	capable, ok := p.platform.(LogoutCapable)
	if !ok {
		return nil
	}
	return func(ctx context.Context) {
		if err := capable.Logout(ctx); err != nil {
			p.logger.Error("logout failed platform=%s: %v", p.name, err)
			return
		}
		p.Refresh()
	}
}

func (p *Provider) platformToken() TokenFunc {
	source, ok := p.platform.(TokenSource)
	if !ok {
		return nil
	}
	return func(ctx context.Context) string {
		token, err := source.AccessToken(ctx)
		if err != nil {
			p.logger.Debug("token unavailable platform=%s: %v", p.name, err)
			return ""
		}
		return token
	}
}

//--- helpers

func (p *Provider) runAction(ctx context.Context, name string, event ActivityEventType, fn Action) {
	if ctx == nil {
		ctx = context.Background()
	}
	p.record(ctx, event, nil)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("%s action panicked platform=%s: %v", name, p.name, r)
			}
		}()
		fn(ctx)
	}()
}

// RecordActivity publishes an auth event through the provider's sink,
// filling in the platform name and timestamp when absent. Sink failures
// are logged, never returned.
func (p *Provider) RecordActivity(ctx context.Context, event ActivityEvent) {
	if event.Platform == "" {
		event.Platform = p.name
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = p.now()
	}
	if err := p.activity.Record(ctx, event); err != nil {
		p.logger.Warn("activity record failed: %v", err)
	}
}

func (p *Provider) record(ctx context.Context, eventType ActivityEventType, metadata map[string]any) {
	event := ActivityEvent{
		EventType: eventType,
		Metadata:  metadata,
	}

	p.mu.RLock()
	if p.settled && p.snap.User != nil {
		event.Subject = p.snap.User.Subject
		event.Email = p.snap.User.Email
	}
	p.mu.RUnlock()

	p.RecordActivity(ctx, event)
}

func sessionChanged(prev, next Snapshot) bool {
	if prev.Authenticated != next.Authenticated {
		return true
	}
	prevSubject := ""
	if prev.User != nil {
		prevSubject = prev.User.Subject
	}
	nextSubject := ""
	if next.User != nil {
		nextSubject = next.User.Subject
	}
	return prevSubject != nextSubject
}

func platformName(platform Platform) string {
	if platform == nil {
		return "none"
	}
	if name := platform.Name(); name != "" {
		return name
	}
	return "unknown"
}

func readyChannel(platform Platform) <-chan struct{} {
	if signaler, ok := platform.(ReadySignaler); ok {
		return signaler.Ready()
	}
	return nil
}

// readyClosed treats a missing readiness signal as ready, so platforms
// without asynchronous warm-up never hold the loading flag.
func readyClosed(ready <-chan struct{}) bool {
	if ready == nil {
		return true
	}
	select {
	case <-ready:
		return true
	default:
		return false
	}
}

func drain(changes <-chan Snapshot) {
	for {
		select {
		case _, ok := <-changes:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
