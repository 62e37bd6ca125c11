package hostedauth_test

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"sync"
	"testing"
	"time"

	hostedauth "github.com/goliatone/go-hosted-auth"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"
)

// MockContext mocks the router.Context
type MockContext struct {
	mock.Mock
	NextCalled bool
}

func (m *MockContext) Next() error {
	m.NextCalled = true
	return nil
}

func (m *MockContext) Context() context.Context {
	args := m.Called()
	c, ok := args.Get(0).(context.Context)
	if !ok {
		panic("arg needs to be context.Context")
	}
	return c
}

func (m *MockContext) SetContext(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockContext) Path() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Method() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Body() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *MockContext) Status(code int) router.Context {
	m.Called(code)
	return m
}

func (m *MockContext) SendString(s string) error {
	args := m.Called(s)
	return args.Error(0)
}

func (m *MockContext) Send(b []byte) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockContext) JSON(code int, val any) error {
	args := m.Called(code, val)
	return args.Error(0)
}

func (m *MockContext) NoContent(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) Render(name string, bind any, layout ...string) error {
	if len(layout) > 0 {
		args := m.Called(name, bind, layout[0])
		return args.Error(0)
	}
	args := m.Called(name, bind)
	return args.Error(0)
}

func (m *MockContext) Redirect(path string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(path, status)
		return args.Error(0)
	}
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockContext) RedirectToRoute(name string, data router.ViewContext, status ...int) error {
	if len(status) > 0 {
		args := m.Called(name, data, status[0])
		return args.Error(0)
	}
	args := m.Called(name, data)
	return args.Error(0)
}

func (m *MockContext) RedirectBack(fallback string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(fallback, status)
		return args.Error(0)
	}
	args := m.Called(fallback)
	return args.Error(0)
}

func (m *MockContext) SetHeader(key, val string) router.Context {
	m.Called(key, val)
	return m
}

func (m *MockContext) Header(key string) string {
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Get(key string, defaultValue any) any {
	args := m.Called(key, defaultValue)
	return args.Get(0)
}

func (m *MockContext) GetBool(key string, defaultValue bool) bool {
	args := m.Called(key, defaultValue)
	return args.Bool(0)
}

func (m *MockContext) GetInt(key string, def int) int {
	args := m.Called(key, def)
	return args.Int(0)
}

func (m *MockContext) Set(key string, val any) {
	m.Called(key, val)
}

func (m *MockContext) Bind(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindJSON(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindXML(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindQuery(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) CookieParser(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) Cookie(cookie *router.Cookie) {
	m.Called(cookie)
}

func (m *MockContext) Cookies(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Param(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) ParamsInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Query(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) QueryValues(name string) []string {
	args := m.Called(name)
	return args.Get(0).([]string)
}

func (m *MockContext) QueryInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Queries() map[string]string {
	args := m.Called()
	return args.Get(0).(map[string]string)
}

func (m *MockContext) GetString(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.Called(key, value[0])
		return nil
	}
	args := m.Called(key)
	return args.Get(0)
}

func (m *MockContext) LocalsMerge(key any, value map[string]any) map[string]any {
	args := m.Called(key, value)
	return args.Get(0).(map[string]any)
}

func (m *MockContext) OriginalURL() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) OnNext(callback func() error) {
	m.Called(callback)
}

func (m *MockContext) Referer() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) FormFile(key string) (*multipart.FileHeader, error) {
	args := m.Called(key)
	file, _ := args.Get(0).(*multipart.FileHeader)
	return file, args.Error(1)
}

func (m *MockContext) FormValue(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) IP() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) SendStatus(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) SendStream(r io.Reader) error {
	args := m.Called(r)
	return args.Error(0)
}

func (m *MockContext) RouteName() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) RouteParams() map[string]string {
	args := m.Called()
	return args.Get(0).(map[string]string)
}

//--------------------------------------------------------------------------------------
// Platform stubs
//--------------------------------------------------------------------------------------

var (
	_ hostedauth.Platform      = (*stubPlatform)(nil)
	_ hostedauth.StateNotifier = (*notifierPlatform)(nil)
	_ hostedauth.ReadySignaler = (*readyPlatform)(nil)
	_ hostedauth.LoginStarter  = (*actionPlatform)(nil)
	_ hostedauth.LogoutCapable = (*actionPlatform)(nil)
	_ hostedauth.TokenSource   = (*actionPlatform)(nil)
)

// stubPlatform is the minimal platform: a name and a settable snapshot.
type stubPlatform struct {
	mu    sync.Mutex
	name  string
	snap  hostedauth.Snapshot
	reads int
}

func newStubPlatform(snap hostedauth.Snapshot) *stubPlatform {
	return &stubPlatform{name: "stub", snap: snap}
}

func (s *stubPlatform) Name() string {
	return s.name
}

func (s *stubPlatform) Snapshot(ctx context.Context) hostedauth.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return s.snap
}

func (s *stubPlatform) setSnapshot(snap hostedauth.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
}

func (s *stubPlatform) snapshotReads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// notifierPlatform pushes snapshots through a change channel.
type notifierPlatform struct {
	*stubPlatform
	changes chan hostedauth.Snapshot
}

func newNotifierPlatform(snap hostedauth.Snapshot) *notifierPlatform {
	return &notifierPlatform{
		stubPlatform: newStubPlatform(snap),
		changes:      make(chan hostedauth.Snapshot, 16),
	}
}

func (n *notifierPlatform) StateChanges() <-chan hostedauth.Snapshot {
	return n.changes
}

func (n *notifierPlatform) emit(snap hostedauth.Snapshot) {
	n.setSnapshot(snap)
	n.changes <- snap
}

func (n *notifierPlatform) closeChanges() {
	close(n.changes)
}

// readyPlatform reports the end of its own initialization.
type readyPlatform struct {
	*stubPlatform
	ready chan struct{}
}

func newReadyPlatform(snap hostedauth.Snapshot) *readyPlatform {
	return &readyPlatform{
		stubPlatform: newStubPlatform(snap),
		ready:        make(chan struct{}),
	}
}

func (r *readyPlatform) Ready() <-chan struct{} {
	return r.ready
}

func (r *readyPlatform) signalReady() {
	close(r.ready)
}

// actionPlatform serves the interactive capabilities: login, register,
// logout and token access, with injectable failures.
type actionPlatform struct {
	*stubPlatform

	actionMu    sync.Mutex
	loginErr    error
	registerErr error
	logoutErr   error
	loginPanic  bool
	token       string
	tokenErr    error

	logins    int
	registers int
	logouts   int

	// afterLogin replaces the snapshot once login succeeds, so refresh
	// has something new to pick up.
	afterLogin *hostedauth.Snapshot
}

func newActionPlatform(snap hostedauth.Snapshot) *actionPlatform {
	return &actionPlatform{stubPlatform: newStubPlatform(snap)}
}

func (a *actionPlatform) StartLogin(ctx context.Context) error {
	a.actionMu.Lock()
	a.logins++
	err := a.loginErr
	panics := a.loginPanic
	after := a.afterLogin
	a.actionMu.Unlock()

	if panics {
		panic("login exploded")
	}
	if err != nil {
		return err
	}
	if after != nil {
		a.setSnapshot(*after)
	}
	return nil
}

func (a *actionPlatform) StartRegister(ctx context.Context) error {
	a.actionMu.Lock()
	a.registers++
	err := a.registerErr
	a.actionMu.Unlock()
	return err
}

func (a *actionPlatform) Logout(ctx context.Context) error {
	a.actionMu.Lock()
	a.logouts++
	err := a.logoutErr
	a.actionMu.Unlock()

	if err != nil {
		return err
	}
	a.setSnapshot(hostedauth.Snapshot{})
	return nil
}

func (a *actionPlatform) AccessToken(ctx context.Context) (string, error) {
	a.actionMu.Lock()
	defer a.actionMu.Unlock()
	return a.token, a.tokenErr
}

func (a *actionPlatform) loginCount() int {
	a.actionMu.Lock()
	defer a.actionMu.Unlock()
	return a.logins
}

func (a *actionPlatform) registerCount() int {
	a.actionMu.Lock()
	defer a.actionMu.Unlock()
	return a.registers
}

func (a *actionPlatform) logoutCount() int {
	a.actionMu.Lock()
	defer a.actionMu.Unlock()
	return a.logouts
}

//--------------------------------------------------------------------------------------
// Capture helpers
//--------------------------------------------------------------------------------------

// recordingSink collects activity events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []hostedauth.ActivityEvent
	err    error
}

func (r *recordingSink) Record(ctx context.Context, event hostedauth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingSink) all() []hostedauth.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]hostedauth.ActivityEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recordingSink) ofType(eventType hostedauth.ActivityEventType) []hostedauth.ActivityEvent {
	var out []hostedauth.ActivityEvent
	for _, event := range r.all() {
		if event.EventType == eventType {
			out = append(out, event)
		}
	}
	return out
}

func (r *recordingSink) count(eventType hostedauth.ActivityEventType) int {
	return len(r.ofType(eventType))
}

// captureLogger records formatted log lines.
type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) logf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *captureLogger) Debug(format string, args ...any) { l.logf(format, args...) }
func (l *captureLogger) Info(format string, args ...any)  { l.logf(format, args...) }
func (l *captureLogger) Warn(format string, args ...any)  { l.logf(format, args...) }
func (l *captureLogger) Error(format string, args ...any) { l.logf(format, args...) }

func (l *captureLogger) contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func waitSettled(t *testing.T, p *hostedauth.Provider) {
	t.Helper()
	select {
	case <-p.Settled():
	case <-time.After(2 * time.Second):
		t.Fatal("provider did not settle")
	}
}
