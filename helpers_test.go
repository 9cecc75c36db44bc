package registration_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-registration"
	"github.com/goliatone/go-registration/mail"
	"github.com/goliatone/go-registration/render"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type testLogger struct{}

func (testLogger) Trace(string, ...any) {}
func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}
func (testLogger) Fatal(string, ...any) {}
func (testLogger) WithContext(context.Context) registration.Logger {
	return testLogger{}
}

type logCall struct {
	level   string
	message string
	args    []any
}

type captureLogger struct {
	mu    sync.Mutex
	calls []logCall
}

func (l *captureLogger) record(level, message string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, logCall{level: level, message: message, args: args})
}

func (l *captureLogger) Trace(message string, args ...any) { l.record("trace", message, args...) }
func (l *captureLogger) Debug(message string, args ...any) { l.record("debug", message, args...) }
func (l *captureLogger) Info(message string, args ...any)  { l.record("info", message, args...) }
func (l *captureLogger) Warn(message string, args ...any)  { l.record("warn", message, args...) }
func (l *captureLogger) Error(message string, args ...any) { l.record("error", message, args...) }
func (l *captureLogger) Fatal(message string, args ...any) { l.record("fatal", message, args...) }
func (l *captureLogger) WithContext(context.Context) registration.Logger {
	return l
}

func (l *captureLogger) levels() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.calls))
	for _, c := range l.calls {
		out = append(out, c.level)
	}
	return out
}

type testConfig struct {
	activationDays         int
	authenticateOnActivate bool
	sendActivationEmail    bool
	useHashid              bool
}

func newTestConfig() *testConfig {
	return &testConfig{activationDays: 7, sendActivationEmail: true}
}

func (c *testConfig) GetActivationDays() int          { return c.activationDays }
func (c *testConfig) GetAuthenticateOnActivate() bool { return c.authenticateOnActivate }
func (c *testConfig) GetSendActivationEmail() bool    { return c.sendActivationEmail }
func (c *testConfig) GetSiteIdentifier() string       { return "example.com" }
func (c *testConfig) GetSiteName() string             { return "Example" }
func (c *testConfig) GetDefaultFromEmail() string     { return "noreply@example.com" }
func (c *testConfig) GetStaticURL() string            { return "/static/" }
func (c *testConfig) GetUseHashid() bool              { return c.useHashid }

// testClock is a settable clock safe for concurrent use.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// plainHasher keeps handler tests fast. Never use outside tests.
type plainHasher struct{}

func (plainHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", registration.ErrNoEmptyString
	}
	return "plain$" + password, nil
}

func (plainHasher) ComparePasswordAndHash(password, hash string) error {
	if hash != "plain$"+password {
		return registration.ErrMismatchedHashAndPassword
	}
	return nil
}

// eventRecorder subscribes to both lifecycle events.
type eventRecorder struct {
	mu     sync.Mutex
	events []registration.Event
}

func newEventRecorder() (*eventRecorder, *registration.Dispatcher) {
	rec := &eventRecorder{}
	d := registration.NewDispatcher()
	handler := func(_ context.Context, evt registration.Event) error {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.events = append(rec.events, evt)
		return nil
	}
	d.Subscribe(registration.EventUserRegistered, handler)
	d.Subscribe(registration.EventUserActivated, handler)
	return rec, d
}

func (r *eventRecorder) count(name registration.EventName) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, evt := range r.events {
		if evt.Name == name {
			n++
		}
	}
	return n
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
	})

	_, err = registration.Migrate(context.Background(), db)
	require.NoError(t, err)

	return db
}

// fixture wires the real services over an in-memory database.
type fixture struct {
	db       *bun.DB
	repo     registration.RepositoryManager
	config   *testConfig
	clock    *testClock
	outbox   *mail.Outbox
	events   *eventRecorder
	register *registration.RegisterAccountHandler
	activate *registration.ActivateAccountHandler
	admin    *registration.AdminActions
	mailer   *registration.ActivationMailer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		db:     newTestDB(t),
		config: newTestConfig(),
		clock:  newTestClock(),
		outbox: mail.NewOutbox(),
	}
	f.repo = registration.NewRepositoryManager(f.db)

	rec, dispatcher := newEventRecorder()
	f.events = rec

	f.mailer = registration.NewActivationMailer(render.New(), f.outbox, f.config).
		WithLogger(testLogger{})

	f.register = registration.NewRegisterAccountHandler(f.repo, f.config).
		WithMailer(f.mailer).
		WithEventBus(dispatcher).
		WithPasswordHasher(plainHasher{}).
		WithClock(f.clock.Now).
		WithLogger(testLogger{})

	f.activate = registration.NewActivateAccountHandler(f.repo, f.config).
		WithEventBus(dispatcher).
		WithClock(f.clock.Now).
		WithLogger(testLogger{})

	f.admin = registration.NewAdminActions(f.repo, f.config).
		WithMailer(f.mailer).
		WithEventBus(dispatcher).
		WithPasswordHasher(plainHasher{}).
		WithClock(f.clock.Now).
		WithLogger(testLogger{})

	return f
}

func (f *fixture) registerAccount(t *testing.T, email string) *registration.Account {
	t.Helper()
	result, err := f.register.Register(context.Background(), registration.RegisterAccountMessage{
		Email:    email,
		Password: "secret",
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	return result.Account
}

func (f *fixture) countAccounts(t *testing.T) int {
	t.Helper()
	n, err := f.db.NewSelect().Model((*registration.Account)(nil)).Count(context.Background())
	require.NoError(t, err)
	return n
}

func (f *fixture) reload(t *testing.T, account *registration.Account) *registration.Account {
	t.Helper()
	fresh, err := f.repo.Accounts().GetByID(context.Background(), account.ID.String())
	require.NoError(t, err)
	return fresh
}

func boolPtr(v bool) *bool { return &v }
