package registration_test

import (
	"context"
	"time"

	"github.com/goliatone/go-registration"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockAccounts implements registration.Accounts
type MockAccounts struct {
	mock.Mock
}

func (m *MockAccounts) account(args mock.Arguments) (*registration.Account, error) {
	if a := args.Get(0); a != nil {
		return a.(*registration.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccounts) Insert(ctx context.Context, account *registration.Account) (*registration.Account, error) {
	return m.account(m.Called(ctx, account))
}

func (m *MockAccounts) InsertTx(ctx context.Context, tx bun.IDB, account *registration.Account) (*registration.Account, error) {
	return m.account(m.Called(ctx, tx, account))
}

func (m *MockAccounts) GetByID(ctx context.Context, id string) (*registration.Account, error) {
	return m.account(m.Called(ctx, id))
}

func (m *MockAccounts) FindByEmail(ctx context.Context, email string) (*registration.Account, error) {
	return m.account(m.Called(ctx, email))
}

func (m *MockAccounts) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*registration.Account, error) {
	return m.account(m.Called(ctx, tx, email))
}

func (m *MockAccounts) FindByActivationKey(ctx context.Context, key string) (*registration.Account, error) {
	return m.account(m.Called(ctx, key))
}

func (m *MockAccounts) ConditionalActivate(ctx context.Context, key string, issuedAfter, at time.Time) (*registration.Account, error) {
	return m.account(m.Called(ctx, key, issuedAfter, at))
}

func (m *MockAccounts) ConditionalActivateTx(ctx context.Context, tx bun.IDB, key string, issuedAfter, at time.Time) (*registration.Account, error) {
	return m.account(m.Called(ctx, tx, key, issuedAfter, at))
}

func (m *MockAccounts) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*registration.Account, error) {
	args := m.Called(ctx, ids)
	if a := args.Get(0); a != nil {
		return a.([]*registration.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccounts) ListPending(ctx context.Context) ([]*registration.Account, error) {
	args := m.Called(ctx)
	if a := args.Get(0); a != nil {
		return a.([]*registration.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccounts) SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

func (m *MockAccounts) SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	return m.Called(ctx, tx, id, passwordHash).Error(0)
}

func (m *MockAccounts) TrackLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

// MockSessionEstablisher implements registration.SessionEstablisher
type MockSessionEstablisher struct {
	mock.Mock
}

func (m *MockSessionEstablisher) EstablishSession(ctx context.Context, account *registration.Account) (*registration.Session, error) {
	args := m.Called(ctx, account)
	if s := args.Get(0); s != nil {
		return s.(*registration.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockEmailTransport implements registration.EmailTransport
type MockEmailTransport struct {
	mock.Mock
}

func (m *MockEmailTransport) Send(ctx context.Context, msg registration.EmailMessage) error {
	return m.Called(ctx, msg).Error(0)
}

// MockRenderer implements registration.Renderer
type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) Render(name string, data map[string]any) (string, error) {
	args := m.Called(name, data)
	return args.String(0), args.Error(1)
}

// MockActivator implements registration.Activator
type MockActivator struct {
	mock.Mock
}

func (m *MockActivator) Activate(ctx context.Context, event registration.ActivateAccountMessage) (registration.ActivationOutcome, error) {
	args := m.Called(ctx, event)
	return args.Get(0).(registration.ActivationOutcome), args.Error(1)
}

// MockRegisterer implements registration.Registerer
type MockRegisterer struct {
	mock.Mock
}

func (m *MockRegisterer) Register(ctx context.Context, event registration.RegisterAccountMessage) (*registration.RegistrationResult, error) {
	args := m.Called(ctx, event)
	if r := args.Get(0); r != nil {
		return r.(*registration.RegistrationResult), args.Error(1)
	}
	return nil, args.Error(1)
}
