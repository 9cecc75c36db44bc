package registration_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/goliatone/go-registration"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRegisterCreatesPendingAccountAndSendsEmail(t *testing.T) {
	f := newFixture(t)

	result, err := f.register.Register(context.Background(), registration.RegisterAccountMessage{
		Email:           "foo@bar.com",
		Password:        "secret",
		PasswordConfirm: "secret",
		Request:         registration.RequestInfo{IP: "127.0.0.1"},
	})
	require.NoError(t, err)
	require.NotNil(t, result.Account)

	account := result.Account
	assert.Equal(t, "foo@bar.com", account.Email)
	assert.False(t, account.IsActive)
	assert.True(t, registration.IsActivationKey(account.ActivationKey))
	assert.Equal(t, "plain$secret", account.PasswordHash)
	assert.True(t, account.CreatedAt.Equal(f.clock.Now()))
	assert.True(t, result.EmailSent)
	assert.NoError(t, result.EmailError)

	stored := f.reload(t, account)
	assert.True(t, stored.IsPending())
	assert.Equal(t, account.ActivationKey, stored.ActivationKey)

	require.Equal(t, 1, f.outbox.Len())
	msg := f.outbox.Messages()[0]
	assert.Equal(t, []string{"foo@bar.com"}, msg.To)
	assert.Equal(t, "noreply@example.com", msg.From)
	assert.Equal(t, "Activate your account on Example", msg.Subject)
	assert.Contains(t, msg.Text, "https://example.com/activate/"+account.ActivationKey)
	assert.Contains(t, msg.Text, "7 days")
	assert.Contains(t, msg.HTML, account.ActivationKey)

	assert.Equal(t, 1, f.events.count(registration.EventUserRegistered))
}

func TestRegisterDuplicateEmailIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	f.registerAccount(t, "foo@bar.com")

	_, err := f.register.Register(context.Background(), registration.RegisterAccountMessage{
		Email:    "FOO@Bar.com",
		Password: "secret",
	})
	require.Error(t, err)
	assert.True(t, registration.HasTextCode(err, registration.TextCodeDuplicateEmail))
	assert.Equal(t, 1, f.countAccounts(t))
	assert.Equal(t, 1, f.outbox.Len())
	assert.Equal(t, 1, f.events.count(registration.EventUserRegistered))
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name    string
		msg     registration.RegisterAccountMessage
		tos     bool
		field   string
		message string
	}{
		{
			name:  "missing email",
			msg:   registration.RegisterAccountMessage{Password: "secret"},
			field: "email",
		},
		{
			name:  "invalid email",
			msg:   registration.RegisterAccountMessage{Email: "not-an-email", Password: "secret"},
			field: "email",
		},
		{
			name:  "missing password",
			msg:   registration.RegisterAccountMessage{Email: "foo@bar.com"},
			field: "password",
		},
		{
			name:    "password mismatch",
			msg:     registration.RegisterAccountMessage{Email: "foo@bar.com", Password: "secret", PasswordConfirm: "other"},
			field:   "password_confirm",
			message: registration.PasswordMismatchMessage,
		},
		{
			name:    "terms required",
			msg:     registration.RegisterAccountMessage{Email: "foo@bar.com", Password: "secret"},
			tos:     true,
			field:   "tos",
			message: registration.TermsRequiredMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.register.WithTermsOfService(tt.tos)

			_, err := f.register.Register(context.Background(), tt.msg)
			require.Error(t, err)

			var verr interface{ ValidationMap() map[string]string }
			require.True(t, errors.As(err, &verr))
			fields := verr.ValidationMap()
			require.Contains(t, fields, tt.field)
			if tt.message != "" {
				assert.Contains(t, fields[tt.field], tt.message)
			}

			assert.Equal(t, 0, f.countAccounts(t))
			assert.Equal(t, 0, f.outbox.Len())
		})
	}
}

func TestRegisterChecksEmailFormatOnly(t *testing.T) {
	f := newFixture(t)

	result, err := f.register.Register(context.Background(), registration.RegisterAccountMessage{
		Email:    "someone@unresolvable-domain.invalid",
		Password: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "someone@unresolvable-domain.invalid", result.Account.Email)
	assert.Equal(t, 1, f.outbox.Len())
}

func TestRegisterNormalizesEmailBeforeValidation(t *testing.T) {
	f := newFixture(t)

	result, err := f.register.Register(context.Background(), registration.RegisterAccountMessage{
		Email:    "  Foo@Example.com ",
		Password: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "foo@example.com", result.Account.Email)
	assert.Equal(t, "foo@example.com", f.reload(t, result.Account).Email)
	assert.Equal(t, []string{"foo@example.com"}, f.outbox.Messages()[0].To)
}

func TestRegisterRequiresConfirmationWhenFlagged(t *testing.T) {
	f := newFixture(t)

	_, err := f.register.Register(context.Background(), registration.RegisterAccountMessage{
		Email:               "foo@bar.com",
		Password:            "secret",
		RequireConfirmation: true,
	})
	require.Error(t, err)

	var verr interface{ ValidationMap() map[string]string }
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.ValidationMap(), "password_confirm")
	assert.Equal(t, 0, f.countAccounts(t))

	result, err := f.register.Register(context.Background(), registration.RegisterAccountMessage{
		Email:               "foo@bar.com",
		Password:            "secret",
		PasswordConfirm:     "secret",
		RequireConfirmation: true,
	})
	require.NoError(t, err)
	assert.True(t, result.Account.IsPending())
}

func TestRegisterAcceptsTermsWhenRequired(t *testing.T) {
	f := newFixture(t)
	f.register.WithTermsOfService(true)

	result, err := f.register.Register(context.Background(), registration.RegisterAccountMessage{
		Email:     "foo@bar.com",
		Password:  "secret",
		AcceptTOS: true,
	})
	require.NoError(t, err)
	assert.True(t, result.Account.IsPending())
}

func TestRegisterWithoutEmail(t *testing.T) {
	f := newFixture(t)

	result, err := f.register.Register(context.Background(), registration.RegisterAccountMessage{
		Email:     "foo@bar.com",
		Password:  "secret",
		SendEmail: boolPtr(false),
	})
	require.NoError(t, err)
	assert.False(t, result.EmailSent)
	assert.True(t, result.Account.IsPending())
	assert.Equal(t, 0, f.outbox.Len())
}

func TestRegisterHonoursConfiguredEmailDefault(t *testing.T) {
	f := newFixture(t)
	f.config.sendActivationEmail = false

	f.registerAccount(t, "foo@bar.com")
	assert.Equal(t, 0, f.outbox.Len())

	_, err := f.register.Register(context.Background(), registration.RegisterAccountMessage{
		Email:     "baz@bar.com",
		Password:  "secret",
		SendEmail: boolPtr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.outbox.Len())
}

func TestRegisterEmailFailureDoesNotFailRegistration(t *testing.T) {
	f := newFixture(t)
	f.outbox.Err = errors.New("smtp: connection refused")

	logger := &captureLogger{}
	f.register.WithLogger(logger)

	result, err := f.register.Register(context.Background(), registration.RegisterAccountMessage{
		Email:    "foo@bar.com",
		Password: "secret",
	})
	require.NoError(t, err)
	assert.False(t, result.EmailSent)
	require.Error(t, result.EmailError)
	assert.True(t, registration.HasTextCode(result.EmailError, registration.TextCodeEmailTransport))

	assert.True(t, f.reload(t, result.Account).IsPending())
	assert.Contains(t, logger.levels(), "warn")
	assert.Equal(t, 1, f.events.count(registration.EventUserRegistered))
}

func TestRegisterUsesHashidWhenConfigured(t *testing.T) {
	f := newFixture(t)
	f.config.useHashid = true

	account := f.registerAccount(t, "Foo@Bar.com")

	expected, err := hashid.NewUUID("foo@bar.com")
	require.NoError(t, err)
	assert.Equal(t, expected, account.ID)
}

func TestRegisterTokenFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.register.WithTokenGenerator(registration.TokenGeneratorFunc(func(string) (string, error) {
		return "", errors.New("no entropy")
	}))

	_, err := f.register.Register(context.Background(), registration.RegisterAccountMessage{
		Email:    "foo@bar.com",
		Password: "secret",
	})
	require.Error(t, err)
	assert.Equal(t, 0, f.countAccounts(t))
	assert.Equal(t, 0, f.outbox.Len())
}

func TestRegisterExecuteCallsOnResponse(t *testing.T) {
	f := newFixture(t)

	var got *registration.RegistrationResult
	err := f.register.Execute(context.Background(), registration.RegisterAccountMessage{
		Email:    "foo@bar.com",
		Password: "secret",
		OnResponse: func(result *registration.RegistrationResult) {
			got = result
		},
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "foo@bar.com", got.Account.Email)
}

func TestRegisterExecuteCancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.register.Execute(ctx, registration.RegisterAccountMessage{Email: "foo@bar.com", Password: "secret"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.countAccounts(t))
}

func TestRegisterWithMockedMailer(t *testing.T) {
	f := newFixture(t)

	transport := &MockEmailTransport{}
	transport.On("Send", mock.Anything, mock.MatchedBy(func(msg registration.EmailMessage) bool {
		return len(msg.To) == 1 && msg.To[0] == "foo@bar.com" && !strings.ContainsAny(msg.Subject, "\r\n")
	})).Return(nil).Once()

	mailer := registration.NewActivationMailer(renderStub(), transport, f.config).WithLogger(testLogger{})
	f.register.WithMailer(mailer)

	result, err := f.register.Register(context.Background(), registration.RegisterAccountMessage{
		Email:    "foo@bar.com",
		Password: "secret",
	})
	require.NoError(t, err)
	assert.True(t, result.EmailSent)
	transport.AssertExpectations(t)
}

func renderStub() *MockRenderer {
	r := &MockRenderer{}
	r.On("Render", registration.TemplateActivationSubject, mock.Anything).Return("Activate\nnow\n", nil)
	r.On("Render", registration.TemplateActivationText, mock.Anything).Return("text body", nil)
	r.On("Render", registration.TemplateActivationHTML, mock.Anything).Return("<p>html body</p>", nil)
	return r
}
