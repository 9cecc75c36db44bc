package registration

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// PasswordMismatchMessage is reported when the confirmation differs.
const PasswordMismatchMessage = "The two password fields didn't match."

// TermsRequiredMessage is reported when terms of service acceptance is required.
const TermsRequiredMessage = "You must agree to the terms to register"

type RegisterAccountMessage struct {
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password1"`
	PasswordConfirm string `json:"password_confirm" form:"password2"`
	FirstName       string `json:"first_name" form:"first_name"`
	LastName        string `json:"last_name" form:"last_name"`
	AcceptTOS       bool   `json:"tos" form:"tos"`

	// SendEmail overrides the configured default when set.
	SendEmail *bool `json:"-" form:"-"`
	// RequireConfirmation makes PasswordConfirm mandatory. Set for form posts.
	RequireConfirmation bool                             `json:"-" form:"-"`
	Request             RequestInfo                      `json:"-" form:"-"`
	OnResponse          func(result *RegistrationResult) `json:"-" form:"-"`
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

// Validate runs the field rules. Terms acceptance is only checked when requireTOS is set.
func (e RegisterAccountMessage) Validate(requireTOS bool) *goerrors.Error {
	return goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&e,
			validation.Field(&e.Email, validation.Required, validation.Length(3, 254), is.EmailFormat),
			validation.Field(&e.Password, validation.Required),
			validation.Field(&e.PasswordConfirm,
				validation.When(e.RequireConfirmation, validation.Required),
				validation.By(confirmsPassword(e.Password)),
			),
			validation.Field(&e.AcceptTOS, validation.By(acceptsTerms(requireTOS))),
		)
	}, "Invalid registration payload")
}

func confirmsPassword(password string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != "" && s != password {
			return errors.New(PasswordMismatchMessage)
		}
		return nil
	}
}

func acceptsTerms(required bool) validation.RuleFunc {
	return func(value any) error {
		accepted, _ := value.(bool)
		if required && !accepted {
			return errors.New(TermsRequiredMessage)
		}
		return nil
	}
}

// RegistrationResult is the outcome of a successful registration. A failed
// activation email does not fail the registration, it is reported here.
type RegistrationResult struct {
	Account    *Account
	EmailSent  bool
	EmailError error
}

type RegisterAccountHandler struct {
	repo       RepositoryManager
	config     Config
	hasher     PasswordHasher
	tokens     TokenGenerator
	mailer     ActivationSender
	events     EventBus
	logger     Logger
	metrics    *Metrics
	now        Clock
	requireTOS bool
}

// NewRegisterAccountHandler creates a handler with sane defaults.
func NewRegisterAccountHandler(repo RepositoryManager, config Config) *RegisterAccountHandler {
	_, logger := ResolveLogger("registration.register", nil, nil)
	return &RegisterAccountHandler{
		repo:   repo,
		config: config,
		hasher: NewBcryptHasher(),
		tokens: NewTokenGenerator(),
		events: noopEventBus{},
		logger: logger,
		now:    time.Now,
	}
}

// WithMailer sets the activation email sender.
func (h *RegisterAccountHandler) WithMailer(mailer ActivationSender) *RegisterAccountHandler {
	h.mailer = mailer
	return h
}

// WithEventBus sets the bus used to emit UserRegistered.
func (h *RegisterAccountHandler) WithEventBus(bus EventBus) *RegisterAccountHandler {
	h.events = normalizeEventBus(bus)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterAccountHandler) WithLogger(logger Logger) *RegisterAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterAccountHandler) WithPasswordHasher(hasher PasswordHasher) *RegisterAccountHandler {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

func (h *RegisterAccountHandler) WithTokenGenerator(tokens TokenGenerator) *RegisterAccountHandler {
	if tokens != nil {
		h.tokens = tokens
	}
	return h
}

func (h *RegisterAccountHandler) WithMetrics(metrics *Metrics) *RegisterAccountHandler {
	h.metrics = metrics
	return h
}

func (h *RegisterAccountHandler) WithClock(clock Clock) *RegisterAccountHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

// WithTermsOfService makes terms acceptance mandatory.
func (h *RegisterAccountHandler) WithTermsOfService(required bool) *RegisterAccountHandler {
	h.requireTOS = required
	return h
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		result, err := h.Register(ctx, event)
		if err != nil {
			return err
		}
		if event.OnResponse != nil {
			event.OnResponse(result)
		}
		return nil
	}
}

// Register creates a pending account, sends the activation email when
// requested and emits UserRegistered.
func (h *RegisterAccountHandler) Register(ctx context.Context, event RegisterAccountMessage) (*RegistrationResult, error) {
	start := time.Now()
	defer h.metrics.observe("register", start)

	event.Email = NormalizeEmail(event.Email)
	if verr := event.Validate(h.requireTOS); verr != nil {
		h.metrics.registration("invalid")
		return nil, verr
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	email := event.Email

	hash, err := h.hasher.HashPassword(event.Password)
	if err != nil {
		h.metrics.registration("invalid")
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	now := h.now().UTC()
	account := &Account{
		Email:        email,
		FirstName:    event.FirstName,
		LastName:     event.LastName,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if h.config != nil && h.config.GetUseHashid() {
		if id, err := hashid.NewUUID(email); err == nil {
			account.ID = id
		}
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := h.repo.Accounts().FindByEmailTx(ctx, tx, email); err == nil {
			return ErrDuplicateEmail
		} else if !HasTextCode(err, TextCodeAccountNotFound) {
			return err
		}

		key, err := h.tokens.Generate(email)
		if err != nil {
			return err
		}
		account.ActivationKey = key

		created, err := h.repo.Accounts().InsertTx(ctx, tx, account)
		if err != nil {
			return err
		}
		account = created
		return nil
	})

	if err != nil {
		if HasTextCode(err, TextCodeDuplicateEmail) {
			h.metrics.registration("duplicate")
			return nil, ErrDuplicateEmail
		}

		h.metrics.registration("error")
		h.logger.Error("account registration failed", "error", err)

		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "account registration transaction failed").
			WithTextCode(TextCodeStoreUnavailable)
	}

	result := &RegistrationResult{Account: account}

	if h.shouldSendEmail(event) {
		if err := h.sendActivationEmail(ctx, account); err != nil {
			h.logger.Warn("activation email not delivered", "error", err, "account_id", account.ID.String())
			result.EmailError = err
		} else {
			result.EmailSent = true
		}
	}

	if err := h.events.Emit(ctx, newAccountEvent(EventUserRegistered, account, resolveRequest(ctx, event.Request), h.now())); err != nil {
		h.logger.Warn("user registered event emit failed", "error", err, "account_id", account.ID.String())
	}

	h.metrics.registration("success")
	return result, nil
}

func (h *RegisterAccountHandler) shouldSendEmail(event RegisterAccountMessage) bool {
	if event.SendEmail != nil {
		return *event.SendEmail
	}
	if h.config == nil {
		return true
	}
	return h.config.GetSendActivationEmail()
}

func (h *RegisterAccountHandler) sendActivationEmail(ctx context.Context, account *Account) error {
	if h.mailer == nil {
		return goerrors.New("activation mailer not configured", goerrors.CategoryOperation).
			WithTextCode(TextCodeEmailTransport)
	}
	return h.mailer.SendActivationEmail(ctx, account)
}
