package registration

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// UnusablePasswordHash marks an account that cannot log in with a password.
const UnusablePasswordHash = "!"

// CreateAccountMessage creates an active account directly, skipping the
// pending state. No activation key is issued.
type CreateAccountMessage struct {
	Email       string                 `json:"email"`
	Password    string                 `json:"password"`
	FirstName   string                 `json:"first_name"`
	LastName    string                 `json:"last_name"`
	IsStaff     bool                   `json:"is_staff"`
	IsSuperuser bool                   `json:"is_superuser"`
	OnResponse  func(account *Account) `json:"-"`
}

func (e CreateAccountMessage) Type() string { return "account.create" }

func (e CreateAccountMessage) Validate() *goerrors.Error {
	return goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&e,
			validation.Field(&e.Email, validation.Required, validation.Length(3, 254), is.EmailFormat),
			validation.Field(&e.Password, validation.By(requiredWhen(e.IsSuperuser))),
		)
	}, "Invalid account payload")
}

func requiredWhen(required bool) validation.RuleFunc {
	return func(value any) error {
		if !required {
			return nil
		}
		return validation.Validate(value, validation.Required)
	}
}

type CreateAccountHandler struct {
	repo   RepositoryManager
	config Config
	hasher PasswordHasher
	logger Logger
	now    Clock
}

// NewCreateAccountHandler creates a handler with sane defaults.
func NewCreateAccountHandler(repo RepositoryManager, config Config) *CreateAccountHandler {
	_, logger := ResolveLogger("registration.create", nil, nil)
	return &CreateAccountHandler{
		repo:   repo,
		config: config,
		hasher: NewBcryptHasher(),
		logger: logger,
		now:    time.Now,
	}
}

func (h *CreateAccountHandler) WithPasswordHasher(hasher PasswordHasher) *CreateAccountHandler {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *CreateAccountHandler) WithLogger(logger Logger) *CreateAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *CreateAccountHandler) WithClock(clock Clock) *CreateAccountHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *CreateAccountHandler) Execute(ctx context.Context, event CreateAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account creation",
		)
	default:
		account, err := h.create(ctx, event)
		if err != nil {
			return err
		}
		if event.OnResponse != nil {
			event.OnResponse(account)
		}
		return nil
	}
}

// CreateUser creates an active account without staff flags. An empty
// password leaves the account without a usable password.
func (h *CreateAccountHandler) CreateUser(ctx context.Context, event CreateAccountMessage) (*Account, error) {
	event.IsStaff = false
	event.IsSuperuser = false
	return h.create(ctx, event)
}

// CreateSuperuser creates an active staff superuser. A password is required.
func (h *CreateAccountHandler) CreateSuperuser(ctx context.Context, event CreateAccountMessage) (*Account, error) {
	event.IsStaff = true
	event.IsSuperuser = true
	return h.create(ctx, event)
}

func (h *CreateAccountHandler) create(ctx context.Context, event CreateAccountMessage) (*Account, error) {
	event.Email = NormalizeEmail(event.Email)
	if verr := event.Validate(); verr != nil {
		return nil, verr
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	hash := UnusablePasswordHash
	if event.Password != "" {
		var err error
		if hash, err = h.hasher.HashPassword(event.Password); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}
	}

	now := h.now().UTC()
	account := &Account{
		Email:        event.Email,
		FirstName:    event.FirstName,
		LastName:     event.LastName,
		PasswordHash: hash,
		IsActive:     true,
		IsStaff:      event.IsStaff,
		IsSuperuser:  event.IsSuperuser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if h.config != nil && h.config.GetUseHashid() {
		if id, err := hashid.NewUUID(account.Email); err == nil {
			account.ID = id
		}
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := h.repo.Accounts().InsertTx(ctx, tx, account)
		if err != nil {
			return err
		}
		account = created
		return nil
	})
	if err != nil {
		if HasTextCode(err, TextCodeDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		h.logger.Error("account creation failed", "error", err)
		return nil, err
	}

	h.logger.Info("account created", "account_id", account.ID.String(), "superuser", account.IsSuperuser)
	return account, nil
}
