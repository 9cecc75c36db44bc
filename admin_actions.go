package registration

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// AdminReport lists what a bulk action did.
type AdminReport struct {
	Processed []*Account
	Skipped   []SkippedAccount
}

// SkippedAccount is an account a bulk action left untouched.
type SkippedAccount struct {
	Account *Account
	Reason  string
	Err     error
}

// AdminActions are bulk conveniences over the activation and mail flows.
type AdminActions struct {
	repo    RepositoryManager
	config  Config
	mailer  ActivationSender
	hasher  PasswordHasher
	events  EventBus
	logger  Logger
	now     Clock
	machine ActivationStateMachine
}

// NewAdminActions creates the admin actions with sane defaults.
func NewAdminActions(repo RepositoryManager, config Config) *AdminActions {
	_, logger := ResolveLogger("registration.admin", nil, nil)
	return &AdminActions{
		repo:   repo,
		config: config,
		hasher: NewBcryptHasher(),
		events: noopEventBus{},
		logger: logger,
		now:    time.Now,
	}
}

func (a *AdminActions) WithMailer(mailer ActivationSender) *AdminActions {
	a.mailer = mailer
	return a
}

func (a *AdminActions) WithEventBus(bus EventBus) *AdminActions {
	a.events = normalizeEventBus(bus)
	return a
}

func (a *AdminActions) WithPasswordHasher(hasher PasswordHasher) *AdminActions {
	if hasher != nil {
		a.hasher = hasher
	}
	return a
}

func (a *AdminActions) WithStateMachine(machine ActivationStateMachine) *AdminActions {
	a.machine = machine
	return a
}

// WithLogger overrides the logger used by the actions.
func (a *AdminActions) WithLogger(logger Logger) *AdminActions {
	if logger != nil {
		a.logger = logger
	}
	return a
}

func (a *AdminActions) WithClock(clock Clock) *AdminActions {
	if clock != nil {
		a.now = clock
	}
	return a
}

// ActivateAccounts activates the selected pending accounts through the
// regular activation flow. Expired and active accounts are skipped.
func (a *AdminActions) ActivateAccounts(ctx context.Context, ids []uuid.UUID) (*AdminReport, error) {
	accounts, err := a.repo.Accounts().ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	report := &AdminReport{}
	machine := a.stateMachine()

	for _, account := range accounts {
		state, ok := account.State().(Pending)
		if !ok {
			report.Skipped = append(report.Skipped, SkippedAccount{Account: account, Reason: string(account.State().Status())})
			continue
		}

		activated, err := machine.Activate(ctx, state.Key)
		if err != nil {
			if kind := FailureKindOf(err); kind != FailureNone {
				report.Skipped = append(report.Skipped, SkippedAccount{Account: account, Reason: string(kind), Err: err})
				continue
			}
			return report, err
		}

		evt := newAccountEvent(EventUserActivated, activated, resolveRequest(ctx, RequestInfo{}), a.now())
		evt.Metadata = map[string]any{"source": "admin"}
		if err := a.events.Emit(ctx, evt); err != nil {
			a.logger.Warn("user activated event emit failed", "error", err, "account_id", activated.ID.String())
		}

		report.Processed = append(report.Processed, activated)
	}

	return report, nil
}

// ResendActivationEmails resends the activation email to the selected
// accounts. The key is not regenerated, so accounts whose key has expired,
// and active accounts, are skipped and reported.
func (a *AdminActions) ResendActivationEmails(ctx context.Context, ids []uuid.UUID) (*AdminReport, error) {
	if a.mailer == nil {
		return nil, goerrors.New("activation mailer not configured", goerrors.CategoryOperation).
			WithTextCode(TextCodeEmailTransport)
	}

	accounts, err := a.repo.Accounts().ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	report := &AdminReport{}
	machine := a.stateMachine()

	for _, account := range accounts {
		if !account.IsPending() {
			report.Skipped = append(report.Skipped, SkippedAccount{Account: account, Reason: string(account.State().Status())})
			continue
		}

		if machine.Expired(account) {
			report.Skipped = append(report.Skipped, SkippedAccount{Account: account, Reason: string(FailureExpired)})
			continue
		}

		if err := a.mailer.SendActivationEmail(ctx, account); err != nil {
			a.logger.Warn("activation email resend failed", "error", err, "account_id", account.ID.String())
			report.Skipped = append(report.Skipped, SkippedAccount{Account: account, Reason: "email_failed", Err: err})
			continue
		}

		report.Processed = append(report.Processed, account)
	}

	return report, nil
}

// SetPassword replaces the password of an account.
func (a *AdminActions) SetPassword(ctx context.Context, id uuid.UUID, password string) error {
	hash, err := a.hasher.HashPassword(password)
	if err != nil {
		return err
	}
	return a.repo.Accounts().SetPassword(ctx, id, hash)
}

// PendingAccounts lists accounts waiting for activation with their expiry.
func (a *AdminActions) PendingAccounts(ctx context.Context) ([]PendingAccount, error) {
	accounts, err := a.repo.Accounts().ListPending(ctx)
	if err != nil {
		return nil, err
	}

	machine := a.stateMachine()
	out := make([]PendingAccount, 0, len(accounts))
	for _, account := range accounts {
		state, ok := account.State().(Pending)
		if !ok {
			continue
		}
		out = append(out, PendingAccount{
			Account:   account,
			ExpiresAt: ActivationExpiresAt(state.IssuedAt, a.activationDays()),
			Expired:   machine.Expired(account),
		})
	}
	return out, nil
}

// PendingAccount is a pending account with its computed expiry.
type PendingAccount struct {
	Account   *Account
	ExpiresAt time.Time
	Expired   bool
}

func (a *AdminActions) activationDays() int {
	if a.config == nil {
		return 0
	}
	return a.config.GetActivationDays()
}

func (a *AdminActions) stateMachine() ActivationStateMachine {
	if a.machine != nil {
		return a.machine
	}
	return NewActivationStateMachine(
		a.repo.Accounts(),
		a.activationDays(),
		WithStateMachineClock(a.now),
		WithStateMachineLogger(a.logger),
	)
}
