package registration

import (
	"context"
	"time"
)

// ActivationContext is passed into hooks once an account was activated.
type ActivationContext struct {
	Account *Account
	From    ActivationState
	To      ActivationState
}

// ActivationHook is executed after a successful activation.
type ActivationHook func(ctx context.Context, ac ActivationContext) error

// HookErrorHandler handles errors surfaced by activation hooks. The
// activation is already persisted when it runs.
type HookErrorHandler func(ctx context.Context, err error, ac ActivationContext) error

// ActivationStateMachine governs the Pending to Active transition.
type ActivationStateMachine interface {
	Activate(ctx context.Context, rawKey string) (*Account, error)
	CurrentState(account *Account) ActivationState
	Expired(account *Account) bool
}

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*activationStateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *activationStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineLogger overrides the logger used for hook failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *activationStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithAfterActivationHook adds a hook executed after the update succeeds.
func WithAfterActivationHook(h ActivationHook) StateMachineOption {
	return func(sm *activationStateMachine) {
		if h != nil {
			sm.afterHooks = append(sm.afterHooks, h)
		}
	}
}

// WithStateMachineHookErrorHandler overrides how hook failures are
// propagated. The default logs and swallows them.
func WithStateMachineHookErrorHandler(handler HookErrorHandler) StateMachineOption {
	return func(sm *activationStateMachine) {
		if handler != nil {
			sm.hookErrorHandler = handler
		}
	}
}

// NewActivationStateMachine returns the default implementation backed by
// the provided repository.
func NewActivationStateMachine(accounts Accounts, activationDays int, opts ...StateMachineOption) ActivationStateMachine {
	sm := &activationStateMachine{
		accounts:       accounts,
		activationDays: activationDays,
		now:            time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	if sm.logger == nil {
		_, sm.logger = ResolveLogger("registration.state_machine", nil, nil)
	}

	if sm.hookErrorHandler == nil {
		sm.hookErrorHandler = func(_ context.Context, err error, ac ActivationContext) error {
			sm.logger.Warn("activation hook failed", "error", err, "account_id", ac.Account.ID.String())
			return nil
		}
	}

	return sm
}

type activationStateMachine struct {
	accounts         Accounts
	activationDays   int
	now              func() time.Time
	logger           Logger
	afterHooks       []ActivationHook
	hookErrorHandler HookErrorHandler
}

// Activate consumes rawKey. It fails with ErrMalformedActivationKey,
// ErrActivationKeyNotFound, ErrActivationKeyExpired or ErrAlreadyActivated,
// anything else is a store failure. At most one caller succeeds per key.
func (sm *activationStateMachine) Activate(ctx context.Context, rawKey string) (*Account, error) {
	if !IsActivationKey(rawKey) {
		return nil, ErrMalformedActivationKey
	}

	account, err := sm.accounts.FindByActivationKey(ctx, rawKey)
	if err != nil {
		if HasTextCode(err, TextCodeAccountNotFound) {
			return nil, ErrActivationKeyNotFound
		}
		return nil, err
	}

	from := sm.CurrentState(account)
	switch from.(type) {
	case Active:
		return nil, ErrAlreadyActivated
	case Inactive:
		return nil, ErrActivationKeyNotFound
	}

	now := sm.now().UTC()
	if sm.expiredAt(account, now) {
		return nil, ErrActivationKeyExpired
	}

	activated, err := sm.accounts.ConditionalActivate(ctx, rawKey, activationCutoff(now, sm.activationDays), now)
	if err != nil {
		if HasTextCode(err, TextCodeAccountNotFound) {
			// the key matched a moment ago, so it was consumed or expired in between
			if sm.expiredAt(account, sm.now().UTC()) {
				return nil, ErrActivationKeyExpired
			}
			return nil, ErrAlreadyActivated
		}
		return nil, err
	}

	sm.runHooks(ctx, ActivationContext{
		Account: activated,
		From:    from,
		To:      activated.State(),
	})

	return activated, nil
}

func (sm *activationStateMachine) CurrentState(account *Account) ActivationState {
	return account.State()
}

// Expired reports whether the account's activation window has closed.
// Active accounts never expire.
func (sm *activationStateMachine) Expired(account *Account) bool {
	return sm.expiredAt(account, sm.now().UTC())
}

func (sm *activationStateMachine) expiredAt(account *Account, now time.Time) bool {
	if account == nil {
		return true
	}

	switch state := account.State().(type) {
	case Active:
		return false
	case Pending:
		return ActivationKeyExpired(state.IssuedAt, sm.activationDays, now)
	default:
		return true
	}
}

func (sm *activationStateMachine) runHooks(ctx context.Context, ac ActivationContext) {
	for _, hook := range sm.afterHooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, ac); err != nil {
			if herr := sm.hookErrorHandler(ctx, err, ac); herr != nil {
				sm.logger.Error("activation hook error handler failed", "error", herr)
			}
		}
	}
}
