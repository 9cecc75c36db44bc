package registration

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// FailureKind classifies a rejected activation.
type FailureKind string

const (
	FailureNone             FailureKind = ""
	FailureMalformedKey     FailureKind = "malformed_key"
	FailureNotFound         FailureKind = "not_found"
	FailureExpired          FailureKind = "expired"
	FailureAlreadyActivated FailureKind = "already_activated"
)

// InvalidKey reports whether the failure is presented as an invalid key.
// Malformed and unknown keys look the same to the end user.
func (k FailureKind) InvalidKey() bool {
	return k == FailureMalformedKey || k == FailureNotFound
}

type ActivateAccountMessage struct {
	ActivationKey string                          `json:"activation_key" params:"key"`
	Request       RequestInfo                     `json:"-"`
	OnResponse    func(outcome ActivationOutcome) `json:"-"`
}

func (e ActivateAccountMessage) Type() string { return "account.activate" }

// ActivationOutcome is either a success carrying the account or a failure
// kind. Session is only set when auto login is configured.
type ActivationOutcome struct {
	Account      *Account
	Failure      FailureKind
	Err          error
	Session      *Session
	SessionError error
}

// Succeeded reports whether the account was activated by this call.
func (o ActivationOutcome) Succeeded() bool {
	return o.Failure == FailureNone && o.Account != nil
}

// FailureKindOf maps an activation error to its failure kind. Errors that
// are not activation failures map to FailureNone.
func FailureKindOf(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case HasTextCode(err, TextCodeMalformedKey):
		return FailureMalformedKey
	case HasTextCode(err, TextCodeKeyNotFound):
		return FailureNotFound
	case HasTextCode(err, TextCodeKeyExpired):
		return FailureExpired
	case HasTextCode(err, TextCodeAlreadyActivated):
		return FailureAlreadyActivated
	default:
		return FailureNone
	}
}

type ActivateAccountHandler struct {
	repo     RepositoryManager
	config   Config
	machine  ActivationStateMachine
	sessions SessionEstablisher
	events   EventBus
	logger   Logger
	metrics  *Metrics
	now      Clock
}

// NewActivateAccountHandler creates a handler with sane defaults.
func NewActivateAccountHandler(repo RepositoryManager, config Config) *ActivateAccountHandler {
	_, logger := ResolveLogger("registration.activate", nil, nil)
	return &ActivateAccountHandler{
		repo:   repo,
		config: config,
		events: noopEventBus{},
		logger: logger,
		now:    time.Now,
	}
}

// WithStateMachine overrides the state machine built from the repository.
func (h *ActivateAccountHandler) WithStateMachine(machine ActivationStateMachine) *ActivateAccountHandler {
	h.machine = machine
	return h
}

// WithSessionEstablisher sets the collaborator used when auto login is on.
func (h *ActivateAccountHandler) WithSessionEstablisher(sessions SessionEstablisher) *ActivateAccountHandler {
	h.sessions = sessions
	return h
}

// WithEventBus sets the bus used to emit UserActivated.
func (h *ActivateAccountHandler) WithEventBus(bus EventBus) *ActivateAccountHandler {
	h.events = normalizeEventBus(bus)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ActivateAccountHandler) WithLogger(logger Logger) *ActivateAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ActivateAccountHandler) WithMetrics(metrics *Metrics) *ActivateAccountHandler {
	h.metrics = metrics
	return h
}

func (h *ActivateAccountHandler) WithClock(clock Clock) *ActivateAccountHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *ActivateAccountHandler) Execute(ctx context.Context, event ActivateAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account activation",
		)
	default:
		outcome, err := h.Activate(ctx, event)
		if err != nil {
			return err
		}
		if event.OnResponse != nil {
			event.OnResponse(outcome)
		}
		return nil
	}
}

// Activate consumes the key. Rejections are reported in the outcome, the
// error is only set when the store failed.
func (h *ActivateAccountHandler) Activate(ctx context.Context, event ActivateAccountMessage) (ActivationOutcome, error) {
	start := time.Now()
	defer h.metrics.observe("activate", start)

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account, err := h.stateMachine().Activate(ctx, event.ActivationKey)
	if err != nil {
		kind := FailureKindOf(err)
		if kind == FailureNone {
			h.metrics.activation("error")
			h.logger.Error("account activation failed", "error", err)
			return ActivationOutcome{}, err
		}

		h.metrics.activation(string(kind))
		h.logger.Debug("activation rejected", "failure", string(kind))
		return ActivationOutcome{Failure: kind, Err: err}, nil
	}

	outcome := ActivationOutcome{Account: account}

	if err := h.events.Emit(ctx, newAccountEvent(EventUserActivated, account, resolveRequest(ctx, event.Request), h.now())); err != nil {
		h.logger.Warn("user activated event emit failed", "error", err, "account_id", account.ID.String())
	}

	if h.config != nil && h.config.GetAuthenticateOnActivate() {
		outcome.Session, outcome.SessionError = h.establishSession(ctx, account)
	}

	h.metrics.activation("success")
	return outcome, nil
}

func (h *ActivateAccountHandler) establishSession(ctx context.Context, account *Account) (*Session, error) {
	if h.sessions == nil {
		h.logger.Warn("authenticate on activate is set but no session establisher configured")
		return nil, nil
	}

	session, err := h.sessions.EstablishSession(ctx, account)
	if err != nil {
		h.logger.Warn("session establishment after activation failed", "error", err, "account_id", account.ID.String())
		return nil, err
	}

	if err := h.repo.Accounts().TrackLogin(ctx, account.ID, h.now()); err != nil {
		h.logger.Warn("failed to track login after activation", "error", err, "account_id", account.ID.String())
	} else {
		at := h.now().UTC()
		account.LastLoginAt = &at
	}

	return session, nil
}

func (h *ActivateAccountHandler) stateMachine() ActivationStateMachine {
	if h.machine != nil {
		return h.machine
	}

	days := 0
	if h.config != nil {
		days = h.config.GetActivationDays()
	}

	return NewActivationStateMachine(
		h.repo.Accounts(),
		days,
		WithStateMachineClock(h.now),
		WithStateMachineLogger(h.logger),
	)
}
