package registration

import (
	"context"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// Registerer is satisfied by RegisterAccountHandler.
type Registerer interface {
	Register(ctx context.Context, event RegisterAccountMessage) (*RegistrationResult, error)
}

// Activator is satisfied by ActivateAccountHandler.
type Activator interface {
	Activate(ctx context.Context, event ActivateAccountMessage) (ActivationOutcome, error)
}

// Messages rendered by the HTTP layer. Store details never reach the client.
const (
	MessageInvalidActivationKey = "invalid activation key"
	MessageActivationExpired    = "activation key has expired"
	MessageAlreadyActivated     = "account is already activated"
	MessageInternalError        = "internal server error"
	MessageMalformedForm        = "failed to parse form"
)

// Route names used for redirects.
const (
	RouteRegistrationPost     = "registration.post"
	RouteRegistrationComplete = "registration_complete"
	RouteActivate             = "registration_activate"
	RouteActivationComplete   = "activation_complete"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

type RegistrationControllerRoutes struct {
	Register             string
	RegistrationComplete string
	Activate             string
	ActivationComplete   string
}

type RegistrationController struct {
	Logger        Logger
	Registerer    Registerer
	Activator     Activator
	Routes        *RegistrationControllerRoutes
	SessionCookie string
}

type RegistrationControllerOption func(*RegistrationController) *RegistrationController

func WithControllerLogger(logger Logger) RegistrationControllerOption {
	return func(c *RegistrationController) *RegistrationController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerRegisterer(r Registerer) RegistrationControllerOption {
	return func(c *RegistrationController) *RegistrationController {
		c.Registerer = r
		return c
	}
}

func WithControllerActivator(a Activator) RegistrationControllerOption {
	return func(c *RegistrationController) *RegistrationController {
		c.Activator = a
		return c
	}
}

func WithControllerRoutes(routes *RegistrationControllerRoutes) RegistrationControllerOption {
	return func(c *RegistrationController) *RegistrationController {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

func NewRegistrationController(opts ...RegistrationControllerOption) *RegistrationController {
	_, logger := ResolveLogger("registration.http", nil, nil)
	c := &RegistrationController{
		Logger:        logger,
		SessionCookie: "session",
		Routes: &RegistrationControllerRoutes{
			Register:             "/register",
			RegistrationComplete: "/register/complete",
			Activate:             "/activate",
			ActivationComplete:   "/activate/complete",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Registerer == nil {
		panic("Missing Registerer in registration controller...")
	}

	if c.Activator == nil {
		panic("Missing Activator in registration controller...")
	}

	return c
}

// RegisterRoutes mounts the registration routes on app.
func RegisterRoutes[T any](app router.Router[T], opts ...RegistrationControllerOption) *RegistrationController {
	controller := NewRegistrationController(opts...)
	controller.Mount(app)
	return controller
}

// Mount registers the named routes on app.
func (a *RegistrationController) Mount(app RouteRegistrar) {
	app.Post(a.Routes.Register, a.RegistrationCreate).
		SetName(RouteRegistrationPost)
	app.Get(a.Routes.RegistrationComplete, a.RegistrationComplete).
		SetName(RouteRegistrationComplete)
	app.Get(a.Routes.ActivationComplete, a.ActivationComplete).
		SetName(RouteActivationComplete)
	app.Get(a.Routes.Activate+"/:key", a.ActivationShow).
		SetName(RouteActivate)
}

func (a *RegistrationController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegisterAccountMessage)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register account parse payload", "error", err)
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": MessageMalformedForm,
		})
	}

	payload.SendEmail = nil
	payload.RequireConfirmation = true
	payload.Request = requestInfo(ctx)

	if _, err := a.Registerer.Register(ctx.Context(), *payload); err != nil {
		return a.registrationError(ctx, err)
	}

	return ctx.RedirectToRoute(RouteRegistrationComplete, router.ViewContext{}, router.StatusSeeOther)
}

func (a *RegistrationController) RegistrationComplete(ctx router.Context) error {
	return ctx.JSON(router.StatusOK, map[string]any{
		"message": "registration complete, check your email to activate your account",
	})
}

func (a *RegistrationController) ActivationShow(ctx router.Context) error {
	outcome, err := a.Activator.Activate(ctx.Context(), ActivateAccountMessage{
		ActivationKey: ctx.Param("key"),
		Request:       requestInfo(ctx),
	})
	if err != nil {
		a.Logger.Error("activation failed", "error", err)
		return ctx.JSON(router.StatusInternalServerError, map[string]any{
			"error": MessageInternalError,
		})
	}

	switch {
	case outcome.Failure.InvalidKey():
		return ctx.JSON(http.StatusNotFound, map[string]any{"error": MessageInvalidActivationKey})
	case outcome.Failure == FailureExpired:
		return ctx.JSON(http.StatusGone, map[string]any{"error": MessageActivationExpired})
	case outcome.Failure == FailureAlreadyActivated:
		return ctx.JSON(http.StatusConflict, map[string]any{"error": MessageAlreadyActivated})
	}

	if outcome.Session != nil {
		ctx.Cookie(&router.Cookie{
			Name:     a.SessionCookie,
			Value:    outcome.Session.Token,
			Path:     "/",
			Expires:  outcome.Session.ExpiresAt,
			HTTPOnly: true,
			SameSite: "Lax",
		})
	}

	return ctx.RedirectToRoute(RouteActivationComplete, router.ViewContext{}, router.StatusSeeOther)
}

func (a *RegistrationController) ActivationComplete(ctx router.Context) error {
	return ctx.JSON(router.StatusOK, map[string]any{
		"message": "your account is now active",
	})
}

func (a *RegistrationController) registrationError(ctx router.Context, err error) error {
	if HasTextCode(err, TextCodeDuplicateEmail) {
		return ctx.JSON(http.StatusConflict, map[string]any{
			"error": ErrDuplicateEmail.Message,
		})
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if validation := richErr.ValidationMap(); len(validation) > 0 {
			return ctx.JSON(router.StatusBadRequest, map[string]any{
				"error":      richErr.Message,
				"validation": validation,
			})
		}
	}

	a.Logger.Error("registration failed", "error", err)
	return ctx.JSON(router.StatusInternalServerError, map[string]any{
		"error": MessageInternalError,
	})
}

func requestInfo(ctx router.Context) RequestInfo {
	return RequestInfo{
		IP:        ctx.IP(),
		UserAgent: ctx.Header("User-Agent"),
		Host:      ctx.Header("Host"),
	}
}
