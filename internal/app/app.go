// Package app wires the registration services from configuration.
package app

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-registration"
	"github.com/goliatone/go-registration/config"
	"github.com/goliatone/go-registration/events"
	"github.com/goliatone/go-registration/mail"
	"github.com/goliatone/go-registration/render"
	"github.com/goliatone/go-registration/session"
	"github.com/goliatone/go-registration/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
)

type App struct {
	Config   *config.Config
	DB       *bun.DB
	Repo     registration.RepositoryManager
	Logger   glog.LoggerProvider
	Metrics  *registration.Metrics
	Registry *prometheus.Registry
	Events   *registration.Dispatcher
	Mailer   *registration.ActivationMailer
	Sessions *session.JWTEstablisher

	Register *registration.RegisterAccountHandler
	Activate *registration.ActivateAccountHandler
	Create   *registration.CreateAccountHandler
	Admin    *registration.AdminActions

	closers []func() error
}

// New opens the database and wires every service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	level := glog.Info
	if cfg.Debug {
		level = glog.Trace
	}

	provider := registration.NewLoggerProvider(glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(level),
		glog.WithName("registration"),
		glog.WithAddSource(cfg.Debug),
		glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
	))

	db, err := store.Open(ctx, cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		DB:       db,
		Repo:     registration.NewRepositoryManager(db),
		Logger:   provider,
		Registry: prometheus.NewRegistry(),
		Events:   registration.NewDispatcher(),
		closers:  []func() error{db.Close},
	}
	a.Metrics = registration.NewMetrics(a.Registry)

	a.Mailer = registration.NewActivationMailer(render.New(), a.transport(), cfg).
		WithLogger(provider.GetLogger("registration.mailer")).
		WithMetrics(a.Metrics)

	if cfg.SessionSecret != "" {
		a.Sessions = session.NewJWTEstablisher([]byte(cfg.SessionSecret), cfg.SessionTTL, cfg.SiteIdentifier).
			WithLogger(provider.GetLogger("registration.session"))
	}

	bus := a.eventBus()

	a.Register = registration.NewRegisterAccountHandler(a.Repo, cfg).
		WithMailer(a.Mailer).
		WithEventBus(bus).
		WithMetrics(a.Metrics).
		WithTermsOfService(cfg.RequireTOS).
		WithLogger(provider.GetLogger("registration.register"))

	activate := registration.NewActivateAccountHandler(a.Repo, cfg).
		WithEventBus(bus).
		WithMetrics(a.Metrics).
		WithLogger(provider.GetLogger("registration.activate"))
	if a.Sessions != nil {
		activate = activate.WithSessionEstablisher(a.Sessions)
	}
	a.Activate = activate

	a.Create = registration.NewCreateAccountHandler(a.Repo, cfg).
		WithLogger(provider.GetLogger("registration.create"))

	a.Admin = registration.NewAdminActions(a.Repo, cfg).
		WithMailer(a.Mailer).
		WithEventBus(bus).
		WithLogger(provider.GetLogger("registration.admin"))

	return a, nil
}

// GetLogger returns a named logger.
func (a *App) GetLogger(name string) glog.Logger {
	return a.Logger.GetLogger(name)
}

// Close releases the database and broker connections.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (a *App) transport() registration.EmailTransport {
	if a.Config.SMTPHost == "" {
		a.GetLogger("registration.mailer").Warn("SMTP host not configured, activation emails are kept in memory")
		return mail.NewOutbox()
	}

	t := mail.NewSMTPTransport(a.Config.SMTPHost, a.Config.SMTPPort, a.Config.SMTPUsername, a.Config.SMTPPassword)
	t.ImplicitTLS = a.Config.SMTPImplicitTLS
	return t
}

func (a *App) eventBus() registration.EventBus {
	buses := registration.MultiEventBus{a.Events}

	if a.Config.RedisAddr != "" {
		client := events.NewRedisClient(a.Config.RedisAddr, a.Config.RedisPassword, a.Config.RedisDB)
		a.closers = append(a.closers, client.Close)
		buses = append(buses, events.NewRedisPublisher(client))
	}

	if len(a.Config.KafkaBrokers) > 0 {
		writer := events.NewKafkaWriter(a.Config.KafkaBrokers, a.Config.KafkaTopic)
		a.closers = append(a.closers, writer.Close)
		buses = append(buses, events.NewKafkaPublisher(writer))
	}

	return buses
}
