package registration

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Template names used for the activation email.
const (
	TemplateActivationSubject = "activation_email_subject.txt"
	TemplateActivationText    = "activation_email.txt"
	TemplateActivationHTML    = "activation_email.html"
)

// ActivationSender delivers the activation email for a pending account.
type ActivationSender interface {
	SendActivationEmail(ctx context.Context, account *Account) error
}

// ActivationMailer renders the activation templates and hands the result
// to the transport.
type ActivationMailer struct {
	renderer  Renderer
	transport EmailTransport
	config    Config
	logger    Logger
	metrics   *Metrics
}

var _ ActivationSender = (*ActivationMailer)(nil)

// NewActivationMailer creates a mailer.
func NewActivationMailer(renderer Renderer, transport EmailTransport, config Config) *ActivationMailer {
	_, logger := ResolveLogger("registration.mailer", nil, nil)
	return &ActivationMailer{
		renderer:  renderer,
		transport: transport,
		config:    config,
		logger:    logger,
	}
}

// WithLogger overrides the logger used by the mailer.
func (m *ActivationMailer) WithLogger(logger Logger) *ActivationMailer {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// WithMetrics sets the metrics collector.
func (m *ActivationMailer) WithMetrics(metrics *Metrics) *ActivationMailer {
	m.metrics = metrics
	return m
}

// TemplateContext returns the data handed to the activation templates.
func (m *ActivationMailer) TemplateContext(account *Account) map[string]any {
	data := map[string]any{
		"activation_key":  account.ActivationKey,
		"expiration_days": m.config.GetActivationDays(),
		"site_identifier": m.config.GetSiteIdentifier(),
		"site": map[string]any{
			"domain": m.config.GetSiteIdentifier(),
			"name":   m.config.GetSiteName(),
		},
		"static_url": m.config.GetStaticURL(),
		"email":      account.Email,
		"full_name":  account.FullName(),
	}

	if state, ok := account.State().(Pending); ok {
		data["expires_at"] = ActivationExpiresAt(state.IssuedAt, m.config.GetActivationDays()).Format(time.RFC1123)
	}

	return data
}

// Compose renders the activation message for a pending account.
func (m *ActivationMailer) Compose(account *Account) (EmailMessage, error) {
	if account == nil || !account.IsPending() {
		return EmailMessage{}, goerrors.New("account has no pending activation key", goerrors.CategoryValidation).
			WithTextCode("ACCOUNT_NOT_PENDING")
	}

	if m.renderer == nil {
		return EmailMessage{}, goerrors.New("activation email renderer not configured", goerrors.CategoryInternal)
	}

	data := m.TemplateContext(account)

	subject, err := m.renderer.Render(TemplateActivationSubject, data)
	if err != nil {
		return EmailMessage{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render activation subject")
	}

	text, err := m.renderer.Render(TemplateActivationText, data)
	if err != nil {
		return EmailMessage{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render activation text body")
	}

	html, err := m.renderer.Render(TemplateActivationHTML, data)
	if err != nil {
		return EmailMessage{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render activation html body")
	}

	return EmailMessage{
		From:    m.config.GetDefaultFromEmail(),
		To:      []string{account.Email},
		Subject: SingleLine(subject),
		Text:    text,
		HTML:    html,
	}, nil
}

// SendActivationEmail composes and sends the activation email. Delivery
// errors carry the EMAIL_TRANSPORT_ERROR text code.
func (m *ActivationMailer) SendActivationEmail(ctx context.Context, account *Account) error {
	msg, err := m.Compose(account)
	if err != nil {
		m.metrics.activationEmail("render_error")
		return err
	}

	if m.transport == nil {
		m.metrics.activationEmail("failed")
		return goerrors.New("email transport not configured", goerrors.CategoryOperation).
			WithTextCode(TextCodeEmailTransport)
	}

	if err := m.transport.Send(ctx, msg); err != nil {
		m.metrics.activationEmail("failed")
		m.logger.Warn("activation email transport error", "error", err, "account_id", account.ID.String())
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to deliver activation email").
			WithTextCode(TextCodeEmailTransport)
	}

	m.metrics.activationEmail("sent")
	m.logger.Debug("activation email sent", "account_id", account.ID.String())
	return nil
}

// SingleLine joins the lines of s. Email subjects must not contain newlines.
func SingleLine(s string) string {
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == '\n' || r == '\r'
	}), "")
}
