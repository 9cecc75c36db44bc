package registration

import (
	"context"
	"time"

	"github.com/goliatone/go-logger/glog"
)

// Logger is the structured logger used across the package.
type Logger = glog.Logger

// LoggerProvider hands out named loggers.
type LoggerProvider = glog.LoggerProvider

// Config holds registration options
type Config interface {
	GetActivationDays() int
	GetAuthenticateOnActivate() bool
	GetSendActivationEmail() bool
	GetSiteIdentifier() string
	GetSiteName() string
	GetDefaultFromEmail() string
	GetStaticURL() string
	GetUseHashid() bool
}

// PasswordHasher is the platform credential primitive
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// EmailMessage is a rendered, ready to send email
type EmailMessage struct {
	From    string
	To      []string
	Subject string
	Text    string
	HTML    string
}

// EmailTransport delivers rendered messages. Delivery is fire-and-forget,
// the core only cares about the immediate error.
type EmailTransport interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// Renderer renders a named template with the given context.
type Renderer interface {
	Render(name string, data map[string]any) (string, error)
}

// Session is the result of establishing an authenticated session.
type Session struct {
	Token     string
	AccountID string
	ExpiresAt time.Time
}

// SessionEstablisher logs an account in after activation.
type SessionEstablisher interface {
	EstablishSession(ctx context.Context, account *Account) (*Session, error)
}

// RequestInfo carries the originating request context for events.
type RequestInfo struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Host      string `json:"host,omitempty"`
}

// Clock returns the current time
type Clock func() time.Time
