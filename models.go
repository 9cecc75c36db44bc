package registration

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ActivatedSentinel is stored in the activation_key column once a key has
// been consumed. It never matches the key shape, so it can never be looked
// up as a live key.
const ActivatedSentinel = "ALREADY_ACTIVATED"

// Account is the account model. Email is the external identity.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	FirstName     string     `bun:"first_name" json:"first_name,omitempty"`
	LastName      string     `bun:"last_name" json:"last_name,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	IsActive      bool       `bun:"is_active,notnull,default:false" json:"is_active"`
	IsStaff       bool       `bun:"is_staff,notnull,default:false" json:"is_staff"`
	IsSuperuser   bool       `bun:"is_superuser,notnull,default:false" json:"is_superuser"`
	ActivationKey string     `bun:"activation_key,nullzero" json:"-"`
	ActivatedAt   *time.Time `bun:"activated_at,nullzero" json:"activated_at,omitempty"`
	LastLoginAt   *time.Time `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// FullName returns first and last name, or the email when both are empty.
func (a *Account) FullName() string {
	if a.FirstName != "" || a.LastName != "" {
		return strings.TrimSpace(a.FirstName + " " + a.LastName)
	}
	return strings.TrimSpace(a.Email)
}

// ShortName returns the first name, the last name or the email.
func (a *Account) ShortName() string {
	switch {
	case a.FirstName != "":
		return strings.TrimSpace(a.FirstName)
	case a.LastName != "":
		return strings.TrimSpace(a.LastName)
	default:
		return strings.TrimSpace(a.Email)
	}
}

// State returns the tagged activation state derived from the stored columns.
func (a *Account) State() ActivationState {
	if a == nil {
		return Inactive{}
	}

	if a.IsActive || a.ActivationKey == ActivatedSentinel {
		at := a.CreatedAt
		if a.ActivatedAt != nil {
			at = *a.ActivatedAt
		}
		return Active{ActivatedAt: at}
	}

	if IsActivationKey(a.ActivationKey) {
		return Pending{Key: a.ActivationKey, IssuedAt: a.CreatedAt}
	}

	return Inactive{}
}

// IsPending reports whether the account waits for activation.
func (a *Account) IsPending() bool {
	_, ok := a.State().(Pending)
	return ok
}

// ActivationStatus names an activation state.
type ActivationStatus string

const (
	StatusPending  ActivationStatus = "pending"
	StatusActive   ActivationStatus = "active"
	StatusInactive ActivationStatus = "inactive"
)

// ActivationState is one of Pending, Active or Inactive.
type ActivationState interface {
	Status() ActivationStatus
	isActivationState()
}

// Pending holds a live activation key.
type Pending struct {
	Key      string
	IssuedAt time.Time
}

// Active is terminal for the activation flow.
type Active struct {
	ActivatedAt time.Time
}

// Inactive accounts hold no key and are not active, e.g. disabled by an admin.
type Inactive struct{}

func (Pending) Status() ActivationStatus  { return StatusPending }
func (Active) Status() ActivationStatus   { return StatusActive }
func (Inactive) Status() ActivationStatus { return StatusInactive }

func (Pending) isActivationState()  {}
func (Active) isActivationState()   {}
func (Inactive) isActivationState() {}

// NormalizeEmail trims and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
