package registration

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeDuplicateEmail   = "DUPLICATE_EMAIL"
	TextCodeMalformedKey     = "MALFORMED_ACTIVATION_KEY"
	TextCodeKeyNotFound      = "ACTIVATION_KEY_NOT_FOUND"
	TextCodeKeyExpired       = "ACTIVATION_KEY_EXPIRED"
	TextCodeAlreadyActivated = "ALREADY_ACTIVATED"
	TextCodeEmailTransport   = "EMAIL_TRANSPORT_ERROR"
	TextCodeStoreUnavailable = "STORE_UNAVAILABLE"
	TextCodeEmptyPassword    = "EMPTY_PASSWORD"
	TextCodeTokenGeneration  = "TOKEN_GENERATION_FAILED"
	TextCodeAccountNotFound  = "ACCOUNT_NOT_FOUND"
)

// ErrDuplicateEmail is returned when an account already uses the email.
var ErrDuplicateEmail = goerrors.New("an account with this email already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(goerrors.CodeConflict)

// ErrMalformedActivationKey is returned for keys that do not have the 40 hex shape.
var ErrMalformedActivationKey = goerrors.New("activation key is malformed", goerrors.CategoryBadInput).
	WithTextCode(TextCodeMalformedKey).
	WithCode(goerrors.CodeBadRequest)

// ErrActivationKeyNotFound is returned when no pending account holds the key.
var ErrActivationKeyNotFound = goerrors.New("activation key not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeKeyNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrActivationKeyExpired is returned when the activation window has passed.
var ErrActivationKeyExpired = goerrors.New("activation key has expired", goerrors.CategoryValidation).
	WithTextCode(TextCodeKeyExpired).
	WithCode(goerrors.CodeBadRequest)

// ErrAlreadyActivated is returned when the key was already consumed.
var ErrAlreadyActivated = goerrors.New("account is already activated", goerrors.CategoryConflict).
	WithTextCode(TextCodeAlreadyActivated).
	WithCode(goerrors.CodeConflict)

// ErrEmailTransport wraps delivery failures. It never aborts a registration.
var ErrEmailTransport = goerrors.New("failed to deliver email", goerrors.CategoryOperation).
	WithTextCode(TextCodeEmailTransport)

// ErrStoreUnavailable is fatal for the current request.
var ErrStoreUnavailable = goerrors.New("account store unavailable", goerrors.CategoryInternal).
	WithTextCode(TextCodeStoreUnavailable)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("password can not be an empty string", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword)

// ErrAccountNotFound is returned by lookups that must find a record
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(goerrors.CodeNotFound)

// IsDuplicateKeyError reports whether err is a unique constraint violation
// from postgres (SQLSTATE 23505) or sqlite.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

// storeError classifies a raw store error, hiding driver details behind
// ErrStoreUnavailable.
func storeError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return goerrors.Wrap(err, goerrors.CategoryOperation, msg)
	}

	return goerrors.Wrap(err, goerrors.CategoryInternal, msg).
		WithTextCode(TextCodeStoreUnavailable)
}

// IsStoreUnavailable reports whether err was classified as a store failure.
func IsStoreUnavailable(err error) bool {
	return HasTextCode(err, TextCodeStoreUnavailable)
}

// HasTextCode reports whether any go-errors error in the chain carries code.
func HasTextCode(err error, code string) bool {
	for err != nil {
		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) {
			return false
		}
		if richErr.TextCode == code {
			return true
		}
		err = richErr.Source
	}
	return false
}
