package session

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-registration"
	"github.com/oklog/ulid/v2"
)

const textCodeInvalidSession = "INVALID_SESSION"

// ErrInvalidSession is returned when a session token does not validate.
var ErrInvalidSession = errors.New("invalid session token", errors.CategoryAuth).
	WithTextCode(textCodeInvalidSession).
	WithCode(errors.CodeUnauthorized)

// Claims are the claims carried by a session token.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Staff bool   `json:"staff,omitempty"`
}

// JWTEstablisher opens sessions as signed HS256 tokens.
type JWTEstablisher struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	now        func() time.Time
	logger     registration.Logger
}

var _ registration.SessionEstablisher = (*JWTEstablisher)(nil)

// NewJWTEstablisher creates an establisher. ttl is the token lifetime.
func NewJWTEstablisher(signingKey []byte, ttl time.Duration, issuer string, audience ...string) *JWTEstablisher {
	_, logger := registration.ResolveLogger("registration.session", nil, nil)
	return &JWTEstablisher{
		signingKey: signingKey,
		ttl:        ttl,
		issuer:     issuer,
		audience:   jwt.ClaimStrings(audience),
		now:        time.Now,
		logger:     logger,
	}
}

// WithClock injects a custom clock (useful for tests).
func (e *JWTEstablisher) WithClock(clock func() time.Time) *JWTEstablisher {
	if clock != nil {
		e.now = clock
	}
	return e
}

func (e *JWTEstablisher) WithLogger(logger registration.Logger) *JWTEstablisher {
	if logger != nil {
		e.logger = logger
	}
	return e
}

// EstablishSession signs a token for an active account.
func (e *JWTEstablisher) EstablishSession(ctx context.Context, account *registration.Account) (*registration.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "context cancelled establishing session")
	}

	if account == nil || !account.IsActive {
		return nil, errors.New("session requires an active account", errors.CategoryAuth).
			WithCode(errors.CodeForbidden)
	}

	now := e.now()
	expiresAt := now.Add(e.ttl)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Issuer:    e.issuer,
			Subject:   account.ID.String(),
			Audience:  e.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: account.Email,
		Staff: account.IsStaff,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(e.signingKey)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return &registration.Session{
		Token:     signed,
		AccountID: account.ID.String(),
		ExpiresAt: expiresAt,
	}, nil
}

// Validate parses a token and returns its claims.
func (e *JWTEstablisher) Validate(tokenString string) (*Claims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(e.now),
	}
	if e.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(e.issuer))
	}
	if len(e.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(e.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			e.logger.Error("session validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return e.signingKey, nil
	}, parserOptions...)
	if err != nil {
		return nil, errors.Wrap(err, ErrInvalidSession.Category, ErrInvalidSession.Message).
			WithTextCode(ErrInvalidSession.TextCode)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidSession
	}
	return claims, nil
}
