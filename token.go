package registration

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"regexp"

	goerrors "github.com/goliatone/go-errors"
)

// ActivationKeyLength is the length of a hex encoded activation key
const ActivationKeyLength = 40

var activationKeyRE = regexp.MustCompile(`^[a-f0-9]{40}$`)

// IsActivationKey reports whether key has the shape of a live activation key.
// The sentinel and any other string fail this check.
func IsActivationKey(key string) bool {
	return activationKeyRE.MatchString(key)
}

// TokenGenerator mints activation keys.
type TokenGenerator interface {
	Generate(email string) (string, error)
}

// TokenGeneratorFunc adapts a function to TokenGenerator.
type TokenGeneratorFunc func(email string) (string, error)

// Generate implements TokenGenerator.
func (f TokenGeneratorFunc) Generate(email string) (string, error) {
	return f(email)
}

// SHA1TokenGenerator hashes a random salt with the email. Uniqueness comes
// from the salt, the email only scopes the key.
type SHA1TokenGenerator struct {
	// Random defaults to crypto/rand.Reader
	Random io.Reader
}

// NewTokenGenerator returns the default generator.
func NewTokenGenerator() *SHA1TokenGenerator {
	return &SHA1TokenGenerator{Random: rand.Reader}
}

// Generate returns a 40 char lowercase hex key. A failing randomness source
// is an error, there is no fallback.
func (g *SHA1TokenGenerator) Generate(email string) (string, error) {
	src := g.Random
	if src == nil {
		src = rand.Reader
	}

	seed := make([]byte, 20)
	if _, err := io.ReadFull(src, seed); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "randomness source unavailable").
			WithTextCode(TextCodeTokenGeneration)
	}

	salt := hex.EncodeToString(seed)
	sum := sha1.Sum([]byte(salt + email))
	return hex.EncodeToString(sum[:]), nil
}
