package auth

import (
	"fmt"

	"github.com/dmitrijs2005/notematic/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

// PasswordHasher hashes and verifies passwords with bcrypt. The digest is
// self-contained: it carries the algorithm version, cost and salt.
// A PasswordHasher is immutable and safe for concurrent use.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher returns a hasher using the given cost. Costs outside
// bcrypt's accepted range fall back to bcrypt.DefaultCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Cost returns the configured cost factor.
func (h *PasswordHasher) Cost() int {
	return h.cost
}

// Hash returns the bcrypt digest of password. Empty passwords and passwords
// longer than MaxPasswordBytes are rejected with common.ErrInvalidInput.
func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: empty password", common.ErrInvalidInput)
	}
	if len(password) > MaxPasswordBytes {
		return "", fmt.Errorf("%w: password longer than %d bytes", common.ErrInvalidInput, MaxPasswordBytes)
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether password matches digest. A malformed digest simply
// yields false.
func (h *PasswordHasher) Verify(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}
