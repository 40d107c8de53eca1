package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher abstracts one-way password hashing so callers never deal
// with the underlying algorithm.
type PasswordHasher interface {
	// Hash produces a salted, non-reversible hash of plaintext.
	Hash(plaintext string) (string, error)
	// Verify reports whether plaintext matches hashed. A mismatch is a
	// normal false result, never an error.
	Verify(plaintext, hashed string) bool
}

// BcryptHasher hashes passwords with bcrypt. Each call salts independently,
// so hashing the same plaintext twice yields different outputs.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (h *BcryptHasher) Verify(plaintext, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plaintext)) == nil
}

var _ PasswordHasher = (*BcryptHasher)(nil)
