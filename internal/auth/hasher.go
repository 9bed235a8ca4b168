// Package auth hashes and verifies credentials with bcrypt.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes secrets with bcrypt at a fixed cost.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher. Costs outside bcrypt's range fall back to
// bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt hash of secret.
func (h *Hasher) Hash(secret string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(b), nil
}

// Verify reports whether secret matches hash. A malformed hash is a mismatch.
func (h *Hasher) Verify(hash, secret string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// HashToken hashes a long token. bcrypt only reads 72 bytes, and a JWT header
// alone exceeds that, so the token is reduced with SHA-256 first.
func (h *Hasher) HashToken(token string) (string, error) {
	return h.Hash(digest(token))
}

// VerifyToken is the counterpart of HashToken.
func (h *Hasher) VerifyToken(hash, token string) bool {
	return h.Verify(hash, digest(token))
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RandomPassword returns an unguessable password for accounts that only sign
// in through an external identity provider.
func RandomPassword() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ErrPasswordTooLong is returned by ValidatePassword for inputs bcrypt would
// silently truncate.
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// ValidatePassword rejects passwords bcrypt cannot hash in full.
func ValidatePassword(password string) error {
	if len(password) > 72 {
		return ErrPasswordTooLong
	}
	return nil
}
