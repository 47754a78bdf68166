// Package security provides manager PIN checks, session tokens, role
// permissions and the ledger edit-window policy.
package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"tillsync/internal/core/apperror"
)

// HashPIN returns the bcrypt hash stored in MANAGER_PIN_HASH.
func HashPIN(pin string) (string, error) {
	if len(pin) < 4 {
		return "", apperror.NewValidation("PIN must have at least 4 digits")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash pin: %w", err)
	}
	return string(h), nil
}

// PINVerifier checks a manager PIN against a bcrypt hash.
type PINVerifier struct {
	hash []byte
}

// NewPINVerifier creates a verifier. An empty hash refuses every PIN.
func NewPINVerifier(hash string) *PINVerifier {
	return &PINVerifier{hash: []byte(hash)}
}

// Verify returns FORBIDDEN unless pin matches.
func (v *PINVerifier) Verify(pin string) error {
	if len(v.hash) == 0 {
		return apperror.NewForbidden("manager PIN is not configured")
	}
	err := bcrypt.CompareHashAndPassword(v.hash, []byte(pin))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return apperror.NewForbidden("invalid manager PIN")
	default:
		return apperror.NewForbidden("invalid manager PIN").WithCause(err)
	}
}
