// Package id provides client-side identifier generation for ledger records.
//
// Records are created on the till, often offline, so ids must be unique without
// asking the remote store. UUIDv7 gives a 48-bit millisecond timestamp followed
// by random bits, which keeps ids roughly ordered by creation time.
package id

import (
	"strings"

	"github.com/google/uuid"
)

// New generates a new UUIDv7 string.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to V4 if V7 fails (should never happen)
		return uuid.New().String()
	}
	return id.String()
}

// Valid reports whether s looks like a usable record id.
// Remote-assigned ids are opaque strings, so only emptiness and whitespace are rejected.
func Valid(s string) bool {
	return s != "" && strings.TrimSpace(s) == s
}
