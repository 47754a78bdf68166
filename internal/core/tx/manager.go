// Package tx provides transaction management abstractions.
// Domain services and the reconciliation engine depend on this interface,
// not on the local store implementation.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management against the local store.
//
// The actual implementation lives in infrastructure/storage/sqlite.
type Manager interface {
	// RunInTransaction executes fn within a local database transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
