// Package tx provides transaction management abstractions.
// Domain services depend on Manager; the postgres TxManager implements it for
// database storage and Noop serves the in-process stores.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
type Manager interface {
	// RunInTransaction executes fn within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Noop runs fn without a transaction. In-process stores rely on the
// orchestrator doing every fallible step before its first write.
type Noop struct{}

var _ Manager = Noop{}

// RunInTransaction implements Manager.
func (Noop) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
