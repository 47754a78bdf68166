package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// BatchQuery represents a query in a batch.
type BatchQuery struct {
	SQL  string
	Args []any
}

// BatchExecutor sends many statements in a single round-trip. Tills often sit
// on high-latency mobile links, so a bulk upsert is one batch, not N requests.
type BatchExecutor struct {
	txManager *TxManager
}

// NewBatchExecutor creates a new batch executor.
func NewBatchExecutor(txManager *TxManager) *BatchExecutor {
	return &BatchExecutor{txManager: txManager}
}

// ExecuteBatch executes all queries inside one transaction.
func (e *BatchExecutor) ExecuteBatch(ctx context.Context, queries []BatchQuery) error {
	if len(queries) == 0 {
		return nil
	}
	return e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		batch := &pgx.Batch{}
		for _, q := range queries {
			batch.Queue(q.SQL, q.Args...)
		}

		results := e.txManager.GetQuerier(ctx).SendBatch(ctx, batch)
		defer results.Close()

		for i := range queries {
			if _, err := results.Exec(); err != nil {
				return fmt.Errorf("batch query %d failed: %w", i, err)
			}
		}
		return nil
	})
}
