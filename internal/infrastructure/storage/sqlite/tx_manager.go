package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tillsync/internal/core/apperror"
	"tillsync/internal/core/tx"
	"tillsync/pkg/logger"
)

var tracer = otel.Tracer("tillsync/local")

// Compile-time check that TxManager implements tx.Manager interface.
var _ tx.Manager = (*TxManager)(nil)

// TxManager runs local transactions and carries the open *sql.Tx in context, so
// repositories called inside fn join the same transaction.
type TxManager struct {
	db *sql.DB
}

// NewTxManager creates a new transaction manager.
func NewTxManager(db *DB) *TxManager {
	return &TxManager{db: db.db}
}

// txKey is the context key for active transaction.
type txKey struct{}

// RunInTransaction executes fn within a transaction.
// If a transaction already exists in ctx, it is reused and the outer call commits.
// Begin and commit failures are reported as PERSISTENCE_FAILURE.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.GetTx(ctx) != nil {
		return fn(ctx)
	}

	ctx, span := tracer.Start(ctx, "local.transaction",
		trace.WithAttributes(attribute.String("db.system", "sqlite")))
	defer span.End()

	sqlTx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return apperror.NewPersistenceFailure("begin", fmt.Errorf("begin transaction: %w", err))
	}

	txCtx := context.WithValue(ctx, txKey{}, sqlTx)
	if err := fn(txCtx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.Error(context.Background(), "rollback failed", "error", rbErr, "original_error", err)
		}
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return apperror.NewPersistenceFailure("commit", fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// GetTx returns the current transaction from context, or nil if none.
func (m *TxManager) GetTx(ctx context.Context) *sql.Tx {
	if t, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return t
	}
	return nil
}

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetQuerier returns the transaction in ctx, or the database handle.
// This allows repos to work both inside and outside transactions.
func (m *TxManager) GetQuerier(ctx context.Context) Querier {
	if t := m.GetTx(ctx); t != nil {
		return t
	}
	return m.db
}
