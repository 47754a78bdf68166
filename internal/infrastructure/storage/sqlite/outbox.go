package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"

	"tillsync/internal/core/apperror"
	"tillsync/internal/core/entity"
)

// outboxRow maps the outbox table.
type outboxRow struct {
	Seq        int64          `db:"seq"`
	OpType     string         `db:"op_type"`
	Collection string         `db:"collection"`
	RecordID   string         `db:"record_id"`
	CreatedAt  sql.NullInt64  `db:"created_at"`
	UpdatedAt  sql.NullInt64  `db:"updated_at"`
	Payload    sql.NullString `db:"payload"`
	EnqueuedAt int64          `db:"enqueued_at"`
	Attempts   int            `db:"attempts"`
	LastError  string         `db:"last_error"`
}

func (r outboxRow) toEntry() entity.OutboxEntry {
	e := entity.OutboxEntry{
		Seq:        r.Seq,
		Op:         entity.Operation(r.OpType),
		Collection: entity.Collection(r.Collection),
		RecordID:   r.RecordID,
		EnqueuedAt: fromMillis(r.EnqueuedAt),
		Attempts:   r.Attempts,
		LastError:  r.LastError,
	}
	if r.Payload.Valid {
		e.Payload = entity.Document{
			ID:        r.RecordID,
			CreatedAt: fromMillis(r.CreatedAt.Int64),
			UpdatedAt: fromMillis(r.UpdatedAt.Int64),
			Data:      json.RawMessage(r.Payload.String),
		}
	}
	return e
}

// OutboxRepo persists pending remote writes.
//
// Enqueue is expected to run in the same transaction as the record write it
// describes, so a committed record always has its pending push.
type OutboxRepo struct {
	txm     *TxManager
	builder sq.StatementBuilderType
}

// NewOutboxRepo creates an outbox repository.
func NewOutboxRepo(txm *TxManager) *OutboxRepo {
	return &OutboxRepo{
		txm:     txm,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// Enqueue appends an entry and returns its sequence number.
func (r *OutboxRepo) Enqueue(ctx context.Context, e entity.OutboxEntry) (int64, error) {
	var createdAt, updatedAt sql.NullInt64
	var payload sql.NullString
	if e.Op == entity.OpUpsert {
		createdAt = sql.NullInt64{Int64: toMillis(e.Payload.CreatedAt), Valid: true}
		updatedAt = sql.NullInt64{Int64: toMillis(e.Payload.UpdatedAt), Valid: true}
		payload = sql.NullString{String: string(e.Payload.Data), Valid: true}
	}

	query, args, err := r.builder.
		Insert("outbox").
		Columns("op_type", "collection", "record_id", "created_at", "updated_at", "payload", "enqueued_at").
		Values(string(e.Op), string(e.Collection), e.RecordID, createdAt, updatedAt, payload, toMillis(e.EnqueuedAt)).
		ToSql()
	if err != nil {
		return 0, apperror.NewInternal(err)
	}

	res, err := r.txm.GetQuerier(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperror.NewPersistenceFailure("enqueue outbox", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, apperror.NewPersistenceFailure("enqueue outbox", err)
	}
	return seq, nil
}

// Pending returns up to limit entries in enqueue order. limit <= 0 means all.
func (r *OutboxRepo) Pending(ctx context.Context, limit int) ([]entity.OutboxEntry, error) {
	b := r.builder.
		Select("seq", "op_type", "collection", "record_id", "created_at", "updated_at",
			"payload", "enqueued_at", "attempts", "last_error").
		From("outbox").
		OrderBy("seq")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	var rows []outboxRow
	if err := sqlscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, query, args...); err != nil {
		return nil, apperror.NewPersistenceFailure("read outbox", err)
	}
	entries := make([]entity.OutboxEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toEntry())
	}
	return entries, nil
}

// Remove deletes a confirmed entry.
func (r *OutboxRepo) Remove(ctx context.Context, seq int64) error {
	query, args, err := r.builder.Delete("outbox").Where(sq.Eq{"seq": seq}).ToSql()
	if err != nil {
		return apperror.NewInternal(err)
	}
	if _, err := r.txm.GetQuerier(ctx).ExecContext(ctx, query, args...); err != nil {
		return apperror.NewPersistenceFailure("remove outbox entry", err)
	}
	return nil
}

// MarkFailed records a failed attempt. The entry stays queued.
func (r *OutboxRepo) MarkFailed(ctx context.Context, seq int64, reason string) error {
	query, args, err := r.builder.
		Update("outbox").
		Set("attempts", sq.Expr("attempts + 1")).
		Set("last_error", reason).
		Where(sq.Eq{"seq": seq}).
		ToSql()
	if err != nil {
		return apperror.NewInternal(err)
	}
	if _, err := r.txm.GetQuerier(ctx).ExecContext(ctx, query, args...); err != nil {
		return apperror.NewPersistenceFailure("mark outbox failure", err)
	}
	return nil
}

// RemoveForRecords drops queued entries for the given ids of a collection
// whose sequence number is at most upTo. A bulk write that reached the
// remote supersedes only what was queued before it was sent.
func (r *OutboxRepo) RemoveForRecords(ctx context.Context, c entity.Collection, ids []string, upTo int64) (int64, error) {
	var removed int64
	for start := 0; start < len(ids); start += chunkSize {
		chunk := ids[start:min(start+chunkSize, len(ids))]
		query, args, err := r.builder.
			Delete("outbox").
			Where(sq.Eq{"collection": string(c), "record_id": chunk}).
			Where(sq.LtOrEq{"seq": upTo}).
			ToSql()
		if err != nil {
			return removed, apperror.NewInternal(err)
		}
		res, err := r.txm.GetQuerier(ctx).ExecContext(ctx, query, args...)
		if err != nil {
			return removed, apperror.NewPersistenceFailure("supersede outbox entries", err)
		}
		n, _ := res.RowsAffected()
		removed += n
	}
	return removed, nil
}

// LastSeq returns the highest queued sequence number, 0 when the outbox is
// empty. Sequence numbers are never reused.
func (r *OutboxRepo) LastSeq(ctx context.Context) (int64, error) {
	query, args, err := r.builder.Select("COALESCE(MAX(seq), 0)").From("outbox").ToSql()
	if err != nil {
		return 0, apperror.NewInternal(err)
	}
	var seq int64
	if err := sqlscan.Get(ctx, r.txm.GetQuerier(ctx), &seq, query, args...); err != nil {
		return 0, apperror.NewPersistenceFailure("read outbox sequence", err)
	}
	return seq, nil
}

// Count returns the number of queued entries.
func (r *OutboxRepo) Count(ctx context.Context) (int, error) {
	query, args, err := r.builder.Select("COUNT(*)").From("outbox").ToSql()
	if err != nil {
		return 0, apperror.NewInternal(err)
	}
	var n int
	if err := sqlscan.Get(ctx, r.txm.GetQuerier(ctx), &n, query, args...); err != nil {
		return 0, apperror.NewPersistenceFailure("count outbox", err)
	}
	return n, nil
}
