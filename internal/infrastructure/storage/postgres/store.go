package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"tillsync/internal/core/apperror"
	"tillsync/internal/core/entity"
)

const documentsTable = "sync_documents"

// upsertConflict merges top-level fields and refuses to go back in time.
const upsertConflict = "ON CONFLICT (collection, id) DO UPDATE SET " +
	"doc = " + documentsTable + ".doc || EXCLUDED.doc, " +
	"updated_at = EXCLUDED.updated_at " +
	"WHERE " + documentsTable + ".updated_at <= EXCLUDED.updated_at"

type documentRow struct {
	ID        string          `db:"id"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
	Doc       json.RawMessage `db:"doc"`
}

func (r documentRow) toDocument() entity.Document {
	return entity.Document{
		ID:        r.ID,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
		Data:      r.Doc,
	}
}

// DocumentStore is the remote store client backed by PostgreSQL.
type DocumentStore struct {
	pool    *Pool
	txm     *TxManager
	batch   *BatchExecutor
	builder sq.StatementBuilderType
}

// NewDocumentStore creates a remote document store on pool.
func NewDocumentStore(pool *Pool) *DocumentStore {
	txm := NewTxManager(pool)
	return &DocumentStore{
		pool:    pool,
		txm:     txm,
		batch:   NewBatchExecutor(txm),
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Ping checks the remote is reachable.
func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Scan reads a whole collection.
func (s *DocumentStore) Scan(ctx context.Context, c entity.Collection) ([]entity.Document, error) {
	query, args, err := s.scanQuery(c).ToSql()
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	var rows []documentRow
	if err := pgxscan.Select(ctx, s.txm.GetQuerier(ctx), &rows, query, args...); err != nil {
		return nil, err
	}
	docs := make([]entity.Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, r.toDocument())
	}
	return docs, nil
}

// Get reads one document; NOT_FOUND if absent.
func (s *DocumentStore) Get(ctx context.Context, c entity.Collection, id string) (entity.Document, error) {
	query, args, err := s.scanQuery(c).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return entity.Document{}, apperror.NewInternal(err)
	}

	var row documentRow
	if err := pgxscan.Get(ctx, s.txm.GetQuerier(ctx), &row, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity.Document{}, apperror.NewNotFound(string(c), id)
		}
		return entity.Document{}, err
	}
	return row.toDocument(), nil
}

// Upsert writes docs in one batch and one transaction. Stale documents are
// skipped by the WHERE clause, so replaying an upsert is a no-op.
func (s *DocumentStore) Upsert(ctx context.Context, c entity.Collection, docs []entity.Document) error {
	queries := make([]BatchQuery, 0, len(docs))
	for _, d := range docs {
		query, args, err := s.upsertQuery(c, d).ToSql()
		if err != nil {
			return apperror.NewInternal(err)
		}
		queries = append(queries, BatchQuery{SQL: query, Args: args})
	}
	return s.batch.ExecuteBatch(ctx, queries)
}

// Delete removes one document. Deleting a missing id succeeds.
func (s *DocumentStore) Delete(ctx context.Context, c entity.Collection, id string) error {
	query, args, err := s.builder.
		Delete(documentsTable).
		Where(sq.Eq{"collection": string(c), "id": id}).
		ToSql()
	if err != nil {
		return apperror.NewInternal(err)
	}
	_, err = s.txm.GetQuerier(ctx).Exec(ctx, query, args...)
	return err
}

func (s *DocumentStore) scanQuery(c entity.Collection) sq.SelectBuilder {
	return s.builder.
		Select("id", "created_at", "updated_at", "doc").
		From(documentsTable).
		Where(sq.Eq{"collection": string(c)}).
		OrderBy("created_at", "id")
}

func (s *DocumentStore) upsertQuery(c entity.Collection, d entity.Document) sq.InsertBuilder {
	return s.builder.
		Insert(documentsTable).
		Columns("collection", "id", "created_at", "updated_at", "doc").
		Values(string(c), d.ID, d.CreatedAt, d.UpdatedAt, []byte(d.Data)).
		Suffix(upsertConflict)
}

// errNotification is returned for malformed NOTIFY payloads.
var errNotification = errors.New("malformed change notification")
