package sqlite

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"

	"tillsync/internal/core/apperror"
	"tillsync/internal/core/entity"
)

// chunkSize bounds rows per statement, well under SQLite's bound-variable limit.
const chunkSize = 200

var documentColumns = []string{"id", "created_at", "updated_at", "remote_seen", "doc"}

// documentRow maps a collection table row.
type documentRow struct {
	ID         string `db:"id"`
	CreatedAt  int64  `db:"created_at"`
	UpdatedAt  int64  `db:"updated_at"`
	RemoteSeen bool   `db:"remote_seen"`
	Doc        string `db:"doc"`
}

func (r documentRow) toDocument() entity.Document {
	return entity.Document{
		ID:         r.ID,
		CreatedAt:  fromMillis(r.CreatedAt),
		UpdatedAt:  fromMillis(r.UpdatedAt),
		Data:       json.RawMessage(r.Doc),
		RemoteSeen: r.RemoteSeen,
	}
}

// DocumentRepo reads and writes collection tables.
type DocumentRepo struct {
	txm     *TxManager
	builder sq.StatementBuilderType
}

// NewDocumentRepo creates a repository over the given transaction manager.
func NewDocumentRepo(txm *TxManager) *DocumentRepo {
	return &DocumentRepo{
		txm:     txm,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// List returns every record of a collection ordered by creation time.
func (r *DocumentRepo) List(ctx context.Context, c entity.Collection) ([]entity.Document, error) {
	query, args, err := r.builder.
		Select(documentColumns...).
		From(c.Table()).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	var rows []documentRow
	if err := sqlscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, query, args...); err != nil {
		return nil, apperror.NewPersistenceFailure("list "+string(c), err)
	}

	docs := make([]entity.Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, row.toDocument())
	}
	return docs, nil
}

// Get returns one record or NOT_FOUND.
func (r *DocumentRepo) Get(ctx context.Context, c entity.Collection, id string) (entity.Document, error) {
	query, args, err := r.builder.
		Select(documentColumns...).
		From(c.Table()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return entity.Document{}, apperror.NewInternal(err)
	}

	var row documentRow
	if err := sqlscan.Get(ctx, r.txm.GetQuerier(ctx), &row, query, args...); err != nil {
		if sqlscan.NotFound(err) {
			return entity.Document{}, apperror.NewNotFound(string(c), id)
		}
		return entity.Document{}, apperror.NewPersistenceFailure("get "+string(c), err)
	}
	return row.toDocument(), nil
}

// Upsert writes documents including their RemoteSeen flag. Used when the
// remote copy is known (hydration, live changes, confirmed pushes).
func (r *DocumentRepo) Upsert(ctx context.Context, c entity.Collection, docs ...entity.Document) error {
	return r.upsert(ctx, c, docs,
		"ON CONFLICT (id) DO UPDATE SET created_at = excluded.created_at, updated_at = excluded.updated_at, "+
			"remote_seen = excluded.remote_seen, doc = excluded.doc")
}

// UpsertLocal writes documents from a local edit. The stored RemoteSeen flag
// is kept for existing rows; new rows take the document's flag.
func (r *DocumentRepo) UpsertLocal(ctx context.Context, c entity.Collection, docs ...entity.Document) error {
	return r.upsert(ctx, c, docs,
		"ON CONFLICT (id) DO UPDATE SET created_at = excluded.created_at, updated_at = excluded.updated_at, "+
			"doc = excluded.doc")
}

func (r *DocumentRepo) upsert(ctx context.Context, c entity.Collection, docs []entity.Document, onConflict string) error {
	q := r.txm.GetQuerier(ctx)
	for start := 0; start < len(docs); start += chunkSize {
		end := min(start+chunkSize, len(docs))

		ins := r.builder.Insert(c.Table()).Columns(documentColumns...)
		for _, d := range docs[start:end] {
			ins = ins.Values(d.ID, toMillis(d.CreatedAt), toMillis(d.UpdatedAt), d.RemoteSeen, string(d.Data))
		}
		query, args, err := ins.Suffix(onConflict).ToSql()
		if err != nil {
			return apperror.NewInternal(err)
		}
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return apperror.NewPersistenceFailure("upsert "+string(c), err)
		}
	}
	return nil
}

// Delete removes records by id. Missing ids are ignored.
func (r *DocumentRepo) Delete(ctx context.Context, c entity.Collection, ids ...string) error {
	return r.forChunks(ids, func(chunk []string) error {
		query, args, err := r.builder.Delete(c.Table()).Where(sq.Eq{"id": chunk}).ToSql()
		if err != nil {
			return apperror.NewInternal(err)
		}
		if _, err := r.txm.GetQuerier(ctx).ExecContext(ctx, query, args...); err != nil {
			return apperror.NewPersistenceFailure("delete "+string(c), err)
		}
		return nil
	})
}

// Retain deletes every record of the collection whose id is not in keep.
func (r *DocumentRepo) Retain(ctx context.Context, c entity.Collection, keep []string) error {
	existing, err := r.ids(ctx, c)
	if err != nil {
		return err
	}
	keepSet := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		keepSet[id] = struct{}{}
	}
	var drop []string
	for _, id := range existing {
		if _, ok := keepSet[id]; !ok {
			drop = append(drop, id)
		}
	}
	return r.Delete(ctx, c, drop...)
}

// MarkRemoteSeen flags records as confirmed by the remote store.
func (r *DocumentRepo) MarkRemoteSeen(ctx context.Context, c entity.Collection, ids ...string) error {
	return r.forChunks(ids, func(chunk []string) error {
		query, args, err := r.builder.
			Update(c.Table()).
			Set("remote_seen", true).
			Where(sq.Eq{"id": chunk}).
			ToSql()
		if err != nil {
			return apperror.NewInternal(err)
		}
		if _, err := r.txm.GetQuerier(ctx).ExecContext(ctx, query, args...); err != nil {
			return apperror.NewPersistenceFailure("mark seen "+string(c), err)
		}
		return nil
	})
}

func (r *DocumentRepo) ids(ctx context.Context, c entity.Collection) ([]string, error) {
	query, args, err := r.builder.Select("id").From(c.Table()).ToSql()
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	var ids []string
	if err := sqlscan.Select(ctx, r.txm.GetQuerier(ctx), &ids, query, args...); err != nil {
		return nil, apperror.NewPersistenceFailure("list ids "+string(c), err)
	}
	return ids, nil
}

func (r *DocumentRepo) forChunks(ids []string, fn func([]string) error) error {
	for start := 0; start < len(ids); start += chunkSize {
		if err := fn(ids[start:min(start+chunkSize, len(ids))]); err != nil {
			return err
		}
	}
	return nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
