package postgres

import (
	"context"
	"fmt"
)

// NotifyChannel is the LISTEN/NOTIFY channel carrying document change events.
const NotifyChannel = "sync_documents_changes"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sync_documents (
    collection  TEXT        NOT NULL,
    id          TEXT        NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL,
    doc         JSONB       NOT NULL,
    PRIMARY KEY (collection, id)
);

CREATE OR REPLACE FUNCTION sync_documents_notify() RETURNS trigger AS $$
DECLARE
    rec RECORD;
BEGIN
    IF TG_OP = 'DELETE' THEN
        rec := OLD;
    ELSE
        rec := NEW;
    END IF;
    PERFORM pg_notify('` + NotifyChannel + `', json_build_object(
        'op', TG_OP,
        'collection', rec.collection,
        'id', rec.id
    )::text);
    RETURN NULL;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS sync_documents_notify ON sync_documents;
CREATE TRIGGER sync_documents_notify
    AFTER INSERT OR UPDATE OR DELETE ON sync_documents
    FOR EACH ROW EXECUTE FUNCTION sync_documents_notify();
`

// EnsureSchema creates the document table and change trigger if missing.
func EnsureSchema(ctx context.Context, pool *Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure remote schema: %w", err)
	}
	return nil
}
