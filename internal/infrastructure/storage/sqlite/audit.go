package sqlite

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/klauspost/compress/zstd"

	"tillsync/internal/core/apperror"
	appctx "tillsync/internal/core/context"
	"tillsync/internal/core/entity"
)

// CompressionAlgo specifies the compression algorithm used for the payload.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

var genesisHash = strings.Repeat("0", 64)

// AuditEntry is one link of the audit chain.
type AuditEntry struct {
	Seq        int64
	Collection entity.Collection
	RecordID   string
	Action     entity.AuditAction
	Actor      string
	DeviceID   string
	RecordedAt time.Time
	Payload    json.RawMessage
	PrevHash   string
	Hash       string
}

type auditRow struct {
	Seq         int64  `db:"seq"`
	Collection  string `db:"collection"`
	RecordID    string `db:"record_id"`
	Action      string `db:"action"`
	Actor       string `db:"actor"`
	DeviceID    string `db:"device_id"`
	RecordedAt  int64  `db:"recorded_at"`
	Payload     []byte `db:"payload"`
	Compression string `db:"compression"`
	PrevHash    string `db:"prev_hash"`
	Hash        string `db:"hash"`
}

// AuditLog is an append-only, hash-chained log of ledger and cash-day mutations.
// Each entry's hash covers the previous entry's hash, so editing or deleting
// a past row breaks every later link.
type AuditLog struct {
	txm               *TxManager
	builder           sq.StatementBuilderType
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int // bytes
	now               func() time.Time
}

// NewAuditLog creates an audit log. Payloads above 4KB are zstd-compressed.
func NewAuditLog(txm *TxManager, now func() time.Time) (*AuditLog, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditLog{
		txm:               txm,
		builder:           sq.StatementBuilder.PlaceholderFormat(sq.Question),
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 4 * 1024,
		now:               now,
	}, nil
}

// Record appends an entry for a record mutation, attributing it to the actor in ctx.
func (a *AuditLog) Record(ctx context.Context, c entity.Collection, recordID string, action entity.AuditAction, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	entry := AuditEntry{
		Collection: c,
		RecordID:   recordID,
		Action:     action,
		Actor:      appctx.ActorName(ctx),
		RecordedAt: a.now(),
		Payload:    data,
	}
	if actor := appctx.GetActor(ctx); actor != nil {
		entry.DeviceID = actor.DeviceID
	}
	return a.Append(ctx, entry)
}

// Append links entry to the chain head and stores it.
func (a *AuditLog) Append(ctx context.Context, entry AuditEntry) error {
	return a.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		prev, err := a.head(ctx)
		if err != nil {
			return err
		}
		entry.PrevHash = prev
		entry.Hash = chainHash(entry)

		payload := []byte(entry.Payload)
		algo := CompressionNone
		if len(payload) > a.compressThreshold {
			payload = a.encoder.EncodeAll(payload, nil)
			algo = CompressionZstd
		}

		query, args, err := a.builder.
			Insert("audit_log").
			Columns("collection", "record_id", "action", "actor", "device_id", "recorded_at",
				"payload", "compression", "prev_hash", "hash").
			Values(string(entry.Collection), entry.RecordID, string(entry.Action), entry.Actor, entry.DeviceID,
				toMillis(entry.RecordedAt), payload, string(algo), entry.PrevHash, entry.Hash).
			ToSql()
		if err != nil {
			return apperror.NewInternal(err)
		}
		if _, err := a.txm.GetQuerier(ctx).ExecContext(ctx, query, args...); err != nil {
			return apperror.NewPersistenceFailure("append audit", err)
		}
		return nil
	})
}

// History returns the audit entries of one record, oldest first.
func (a *AuditLog) History(ctx context.Context, c entity.Collection, recordID string) ([]AuditEntry, error) {
	return a.list(ctx, sq.Eq{"collection": string(c), "record_id": recordID})
}

// VerifyResult reports the outcome of a chain check.
type VerifyResult struct {
	Checked  int
	BrokenAt int64 // seq of the first bad link, 0 if the chain is intact
}

// Verify recomputes every hash and checks each entry points at its predecessor.
func (a *AuditLog) Verify(ctx context.Context) (VerifyResult, error) {
	entries, err := a.list(ctx, nil)
	if err != nil {
		return VerifyResult{}, err
	}
	prev := genesisHash
	for i, e := range entries {
		if e.PrevHash != prev || chainHash(e) != e.Hash {
			return VerifyResult{Checked: i, BrokenAt: e.Seq}, nil
		}
		prev = e.Hash
	}
	return VerifyResult{Checked: len(entries)}, nil
}

func (a *AuditLog) head(ctx context.Context) (string, error) {
	query, args, err := a.builder.Select("hash").From("audit_log").OrderBy("seq DESC").Limit(1).ToSql()
	if err != nil {
		return "", apperror.NewInternal(err)
	}
	var hash string
	if err := sqlscan.Get(ctx, a.txm.GetQuerier(ctx), &hash, query, args...); err != nil {
		if sqlscan.NotFound(err) {
			return genesisHash, nil
		}
		return "", apperror.NewPersistenceFailure("read audit head", err)
	}
	return hash, nil
}

func (a *AuditLog) list(ctx context.Context, where sq.Sqlizer) ([]AuditEntry, error) {
	b := a.builder.
		Select("seq", "collection", "record_id", "action", "actor", "device_id", "recorded_at",
			"payload", "compression", "prev_hash", "hash").
		From("audit_log").
		OrderBy("seq")
	if where != nil {
		b = b.Where(where)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	var rows []auditRow
	if err := sqlscan.Select(ctx, a.txm.GetQuerier(ctx), &rows, query, args...); err != nil {
		return nil, apperror.NewPersistenceFailure("read audit", err)
	}

	entries := make([]AuditEntry, 0, len(rows))
	for _, row := range rows {
		payload := row.Payload
		if CompressionAlgo(row.Compression) == CompressionZstd {
			payload, err = a.decoder.DecodeAll(row.Payload, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress audit %d: %w", row.Seq, err)
			}
		}
		entries = append(entries, AuditEntry{
			Seq:        row.Seq,
			Collection: entity.Collection(row.Collection),
			RecordID:   row.RecordID,
			Action:     entity.AuditAction(row.Action),
			Actor:      row.Actor,
			DeviceID:   row.DeviceID,
			RecordedAt: fromMillis(row.RecordedAt),
			Payload:    payload,
			PrevHash:   row.PrevHash,
			Hash:       row.Hash,
		})
	}
	return entries, nil
}

// chainHash covers every stored field except seq and the hash itself.
func chainHash(e AuditEntry) string {
	h := sha256.New()
	for _, part := range []string{
		e.PrevHash,
		string(e.Collection),
		e.RecordID,
		string(e.Action),
		e.Actor,
		e.DeviceID,
		strconv.FormatInt(toMillis(e.RecordedAt), 10),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	h.Write(e.Payload)
	return hex.EncodeToString(h.Sum(nil))
}
