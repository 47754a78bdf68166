package dto

import (
	"encoding/json"
	"time"

	"tillsync/internal/core/entity"
	"tillsync/internal/infrastructure/storage/sqlite"
)

// DrainResponse reports one manual outbox drain.
type DrainResponse struct {
	Sent    int `json:"sent"`
	Pending int `json:"pending"`
}

// OutboxEntryResponse is a queued remote write.
type OutboxEntryResponse struct {
	Seq        int64     `json:"seq"`
	Op         string    `json:"op"`
	Collection string    `json:"collection"`
	RecordID   string    `json:"recordId"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"lastError,omitempty"`
}

// FromOutboxEntries converts queued entries. Payloads are left out.
func FromOutboxEntries(entries []entity.OutboxEntry) []OutboxEntryResponse {
	out := make([]OutboxEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, OutboxEntryResponse{
			Seq:        e.Seq,
			Op:         string(e.Op),
			Collection: string(e.Collection),
			RecordID:   e.RecordID,
			EnqueuedAt: e.EnqueuedAt,
			Attempts:   e.Attempts,
			LastError:  e.LastError,
		})
	}
	return out
}

// AuditEntryResponse is one link of the audit chain.
type AuditEntryResponse struct {
	Seq        int64           `json:"seq"`
	Collection string          `json:"collection"`
	RecordID   string          `json:"recordId"`
	Action     string          `json:"action"`
	Actor      string          `json:"actor"`
	DeviceID   string          `json:"deviceId"`
	RecordedAt time.Time       `json:"recordedAt"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Hash       string          `json:"hash"`
}

// FromAuditEntries converts audit links.
func FromAuditEntries(entries []sqlite.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryResponse{
			Seq:        e.Seq,
			Collection: string(e.Collection),
			RecordID:   e.RecordID,
			Action:     string(e.Action),
			Actor:      e.Actor,
			DeviceID:   e.DeviceID,
			RecordedAt: e.RecordedAt,
			Payload:    e.Payload,
			Hash:       e.Hash,
		})
	}
	return out
}

// VerifyResponse reports an audit chain check.
type VerifyResponse struct {
	Intact   bool  `json:"intact"`
	Checked  int   `json:"checked"`
	BrokenAt int64 `json:"brokenAt,omitempty"`
}

// FromVerifyResult converts a chain check.
func FromVerifyResult(r sqlite.VerifyResult) VerifyResponse {
	return VerifyResponse{Intact: r.BrokenAt == 0, Checked: r.Checked, BrokenAt: r.BrokenAt}
}

// RepaymentDateRequest agrees a settlement date with a debtor.
type RepaymentDateRequest struct {
	DueDate time.Time `json:"dueDate" binding:"required"`
}
