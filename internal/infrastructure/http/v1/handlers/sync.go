package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"tillsync/internal/core/apperror"
	"tillsync/internal/core/entity"
	"tillsync/internal/infrastructure/http/v1/dto"
	"tillsync/internal/infrastructure/storage/sqlite"
)

// OutboxLister lists queued remote writes.
type OutboxLister interface {
	Pending(ctx context.Context, limit int) ([]entity.OutboxEntry, error)
}

// AuditReader reads and checks the audit chain.
type AuditReader interface {
	History(ctx context.Context, c entity.Collection, recordID string) ([]sqlite.AuditEntry, error)
	Verify(ctx context.Context) (sqlite.VerifyResult, error)
}

// SyncHandler exposes the reconciliation engine state and manual controls.
type SyncHandler struct {
	*BaseHandler
	outbox OutboxLister
	audit  AuditReader
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(base *BaseHandler, outbox OutboxLister, audit AuditReader) *SyncHandler {
	return &SyncHandler{BaseHandler: base, outbox: outbox, audit: audit}
}

// Status handles GET /sync/status
func (h *SyncHandler) Status(c *gin.Context) {
	s, ok := h.Session(c)
	if !ok {
		return
	}
	st, err := s.Engine.Status(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, st)
}

// Drain handles POST /sync/drain
func (h *SyncHandler) Drain(c *gin.Context) {
	s, ok := h.Session(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	sent, err := s.Engine.DrainOutbox(ctx)
	if err != nil {
		h.Error(c, err)
		return
	}
	st, err := s.Engine.Status(ctx)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.DrainResponse{Sent: sent, Pending: st.Pending})
}

// Resync handles POST /sync/resync
// Every collection merges the remote copy again on its next read.
func (h *SyncHandler) Resync(c *gin.Context) {
	s, ok := h.Session(c)
	if !ok {
		return
	}
	s.Engine.Resync()
	h.Success(c, "collections will be re-read from the remote")
}

// Outbox handles GET /sync/outbox?limit=100
func (h *SyncHandler) Outbox(c *gin.Context) {
	limit := h.ParseIntQuery(c, "limit", 100)
	if limit < 1 || limit > 1000 {
		h.Error(c, apperror.NewValidation("limit must be between 1 and 1000").WithDetail("field", "limit"))
		return
	}
	entries, err := h.outbox.Pending(c.Request.Context(), limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(dto.FromOutboxEntries(entries)))
}

// History handles GET /audit/:collection/:id
func (h *SyncHandler) History(c *gin.Context) {
	coll, err := entity.ParseCollection(c.Param("collection"))
	if err != nil {
		h.Error(c, apperror.NewValidation(err.Error()).WithDetail("field", "collection"))
		return
	}
	entries, err := h.audit.History(c.Request.Context(), coll, c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(dto.FromAuditEntries(entries)))
}

// Verify handles POST /audit/verify
func (h *SyncHandler) Verify(c *gin.Context) {
	res, err := h.audit.Verify(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromVerifyResult(res))
}
