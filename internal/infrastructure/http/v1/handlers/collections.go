package handlers

import (
	"context"
	"encoding/json"
	"io"
	"slices"
	"time"

	"github.com/gin-gonic/gin"

	"tillsync/internal/core/apperror"
	"tillsync/internal/core/entity"
	"tillsync/internal/infrastructure/http/v1/dto"
	"tillsync/internal/reconcile"
)

// CollectionHandler exposes raw collection reads, bulk writes and the
// live snapshot stream.
type CollectionHandler struct {
	*BaseHandler
	streamBuffer int
}

// NewCollectionHandler creates a new collection handler.
func NewCollectionHandler(base *BaseHandler) *CollectionHandler {
	return &CollectionHandler{BaseHandler: base, streamBuffer: reconcile.DefaultSubscriptionBuffer}
}

// SnapshotEvent is one server-sent collection snapshot.
type SnapshotEvent struct {
	Collection string            `json:"collection"`
	At         time.Time         `json:"at"`
	Items      []json.RawMessage `json:"items"`
}

func (h *CollectionHandler) collection(c *gin.Context) (entity.Collection, bool) {
	coll, err := entity.ParseCollection(c.Param("name"))
	if err != nil {
		h.Error(c, apperror.NewValidation(err.Error()).WithDetail("field", "name"))
		return "", false
	}
	return coll, true
}

// List handles GET /collections/:name
// The first read of a collection in a session merges the remote copy.
func (h *CollectionHandler) List(c *gin.Context) {
	s, ok := h.Session(c)
	if !ok {
		return
	}
	coll, ok := h.collection(c)
	if !ok {
		return
	}

	docs, err := s.Engine.FetchAndMerge(c.Request.Context(), coll)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(rawItems(docs)))
}

// Replace handles PUT /collections/:name
// The body is the full typed collection; records missing from it are
// removed locally. Cash-day records change only through the day endpoints.
func (h *CollectionHandler) Replace(c *gin.Context) {
	s, ok := h.Session(c)
	if !ok {
		return
	}
	coll, ok := h.collection(c)
	if !ok {
		return
	}

	switch coll {
	case entity.Goods:
		replace(h, c, s.Ledger.SetGoods)
	case entity.Debtors:
		replace(h, c, s.Ledger.SetDebtors)
	case entity.Creditors:
		replace(h, c, s.Ledger.SetCreditors)
	case entity.Suppliers:
		replace(h, c, s.Ledger.SetSuppliers)
	case entity.Sales:
		replace(h, c, s.Ledger.SetSales)
	case entity.Purchases:
		replace(h, c, s.Ledger.SetPurchases)
	case entity.CashEntries:
		replace(h, c, s.Ledger.SetCashEntries)
	default:
		h.Error(c, apperror.NewBusinessRule(apperror.CodeBusinessRule, "collection is read-only").
			WithDetail("collection", string(coll)))
	}
}

func replace[T any](h *CollectionHandler, c *gin.Context, set func(context.Context, []T) error) {
	var items []T
	if !h.BindJSON(c, &items) {
		return
	}
	if err := set(c.Request.Context(), items); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "collection replaced")
}

// Stream handles GET /collections/:name/stream?c=sales
// Every local or remote change of a watched collection is pushed as a
// server-sent event named after the collection. Extra collections may be
// watched with repeated c parameters. The current state of each watched
// collection is sent first.
func (h *CollectionHandler) Stream(c *gin.Context) {
	s, ok := h.Session(c)
	if !ok {
		return
	}
	coll, ok := h.collection(c)
	if !ok {
		return
	}
	watched := []entity.Collection{coll}
	for _, name := range c.QueryArray("c") {
		extra, err := entity.ParseCollection(name)
		if err != nil {
			h.Error(c, apperror.NewValidation(err.Error()).WithDetail("field", "c"))
			return
		}
		if !slices.Contains(watched, extra) {
			watched = append(watched, extra)
		}
	}

	ctx := c.Request.Context()
	sub := s.Engine.Subscribe(h.streamBuffer, watched...)
	defer sub.Cancel()

	first := make([]SnapshotEvent, 0, len(watched))
	for _, coll := range watched {
		docs, err := s.Engine.FetchAndMerge(ctx, coll)
		if err != nil {
			h.Error(c, err)
			return
		}
		first = append(first, SnapshotEvent{Collection: string(coll), At: s.Engine.Clock().Now(), Items: rawItems(docs)})
	}
	for _, ev := range first {
		c.SSEvent(ev.Collection, ev)
	}
	c.Writer.Flush()

	c.Stream(func(io.Writer) bool {
		select {
		case snap, ok := <-sub.C():
			if !ok {
				return false
			}
			c.SSEvent(string(snap.Collection), SnapshotEvent{
				Collection: string(snap.Collection),
				At:         snap.At,
				Items:      rawItems(snap.Docs),
			})
			return true
		case <-ctx.Done():
			return false
		}
	})
}

func rawItems(docs []entity.Document) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Data)
	}
	return out
}
