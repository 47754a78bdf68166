package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"tillsync/internal/domain/ledger"
	"tillsync/internal/infrastructure/http/v1/dto"
)

// ResourceOps binds one ledger record type to the service methods that
// manage it. Fields take method expressions, e.g. (*ledger.Service).GetSales.
type ResourceOps[T, In, Patch any] struct {
	List   func(*ledger.Service, context.Context) ([]T, error)
	Get    func(*ledger.Service, context.Context, string) (*T, error)
	Create func(*ledger.Service, context.Context, In) (*T, error)
	Update func(*ledger.Service, context.Context, string, Patch) (*T, error)
	Delete func(*ledger.Service, context.Context, string) error
}

// ResourceHandler serves CRUD for one ledger record type against the
// ledger of the active session.
type ResourceHandler[T, In, Patch any] struct {
	*BaseHandler
	ops ResourceOps[T, In, Patch]
}

// NewResourceHandler creates a CRUD handler.
func NewResourceHandler[T, In, Patch any](base *BaseHandler, ops ResourceOps[T, In, Patch]) *ResourceHandler[T, In, Patch] {
	return &ResourceHandler[T, In, Patch]{BaseHandler: base, ops: ops}
}

// List handles GET /
func (h *ResourceHandler[T, In, Patch]) List(c *gin.Context) {
	s, ok := h.Session(c)
	if !ok {
		return
	}
	items, err := h.ops.List(s.Ledger, c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(items))
}

// Get handles GET /:id
func (h *ResourceHandler[T, In, Patch]) Get(c *gin.Context) {
	s, ok := h.Session(c)
	if !ok {
		return
	}
	item, err := h.ops.Get(s.Ledger, c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, item)
}

// Create handles POST /
func (h *ResourceHandler[T, In, Patch]) Create(c *gin.Context) {
	s, ok := h.Session(c)
	if !ok {
		return
	}
	var in In
	if !h.BindJSON(c, &in) {
		return
	}
	item, err := h.ops.Create(s.Ledger, c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, item)
}

// Update handles PATCH /:id
func (h *ResourceHandler[T, In, Patch]) Update(c *gin.Context) {
	s, ok := h.Session(c)
	if !ok {
		return
	}
	var patch Patch
	if !h.BindJSON(c, &patch) {
		return
	}
	item, err := h.ops.Update(s.Ledger, c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, item)
}

// Delete handles DELETE /:id
func (h *ResourceHandler[T, In, Patch]) Delete(c *gin.Context) {
	s, ok := h.Session(c)
	if !ok {
		return
	}
	if err := h.ops.Delete(s.Ledger, c.Request.Context(), c.Param("id")); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// PaymentHandler records debtor and creditor settlements.
type PaymentHandler struct {
	*BaseHandler
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(base *BaseHandler) *PaymentHandler {
	return &PaymentHandler{BaseHandler: base}
}

// DebtorPayment handles POST /debtors/:id/payments
func (h *PaymentHandler) DebtorPayment(c *gin.Context) {
	s, ok := h.Session(c)
	if !ok {
		return
	}
	var in ledger.PaymentInput
	if !h.BindJSON(c, &in) {
		return
	}
	d, err := s.Ledger.RecordPayment(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, d)
}

// CreditorPayment handles POST /creditors/:id/payments
func (h *PaymentHandler) CreditorPayment(c *gin.Context) {
	s, ok := h.Session(c)
	if !ok {
		return
	}
	var in ledger.PaymentInput
	if !h.BindJSON(c, &in) {
		return
	}
	cr, err := s.Ledger.RecordCreditorPayment(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cr)
}

// RepaymentDate handles PUT /debtors/:id/repayment-date
func (h *PaymentHandler) RepaymentDate(c *gin.Context) {
	s, ok := h.Session(c)
	if !ok {
		return
	}
	var req dto.RepaymentDateRequest
	if !h.BindJSON(c, &req) {
		return
	}
	d, err := s.Ledger.SetRepaymentDueDate(c.Request.Context(), c.Param("id"), req.DueDate)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, d)
}
