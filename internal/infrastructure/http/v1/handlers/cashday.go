package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"tillsync/internal/domain/cashday"
	"tillsync/internal/infrastructure/http/v1/dto"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// CashDayHandler drives the cash-day state machine of the active session.
type CashDayHandler struct {
	*BaseHandler
}

// NewCashDayHandler creates a new cash-day handler.
func NewCashDayHandler(base *BaseHandler) *CashDayHandler {
	return &CashDayHandler{BaseHandler: base}
}

// List handles GET /cash-days
func (h *CashDayHandler) List(c *gin.Context) {
	s, ok := h.Session(c)
	if !ok {
		return
	}
	records, err := s.CashDay.GetDailyCashRecords(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(records))
}

// Get handles GET /cash-days/:date
func (h *CashDayHandler) Get(c *gin.Context) {
	s, ok := h.Session(c)
	if !ok {
		return
	}
	rec, err := s.CashDay.GetDailyCashRecord(c.Request.Context(), c.Param("date"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, rec)
}

// Expected handles GET /cash-days/:date/expected
func (h *CashDayHandler) Expected(c *gin.Context) {
	s, ok := h.Session(c)
	if !ok {
		return
	}
	date := c.Param("date")
	amount, err := s.CashDay.CalculateExpectedCash(c.Request.Context(), date)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"business_date": date, "expected_cash": amount})
}

// Open handles POST /cash-days/open
func (h *CashDayHandler) Open(c *gin.Context) {
	s, ok := h.Session(c)
	if !ok {
		return
	}
	var in cashday.OpenDayInput
	if !h.BindJSON(c, &in) {
		return
	}
	rec, err := s.CashDay.OpenDay(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, rec)
}

// Close handles POST /cash-days/close
func (h *CashDayHandler) Close(c *gin.Context) {
	s, ok := h.Session(c)
	if !ok {
		return
	}
	var in cashday.CloseDayInput
	if !h.BindJSON(c, &in) {
		return
	}
	rec, err := s.CashDay.CloseDay(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, rec)
}

// Reopen handles POST /cash-days/:date/reopen
func (h *CashDayHandler) Reopen(c *gin.Context) {
	s, ok := h.Session(c)
	if !ok {
		return
	}
	var in cashday.ReopenDayInput
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &in) {
		return
	}
	in.BusinessDate = c.Param("date")
	rec, err := s.CashDay.ReopenDay(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, rec)
}

// Unlock handles POST /cash-days/:date/unlock
func (h *CashDayHandler) Unlock(c *gin.Context) {
	s, ok := h.Session(c)
	if !ok {
		return
	}
	var in cashday.UnlockInput
	if !h.BindJSON(c, &in) {
		return
	}
	in.BusinessDate = c.Param("date")
	rec, err := s.CashDay.RecordUnlock(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, rec)
}

// Export handles GET /cash-days/export
// The workbook is built in memory so a failure still returns a JSON error.
func (h *CashDayHandler) Export(c *gin.Context) {
	s, ok := h.Session(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := s.CashDay.ExportXLSX(c.Request.Context(), &buf); err != nil {
		h.Error(c, err)
		return
	}
	name := fmt.Sprintf("cash-days-%s.xlsx", s.CashDay.Today())
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
