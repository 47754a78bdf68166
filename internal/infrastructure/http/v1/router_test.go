package v1

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tillsync/internal/core/apperror"
	"tillsync/internal/core/clock"
	"tillsync/internal/core/security"
	"tillsync/internal/core/types"
	"tillsync/internal/infrastructure/http/v1/dto"
	"tillsync/internal/infrastructure/storage/memory"
	"tillsync/internal/infrastructure/storage/sqlite"
	"tillsync/internal/session"
	"tillsync/pkg/logger"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "till.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	txm := sqlite.NewTxManager(db)
	clk := clock.NewStepping(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), time.Millisecond)
	audit, err := sqlite.NewAuditLog(txm, clk.Now)
	require.NoError(t, err)
	outbox := sqlite.NewOutboxRepo(txm)

	sessions := session.NewManager(session.Deps{
		Docs:      sqlite.NewDocumentRepo(txm),
		Outbox:    outbox,
		TxManager: txm,
		Remote:    memory.New(),
		Clock:     clk,
		Audit:     audit,
		Tokens:    security.NewTokenService(security.DefaultTokenConfig("test-secret"), clk.Now),
		Logger:    logger.Nop(),
	}, session.Config{DeviceID: "till-1", Location: time.UTC})

	return NewRouter(RouterConfig{
		Sessions: sessions,
		DB:       db,
		Outbox:   outbox,
		Audit:    audit,
		Logger:   logger.Nop(),
		Version:  "test",
	})
}

func call(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, r *gin.Engine, role string) string {
	t.Helper()
	w := call(t, r, http.MethodPost, "/api/v1/session/login", "", map[string]string{
		"userId": "u-" + role, "name": "Grace", "role": role,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp dto.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Code
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)

	assert.Equal(t, http.StatusOK, call(t, r, http.MethodGet, "/health/live", "", nil).Code)

	w := call(t, r, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"session":"none"`)
}

func TestRouter_RequiresSession(t *testing.T) {
	r := newTestRouter(t)

	w := call(t, r, http.MethodGet, "/api/v1/goods", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apperror.CodeUnauthorized, errorCode(t, w))

	w = call(t, r, http.MethodGet, "/api/v1/goods", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := login(t, r, "cashier")
	require.Equal(t, http.StatusNoContent, call(t, r, http.MethodPost, "/api/v1/session/logout", token, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, call(t, r, http.MethodGet, "/api/v1/goods", token, nil).Code)
}

func TestRouter_CashierPermissions(t *testing.T) {
	r := newTestRouter(t)
	token := login(t, r, "cashier")

	w := call(t, r, http.MethodPost, "/api/v1/goods", token, map[string]any{"name": "Rice", "sellingPrice": "4"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperror.CodeForbidden, errorCode(t, w))

	assert.Equal(t, http.StatusForbidden, call(t, r, http.MethodPost, "/api/v1/sync/drain", token, nil).Code)
	assert.Equal(t, http.StatusOK, call(t, r, http.MethodGet, "/api/v1/goods", token, nil).Code)
}

func TestRouter_DayFlow(t *testing.T) {
	r := newTestRouter(t)
	token := login(t, r, "manager")

	w := call(t, r, http.MethodPost, "/api/v1/goods", token, map[string]any{
		"name": "Rice", "sellingPrice": "4", "stockQuantity": 10,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var good struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &good))

	w = call(t, r, http.MethodPost, "/api/v1/cash-days/open", token, map[string]any{"opening_float": "100"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = call(t, r, http.MethodPost, "/api/v1/cash-days/open", token, map[string]any{"opening_float": "100"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperror.CodeAlreadyOpen, errorCode(t, w))

	w = call(t, r, http.MethodPost, "/api/v1/sales", token, map[string]any{
		"items":         []map[string]any{{"goodId": good.ID, "quantity": 2}},
		"paymentMethod": "cash",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = call(t, r, http.MethodGet, "/api/v1/cash-days/2026-03-01/expected", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var expected struct {
		ExpectedCash types.Money `json:"expected_cash"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &expected))
	assert.True(t, expected.ExpectedCash.Equal(types.MustMoney("108")), expected.ExpectedCash.String())

	w = call(t, r, http.MethodPost, "/api/v1/cash-days/close", token, map[string]any{"counted_cash": "108"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"closed"`)

	w = call(t, r, http.MethodGet, "/api/v1/collections/goods", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var goods dto.ListResponse[json.RawMessage]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &goods))
	assert.Equal(t, 1, goods.TotalCount)

	w = call(t, r, http.MethodPut, "/api/v1/collections/dailyCashRecords", token, []any{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = call(t, r, http.MethodGet, "/api/v1/sync/status", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = call(t, r, http.MethodGet, "/api/v1/audit/dailyCashRecords/2026-03-01", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history dto.ListResponse[dto.AuditEntryResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	assert.Equal(t, 2, history.TotalCount)

	w = call(t, r, http.MethodGet, "/api/v1/cash-days/export", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	assert.NotZero(t, w.Body.Len())
}
