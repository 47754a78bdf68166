// Package handlers provides HTTP request handlers.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pinger checks the local database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	db       Pinger
	sessions SessionSource
	version  string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db Pinger, sessions SessionSource, version string) *HealthHandler {
	return &HealthHandler{db: db, sessions: sessions, version: version}
}

// Live handles liveness probe (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready handles readiness probe. Only the local store gates readiness:
// the till works offline, so the remote is reported but never fails it.
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.db.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"checks": map[string]string{
				"local_store": "unhealthy: " + err.Error(),
			},
		})
		return
	}

	checks := map[string]any{"local_store": "healthy", "session": "none"}
	if engine, err := h.sessions.Engine(); err == nil {
		checks["session"] = "active"
		if st, err := engine.Status(ctx); err == nil {
			checks["remote_online"] = st.Online
			checks["outbox_pending"] = st.Pending
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"checks": checks,
	})
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"app":     "tillsync",
		"version": h.version,
	})
}
