package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"tillsync/internal/infrastructure/http/v1/dto"
	"tillsync/internal/reconcile"
	"tillsync/internal/session"
)

// SessionSource is the part of session.Manager the handlers use.
type SessionSource interface {
	Login(ctx context.Context, in session.LoginInput) (*session.Session, error)
	Logout(ctx context.Context) error
	Engine() (*reconcile.Engine, error)
}

// SessionHandler handles login and logout of the till session.
type SessionHandler struct {
	*BaseHandler
	sessions SessionSource
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(base *BaseHandler, sessions SessionSource) *SessionHandler {
	return &SessionHandler{BaseHandler: base, sessions: sessions}
}

// Login handles POST /session/login
func (h *SessionHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !h.BindJSON(c, &req) {
		return
	}

	s, err := h.sessions.Login(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewLoginResponse(s))
}

// Logout handles POST /session/logout
func (h *SessionHandler) Logout(c *gin.Context) {
	if err := h.sessions.Logout(c.Request.Context()); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Me handles GET /session/me
func (h *SessionHandler) Me(c *gin.Context) {
	s, ok := h.Session(c)
	if !ok {
		return
	}
	h.OK(c, dto.FromSession(s))
}
