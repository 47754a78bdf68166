package dto

import (
	"time"

	"tillsync/internal/session"
)

// LoginRequest starts a till session.
type LoginRequest struct {
	UserID string `json:"userId" binding:"required"`
	Name   string `json:"name"`
	Role   string `json:"role" binding:"required,oneof=cashier manager"`
	PIN    string `json:"pin,omitempty"`
}

// ToInput converts to the session manager input.
func (r *LoginRequest) ToInput() session.LoginInput {
	return session.LoginInput{UserID: r.UserID, Name: r.Name, Role: r.Role, PIN: r.PIN}
}

// SessionResponse describes the active session.
type SessionResponse struct {
	SessionID  string    `json:"sessionId"`
	UserID     string    `json:"userId"`
	Name       string    `json:"name,omitempty"`
	Role       string    `json:"role"`
	DeviceID   string    `json:"deviceId"`
	ShopID     string    `json:"shopId,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	AutoClosed []string  `json:"autoClosed,omitempty"`
}

// LoginResponse carries the bearer token of the new session.
type LoginResponse struct {
	AccessToken string          `json:"accessToken"`
	TokenType   string          `json:"tokenType"`
	Session     SessionResponse `json:"session"`
}

// FromSession creates SessionResponse from a live session.
func FromSession(s *session.Session) SessionResponse {
	return SessionResponse{
		SessionID:  s.ID,
		UserID:     s.Actor.UserID,
		Name:       s.Actor.Name,
		Role:       s.Actor.Role,
		DeviceID:   s.Actor.DeviceID,
		ShopID:     s.Actor.ShopID,
		StartedAt:  s.StartedAt,
		ExpiresAt:  s.ExpiresAt,
		AutoClosed: s.AutoClosed,
	}
}

// NewLoginResponse wraps a freshly started session.
func NewLoginResponse(s *session.Session) LoginResponse {
	return LoginResponse{AccessToken: s.Token, TokenType: "Bearer", Session: FromSession(s)}
}
