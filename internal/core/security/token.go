package security

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tillsync/internal/core/apperror"
	appctx "tillsync/internal/core/context"
)

// TokenConfig holds session token configuration.
type TokenConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// DefaultTokenConfig returns a config lasting one shop shift.
func DefaultTokenConfig(secret string) TokenConfig {
	return TokenConfig{
		Secret: secret,
		Issuer: "tillsync",
		TTL:    12 * time.Hour,
	}
}

// Claims represents session token claims.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string `json:"uid"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role"`
	DeviceID  string `json:"dev,omitempty"`
	ShopID    string `json:"shop,omitempty"`
	SessionID string `json:"sid"`
}

// TokenService issues and validates session tokens.
type TokenService struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenService creates a token service. now defaults to time.Now.
func NewTokenService(config TokenConfig, now func() time.Time) *TokenService {
	if now == nil {
		now = time.Now
	}
	return &TokenService{config: config, now: now}
}

// Issue signs a token for actor and returns it with its expiry.
func (s *TokenService) Issue(actor appctx.Actor) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.config.TTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   actor.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID:    actor.UserID,
		Name:      actor.Name,
		Role:      actor.Role,
		DeviceID:  actor.DeviceID,
		ShopID:    actor.ShopID,
		SessionID: actor.SessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate checks signature and expiry and returns the actor it names.
func (s *TokenService) Validate(tokenString string) (*appctx.Actor, time.Time, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithTimeFunc(s.now), jwt.WithIssuer(s.config.Issuer))
	if err != nil {
		return nil, time.Time{}, apperror.NewUnauthorized("invalid or expired session token").WithCause(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, time.Time{}, apperror.NewUnauthorized("invalid session token claims")
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return &appctx.Actor{
		UserID:    claims.UserID,
		Name:      claims.Name,
		Role:      claims.Role,
		DeviceID:  claims.DeviceID,
		ShopID:    claims.ShopID,
		SessionID: claims.SessionID,
	}, expiresAt, nil
}

// ExpiresAt reads the expiry of a token without verifying it. The remote
// store credential is checked this way: the remote verifies the signature,
// the till only needs to know when to stop trying.
func ExpiresAt(tokenString string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, &claims); err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}
