// Package context carries request- and session-scoped values: the acting cashier and tracing IDs.
package context

import (
	"context"
)

// Role names recognised by the cash-day and ledger layers.
const (
	RoleCashier = "cashier"
	RoleManager = "manager"
)

// Actor identifies who performs an operation and on which till.
type Actor struct {
	UserID    string
	Name      string
	Role      string
	DeviceID  string
	ShopID    string
	SessionID string
}

type actorContextKey struct{}

// WithActor adds Actor to context.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// GetActor returns Actor from context.
func GetActor(ctx context.Context) *Actor {
	if v, ok := ctx.Value(actorContextKey{}).(*Actor); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.UserID
	}
	return ""
}

// ActorName returns the display name used for attribution fields
// (opened_by, closed_by, recorded_by). Falls back to the user ID, then "unknown".
func ActorName(ctx context.Context) string {
	a := GetActor(ctx)
	switch {
	case a == nil:
		return "unknown"
	case a.Name != "":
		return a.Name
	case a.UserID != "":
		return a.UserID
	}
	return "unknown"
}

// IsManager checks if the acting user holds the manager role.
func IsManager(ctx context.Context) bool {
	a := GetActor(ctx)
	return a != nil && a.Role == RoleManager
}
