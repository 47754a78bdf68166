package security

import (
	"context"
	"slices"

	"tillsync/internal/core/apperror"
	appctx "tillsync/internal/core/context"
)

// Permission names an operation class that roles are granted.
type Permission string

const (
	PermissionRecord      Permission = "record"       // sales, purchases, cash entries
	PermissionEditLedger  Permission = "edit_ledger"  // update/delete inside the edit window
	PermissionManageParty Permission = "manage_party" // debtors, creditors, suppliers, goods
	PermissionOpenDay     Permission = "open_day"
	PermissionCloseDay    Permission = "close_day"
	PermissionReopenDay   Permission = "reopen_day"
	PermissionSync        Permission = "sync" // resync, outbox, drain
)

var rolePermissions = map[string][]Permission{
	appctx.RoleCashier: {
		PermissionRecord,
		PermissionEditLedger,
		PermissionOpenDay,
		PermissionCloseDay,
	},
	appctx.RoleManager: {
		PermissionRecord,
		PermissionEditLedger,
		PermissionManageParty,
		PermissionOpenDay,
		PermissionCloseDay,
		PermissionReopenDay,
		PermissionSync,
	},
}

// Can reports whether actor holds p.
func Can(actor *appctx.Actor, p Permission) bool {
	if actor == nil {
		return false
	}
	return slices.Contains(rolePermissions[actor.Role], p)
}

// Require returns UNAUTHORIZED without an actor and FORBIDDEN without p.
func Require(ctx context.Context, p Permission) error {
	actor := appctx.GetActor(ctx)
	if actor == nil {
		return apperror.NewUnauthorized("authentication required")
	}
	if !Can(actor, p) {
		return apperror.NewForbidden("insufficient permissions").
			WithDetail("required_permission", string(p))
	}
	return nil
}
