package security

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tillsync/internal/core/apperror"
	appctx "tillsync/internal/core/context"
)

func TestPINVerifier(t *testing.T) {
	hash, err := HashPIN("4321")
	require.NoError(t, err)

	v := NewPINVerifier(hash)
	assert.NoError(t, v.Verify("4321"))
	assert.True(t, apperror.HasCode(v.Verify("0000"), apperror.CodeForbidden))

	assert.True(t, apperror.HasCode(NewPINVerifier("").Verify("4321"), apperror.CodeForbidden))

	_, err = HashPIN("12")
	assert.True(t, apperror.IsValidation(err))
}

func TestTokenService_IssueValidate(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := NewTokenService(TokenConfig{Secret: "s3cret", Issuer: "tillsync", TTL: time.Hour}, func() time.Time { return now })

	token, exp, err := svc.Issue(appctx.Actor{UserID: "u1", Name: "Ama", Role: appctx.RoleCashier, SessionID: "sess"})
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), exp)

	actor, gotExp, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "Ama", actor.Name)
	assert.Equal(t, "sess", actor.SessionID)
	assert.True(t, gotExp.Equal(exp))

	unverifiedExp, err := ExpiresAt(token)
	require.NoError(t, err)
	assert.True(t, unverifiedExp.Equal(exp))

	now = now.Add(2 * time.Hour)
	_, _, err = svc.Validate(token)
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))

	other := NewTokenService(TokenConfig{Secret: "other", Issuer: "tillsync", TTL: time.Hour}, nil)
	_, _, err = other.Validate(token)
	assert.Error(t, err)
}

func TestEditPolicy(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := NewEditPolicy(2*time.Hour, 30*time.Minute, func() time.Time { return now })

	assert.NoError(t, p.CanModify("sale", "s1", now.Add(-119*time.Minute)))
	assert.True(t, p.Editable(now.Add(-29*time.Minute)))
	assert.False(t, p.Editable(now.Add(-31*time.Minute)))

	err := p.CanModify("sale", "s1", now.Add(-121*time.Minute))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeEditWindowExpired))
}

func TestRequire(t *testing.T) {
	ctx := context.Background()
	assert.True(t, apperror.HasCode(Require(ctx, PermissionRecord), apperror.CodeUnauthorized))

	cashier := appctx.WithActor(ctx, &appctx.Actor{UserID: "u1", Role: appctx.RoleCashier})
	assert.NoError(t, Require(cashier, PermissionCloseDay))
	assert.True(t, apperror.HasCode(Require(cashier, PermissionReopenDay), apperror.CodeForbidden))

	manager := appctx.WithActor(ctx, &appctx.Actor{UserID: "u2", Role: appctx.RoleManager})
	assert.NoError(t, Require(manager, PermissionReopenDay))
}
