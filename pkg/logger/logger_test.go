package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	appctx "tillsync/internal/core/context"
)

func TestFromContext_AddsActorFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &Logger{zap.New(core).Sugar()}

	ctx := WithLogger(context.Background(), l)
	ctx = appctx.WithActor(ctx, &appctx.Actor{UserID: "u-7", DeviceID: "till-2", ShopID: "shop-1", SessionID: "sess-9"})
	ctx = appctx.WithTrace(ctx, &appctx.TraceContext{TraceID: "t-1", RequestID: "r-1"})

	Warn(ctx, "debtor not matched", "debtor_name", "Juma")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "u-7", fields["user_id"])
	assert.Equal(t, "till-2", fields["device_id"])
	assert.Equal(t, "sess-9", fields["session_id"])
	assert.Equal(t, "t-1", fields["trace_id"])
	assert.Equal(t, "Juma", fields["debtor_name"])
}

func TestNew_FallsBackToInfoOnBadLevel(t *testing.T) {
	l, err := New(Config{Level: "loud", OutputPaths: []string{"stdout"}})
	require.NoError(t, err)
	assert.True(t, l.Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))
}

func TestWithComponent_TagsLines(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := (&Logger{zap.New(core).Sugar()}).WithComponent("reconcile")

	l.WithContext(context.Background()).Infow("outbox drained", "sent", 2)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "reconcile", fields["component"])
	assert.NotContains(t, fields, "session_id", "no actor in context")
}
