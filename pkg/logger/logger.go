// Package logger is the till's structured logger. Every line written through
// WithContext names the device and cashier session it came from, so logs
// shipped from many tills can be told apart.
package logger

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appctx "tillsync/internal/core/context"
)

// Logger is a zap SugaredLogger that knows how to read till context.
type Logger struct {
	*zap.SugaredLogger
}

type loggerKey struct{}

// Config selects level and output. Level is one of debug, info, warn, error;
// anything else means info.
type Config struct {
	Level       string
	Development bool
	OutputPaths []string
}

// New builds a logger. Development mode uses the colored console encoder.
func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if len(cfg.OutputPaths) > 0 {
		zc.OutputPaths = cfg.OutputPaths
	}

	zl, err := zc.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &Logger{zl.Sugar()}, nil
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{zap.NewNop().Sugar()}
}

var (
	defaultOnce   sync.Once
	defaultLogger *Logger
)

// Default is a production logger on stdout, used when nothing was injected.
func Default() *Logger {
	defaultOnce.Do(func() {
		zc := zap.NewProductionConfig()
		zc.OutputPaths = []string{"stdout"}
		zl, err := zc.Build(zap.AddCallerSkip(1))
		if err != nil {
			zl = zap.NewNop()
		}
		defaultLogger = &Logger{zl.Sugar()}
	})
	return defaultLogger
}

// WithContext attaches the request trace and the till attribution found in
// ctx: device, shop, cashier and session.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	sugar := l.SugaredLogger
	if tr := appctx.GetTrace(ctx); tr != nil {
		sugar = sugar.With("trace_id", tr.TraceID, "request_id", tr.RequestID)
	}
	if a := appctx.GetActor(ctx); a != nil {
		sugar = sugar.With(
			"device_id", a.DeviceID,
			"shop_id", a.ShopID,
			"user_id", a.UserID,
			"session_id", a.SessionID,
		)
	}
	return &Logger{sugar}
}

// WithComponent tags every line with the subsystem writing it
// (reconcile, session, cashday, ...).
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{l.SugaredLogger.With("component", name)}
}

// WithLogger stores l in ctx for code that has no logger injected.
func WithLogger(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the logger stored in ctx, or Default, with the till
// attribution of ctx attached.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey{}).(*Logger); ok {
		return l.WithContext(ctx)
	}
	return Default().WithContext(ctx)
}

func Debug(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Debugw(msg, keysAndValues...)
}

func Warn(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Warnw(msg, keysAndValues...)
}

func Error(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Errorw(msg, keysAndValues...)
}
