// Package app assembles the till runtime shared by the server, the worker
// and the CLI: local store, remote driver and session manager.
package app

import (
	"context"
	"fmt"

	"tillsync/internal/config"
	"tillsync/internal/core/clock"
	"tillsync/internal/core/security"
	"tillsync/internal/domain/cashday"
	"tillsync/internal/infrastructure/storage/dynamo"
	"tillsync/internal/infrastructure/storage/memory"
	"tillsync/internal/infrastructure/storage/postgres"
	"tillsync/internal/infrastructure/storage/sqlite"
	"tillsync/internal/reconcile"
	"tillsync/internal/session"
	"tillsync/pkg/logger"
)

// App is an assembled till.
type App struct {
	Config   *config.Config
	Log      *logger.Logger
	DB       *sqlite.DB
	Outbox   *sqlite.OutboxRepo
	Audit    *sqlite.AuditLog
	Sessions *session.Manager

	closers []func()
}

// Options select per-binary behaviour.
type Options struct {
	// Background starts the probe/drain monitor and the change feed for
	// every session.
	Background bool
}

// New opens the local store and connects the configured remote driver.
// An unreachable remote is not an error: the till starts offline.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, Log: log}

	db, err := sqlite.Open(cfg.LocalDBPath)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	a.closers = append(a.closers, func() { _ = db.Close() })
	a.DB = db

	txm := sqlite.NewTxManager(db)
	clk := clock.System{}
	a.Outbox = sqlite.NewOutboxRepo(txm)
	if a.Audit, err = sqlite.NewAuditLog(txm, clk.Now); err != nil {
		a.Close()
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	remote, feed, err := a.remote(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	tokenCfg := security.DefaultTokenConfig(cfg.JWTSecret)
	if cfg.SessionTTL > 0 {
		tokenCfg.TTL = cfg.SessionTTL
	}

	var pin cashday.PINVerifier
	if cfg.ManagerPINHash != "" {
		pin = security.NewPINVerifier(cfg.ManagerPINHash)
	}

	a.Sessions = session.NewManager(session.Deps{
		Docs:      sqlite.NewDocumentRepo(txm),
		Outbox:    a.Outbox,
		TxManager: txm,
		Remote:    remote,
		Feed:      feed,
		Clock:     clk,
		Audit:     a.Audit,
		Tokens:    security.NewTokenService(tokenCfg, clk.Now),
		PIN:       pin,
		Logger:    log,
	}, session.Config{
		DeviceID:          cfg.DeviceID,
		ShopID:            cfg.ShopID,
		RemoteTimeout:     cfg.RemoteTimeout,
		Location:          cfg.Location,
		EditWindow:        cfg.EditWindow,
		DisplayEditWindow: cfg.DisplayEditWindow,
		PhoneRegion:       cfg.PhoneRegion,
		Background:        opts.Background,
		ProbeInterval:     cfg.ProbeInterval,
		DrainInterval:     cfg.DrainInterval,
	})

	log.Infow("till assembled",
		"device_id", cfg.DeviceID,
		"local_db", cfg.LocalDBPath,
		"remote_driver", cfg.RemoteDriver)
	return a, nil
}

func (a *App) remote(ctx context.Context) (reconcile.RemoteStore, reconcile.ChangeFeed, error) {
	cfg := a.Config
	switch cfg.RemoteDriver {
	case config.DriverPostgres:
		poolCfg := postgres.DefaultPoolConfig(cfg.RemoteDatabaseURL)
		poolCfg.Lazy = true
		pool, err := postgres.NewPool(ctx, poolCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("remote pool: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			a.Log.Warnw("remote schema not ensured; will retry on next start", "error", err)
		}
		store := postgres.NewDocumentStore(pool)
		return store, store, nil

	case config.DriverDynamoDB:
		client, err := dynamo.NewClient(ctx, cfg.AWSRegion, cfg.DynamoEndpoint)
		if err != nil {
			return nil, nil, fmt.Errorf("dynamodb client: %w", err)
		}
		// DynamoDB has no change feed wired; live updates arrive via hydration.
		return dynamo.NewStore(client, cfg.DynamoTable), nil, nil

	case config.DriverMemory:
		store := memory.New()
		return store, store, nil
	}
	return nil, nil, nil
}

// Close ends the active session and releases stores in reverse order.
func (a *App) Close() {
	if a.Sessions != nil {
		_ = a.Sessions.Logout(context.Background())
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
