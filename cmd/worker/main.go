// Package main is the entry point for the headless till sync worker.
// It holds a system session open so the outbox drains, remote changes are
// applied and stale cash days close without the API server running.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tillsync/internal/app"
	"tillsync/internal/config"
	appctx "tillsync/internal/core/context"
	"tillsync/internal/session"
	"tillsync/pkg/logger"
)

const workerUserID = "system:worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Development(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Infow("starting tillsync worker", "device_id", cfg.DeviceID, "remote_driver", cfg.RemoteDriver)

	till, err := app.New(ctx, cfg, log, app.Options{Background: true})
	if err != nil {
		log.Fatalw("failed to assemble till", "error", err)
	}
	defer till.Close()

	worker := NewWorker(till, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker keeps a system session alive and runs housekeeping on it.
type Worker struct {
	till *app.App
	log  *logger.Logger

	rolloverInterval time.Duration
	auditInterval    time.Duration
}

func NewWorker(till *app.App, log *logger.Logger) *Worker {
	return &Worker{
		till:             till,
		log:              log.WithComponent("worker"),
		rolloverInterval: time.Minute,
		auditInterval:    time.Hour,
	}
}

// Run logs in and loops until ctx is done. A session that expires is
// replaced on the next tick.
func (w *Worker) Run(ctx context.Context) {
	rollover := time.NewTicker(w.rolloverInterval)
	defer rollover.Stop()
	audit := time.NewTicker(w.auditInterval)
	defer audit.Stop()

	w.verifyAudit(ctx)
	for {
		s, err := w.session(ctx)
		if err != nil {
			w.log.Errorw("worker session not started", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-rollover.C:
			if s != nil {
				w.closeStaleDays(ctx, s)
			}
		case <-audit.C:
			w.verifyAudit(ctx)
		}
	}
}

func (w *Worker) session(ctx context.Context) (*session.Session, error) {
	if s, err := w.till.Sessions.Current(); err == nil {
		return s, nil
	}
	s, err := w.till.Sessions.Login(ctx, session.LoginInput{
		UserID: workerUserID,
		Name:   "Sync worker",
		Role:   appctx.RoleCashier,
	})
	if err != nil {
		return nil, err
	}
	w.log.Infow("worker session started", "session_id", s.ID, "expires_at", s.ExpiresAt)
	return s, nil
}

func (w *Worker) closeStaleDays(ctx context.Context, s *session.Session) {
	closed, err := s.CashDay.AutoCloseStaleOpenSessions(s.Context(ctx))
	if err != nil {
		w.log.Errorw("auto-close failed", "error", err)
		return
	}
	for _, r := range closed {
		w.log.Infow("stale cash day auto-closed", "business_date", r.BusinessDate)
	}
}

func (w *Worker) verifyAudit(ctx context.Context) {
	res, err := w.till.Audit.Verify(ctx)
	if err != nil {
		w.log.Errorw("audit verification failed", "error", err)
		return
	}
	if res.BrokenAt != 0 {
		w.log.Errorw("audit chain broken", "broken_at", res.BrokenAt, "checked", res.Checked)
		return
	}
	w.log.Debugw("audit chain intact", "checked", res.Checked)
}
