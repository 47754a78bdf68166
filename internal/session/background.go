package session

import (
	"context"
	"sync"
	"time"

	"tillsync/internal/reconcile"
)

// workers are the per-session background loops: connectivity probing with
// timed drains, and the remote change feed.
type workers struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (m *Manager) startWorkers(s *Session) {
	if m.deps.Remote == nil || !m.cfg.Background {
		return
	}
	ctx, cancel := context.WithCancel(s.Context(context.Background()))
	w := &workers{cancel: cancel}
	s.workers = w

	monitor := reconcile.NewMonitor(s.Engine, m.cfg.ProbeInterval, m.cfg.DrainInterval)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		monitor.Run(ctx)
	}()

	if m.deps.Feed == nil {
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		m.watch(ctx, s)
	}()
}

// watch keeps the change feed attached, reconnecting after failures.
func (m *Manager) watch(ctx context.Context, s *Session) {
	log := m.log.WithContext(ctx)
	retry := m.cfg.ProbeInterval
	if retry <= 0 {
		retry = 15 * time.Second
	}
	for {
		err := s.Engine.Watch(ctx, m.deps.Feed)
		if ctx.Err() != nil {
			return
		}
		log.Warnw("change feed stopped; reconnecting", "error", err, "retry_in", retry)
		select {
		case <-ctx.Done():
			return
		case <-time.After(retry):
		}
	}
}

func (w *workers) stop() {
	if w == nil {
		return
	}
	w.cancel()
	w.wg.Wait()
}
