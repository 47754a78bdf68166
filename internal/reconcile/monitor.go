package reconcile

import (
	"context"
	"time"
)

// Monitor keeps the engine's online flag current and drains on a timer.
type Monitor struct {
	engine        *Engine
	probeInterval time.Duration
	drainInterval time.Duration
}

// NewMonitor creates a monitor. Zero intervals default to 15s and 30s.
func NewMonitor(e *Engine, probeInterval, drainInterval time.Duration) *Monitor {
	if probeInterval <= 0 {
		probeInterval = 15 * time.Second
	}
	if drainInterval <= 0 {
		drainInterval = 30 * time.Second
	}
	return &Monitor{engine: e, probeInterval: probeInterval, drainInterval: drainInterval}
}

// Run probes and drains until ctx is done. The first probe runs immediately.
func (m *Monitor) Run(ctx context.Context) {
	probe := time.NewTicker(m.probeInterval)
	defer probe.Stop()
	drain := time.NewTicker(m.drainInterval)
	defer drain.Stop()

	_ = m.engine.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-probe.C:
			_ = m.engine.Probe(ctx)
		case <-drain.C:
			m.engine.kick(ctx)
		}
	}
}
