package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/agentmesh/component"
	"github.com/kbukum/agentmesh/logger"
)

// Monitor periodically sweeps a Store, demoting silent agents to Stale and
// deleting them once they pass the removal threshold.
type Monitor struct {
	store       *Store
	interval    time.Duration
	staleAfter  time.Duration
	removeAfter time.Duration
	log         *logger.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	lastSweep time.Time
	last      SweepResult
	sweeps    int
}

// ensure Monitor satisfies component.Component
var _ component.Component = (*Monitor)(nil)

// NewMonitor creates a monitor for store. cfg must already be validated.
func NewMonitor(store *Store, cfg Config, log *logger.Logger) *Monitor {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Monitor{
		store:       store,
		interval:    cfg.Interval(),
		staleAfter:  cfg.StaleAfter(),
		removeAfter: cfg.RemoveAfter(),
		log:         log.WithComponent("health-monitor"),
	}
}

// Name returns the component name.
func (m *Monitor) Name() string { return "health-monitor" }

// Start launches the sweep loop. It returns immediately.
func (m *Monitor) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return fmt.Errorf("health monitor already running")
	}

	// The loop outlives the start context; Stop ends it.
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(ctx, m.done)

	m.log.Info("Health monitor started", logger.Fields(
		"interval_s", m.interval.Seconds(),
		"stale_after_s", m.staleAfter.Seconds(),
		"remove_after_s", m.removeAfter.Seconds(),
	))
	return nil
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		m.log.Info("Health monitor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health reports whether the loop is running and what the last sweep did.
func (m *Monitor) Health(_ context.Context) component.Health {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel == nil {
		return component.Health{Name: m.Name(), Status: component.StatusUnhealthy, Message: "not running"}
	}
	if m.sweeps == 0 {
		return component.Health{Name: m.Name(), Status: component.StatusHealthy, Message: "waiting for first sweep"}
	}
	status := component.StatusHealthy
	if m.last.Errors > 0 {
		status = component.StatusDegraded
	}
	return component.Health{
		Name:   m.Name(),
		Status: status,
		Message: fmt.Sprintf("last sweep %s: checked=%d stale=%d removed=%d errors=%d",
			m.lastSweep.UTC().Format(time.RFC3339), m.last.Checked, m.last.Stale, m.last.Removed, m.last.Errors),
	}
}

// SweepNow runs one sweep synchronously.
func (m *Monitor) SweepNow(ctx context.Context) SweepResult {
	res := m.store.Sweep(ctx, m.staleAfter, m.removeAfter)

	m.mu.Lock()
	m.last = res
	m.lastSweep = m.store.now()
	m.sweeps++
	m.mu.Unlock()

	if res.Stale > 0 || res.Removed > 0 || res.Errors > 0 {
		m.log.Info("Health sweep completed", logger.Fields(
			"checked", res.Checked, "stale", res.Stale, "removed", res.Removed, "errors", res.Errors,
		))
	} else {
		m.log.Debug("Health sweep completed", logger.Fields("checked", res.Checked))
	}
	return res
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.safeSweep(ctx)
		}
	}
}

// safeSweep keeps the loop alive if a sweep panics outside the per-record
// recovery.
func (m *Monitor) safeSweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("Health sweep panicked", logger.Fields("panic", fmt.Sprint(r)))
		}
	}()
	m.SweepNow(ctx)
}
