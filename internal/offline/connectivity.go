package offline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/curanote/curanote/internal/events"
)

// MonitorOption is a functional option for configuring a [Monitor].
type MonitorOption func(*Monitor)

// WithProbeInterval sets how often the monitor probes. Default: 15s.
func WithProbeInterval(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		m.interval = d
	}
}

// WithMonitorLogger sets the logger. Default: [slog.Default].
func WithMonitorLogger(logger *slog.Logger) MonitorOption {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// Monitor probes backend liveness periodically and publishes a
// [events.ConnectionChanged] on every transition. The queues subscribe to
// flush immediately on reconnect instead of waiting out their tickers.
type Monitor struct {
	probe    func(ctx context.Context) error
	bus      *events.Bus
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	online bool
	known  bool
}

// NewMonitor returns a [Monitor] using probe to decide liveness.
func NewMonitor(probe func(ctx context.Context) error, bus *events.Bus, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		probe:    probe,
		bus:      bus,
		interval: 15 * time.Second,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Online reports the last observed state. False until the first probe
// completed.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Check probes once and publishes an event if the state changed.
func (m *Monitor) Check(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	err := m.probe(probeCtx)
	cancel()
	online := err == nil

	m.mu.Lock()
	changed := !m.known || online != m.online
	m.online = online
	m.known = true
	m.mu.Unlock()

	if changed {
		m.logger.Info("connectivity changed", "online", online)
		m.bus.Publish(events.ConnectionChanged{Online: online, At: time.Now().UTC()})
	}
	return online
}

// Run probes until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
