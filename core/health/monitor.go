package health

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"profile-store/core/metrics"
	"profile-store/core/store"

	"go.uber.org/zap"
)

// probeUserID is read by adapters that have no dedicated liveness check.
const probeUserID = "__health_probe__"

// Config controls the probe loop.
type Config struct {
	// Interval between probe cycles. Defaults to 30s.
	Interval time.Duration
	// Timeout for a single probe. Defaults to 5s.
	Timeout time.Duration
}

// Monitor probes adapters and publishes ranked snapshots.
type Monitor struct {
	adapters []store.Adapter
	cfg      Config
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	snapshot atomic.Pointer[Snapshot]
	probeMu  sync.Mutex
}

// NewMonitor creates a monitor. Until the first probe completes every store
// is assumed available.
func NewMonitor(adapters []store.Adapter, cfg Config, logger *zap.Logger, m *metrics.Metrics) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	mon := &Monitor{
		adapters: adapters,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
	initial := make([]Status, 0, len(adapters))
	for _, a := range adapters {
		initial = append(initial, Status{Store: a.Name(), Available: true})
	}
	mon.snapshot.Store(newSnapshot(initial, time.Time{}))
	return mon
}

// Snapshot returns the current health snapshot.
func (m *Monitor) Snapshot() *Snapshot {
	return m.snapshot.Load()
}

// Adapters returns the monitored adapters in registration order.
func (m *Monitor) Adapters() []store.Adapter {
	return append([]store.Adapter(nil), m.adapters...)
}

// Adapter returns the adapter serving name.
func (m *Monitor) Adapter(name store.Name) (store.Adapter, bool) {
	for _, a := range m.adapters {
		if a.Name() == name {
			return a, true
		}
	}
	return nil, false
}

// Run probes immediately and then on every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.ProbeAll(ctx)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ProbeAll(ctx)
		}
	}
}

// ProbeAll probes every adapter concurrently, ranks the results and swaps in
// the new snapshot. Probe failures never escape.
func (m *Monitor) ProbeAll(ctx context.Context) *Snapshot {
	m.probeMu.Lock()
	defer m.probeMu.Unlock()

	prev := m.snapshot.Load()
	results := make([]error, len(m.adapters))

	var wg sync.WaitGroup
	wg.Add(len(m.adapters))
	for i, a := range m.adapters {
		go func(i int, a store.Adapter) {
			defer wg.Done()
			results[i] = m.probe(ctx, a)
		}(i, a)
	}
	wg.Wait()

	now := m.now().UTC()
	statuses := make([]Status, 0, len(m.adapters))
	for i, a := range m.adapters {
		st, _ := prev.Status(a.Name())
		st.Store = a.Name()
		st.LastCheckedAt = now
		if err := results[i]; err != nil {
			st.Available = false
			st.ConsecutiveFailures++
			st.LastError = err.Error()
		} else {
			st.Available = true
			st.ConsecutiveFailures = 0
			st.LastError = ""
		}
		m.metrics.SetHealth(string(st.Store), st.Available, st.ConsecutiveFailures)
		m.logTransition(prev, st, results[i])
		statuses = append(statuses, st)
	}

	next := newSnapshot(statuses, now)
	m.snapshot.Store(next)

	oldPrimary, _ := prev.Primary()
	newPrimary, up := next.Primary()
	if oldPrimary != newPrimary {
		m.logger.Info("Primary store changed",
			zap.String("from", string(oldPrimary)),
			zap.String("to", string(newPrimary)),
			zap.Bool("available", up),
		)
	}
	return next
}

func (m *Monitor) logTransition(prev *Snapshot, st Status, err error) {
	before, ok := prev.Status(st.Store)
	if ok && before.Available == st.Available {
		return
	}
	if st.Available {
		m.logger.Info("Store is available", zap.String("store", string(st.Store)))
		return
	}
	m.logger.Warn("Store is unavailable",
		zap.String("store", string(st.Store)),
		zap.Int("consecutive_failures", st.ConsecutiveFailures),
		zap.Error(err),
	)
}

// probe runs one liveness check, converting panics into failures.
func (m *Monitor) probe(ctx context.Context, a store.Adapter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	if p, ok := a.(store.Pinger); ok {
		return p.Ping(ctx)
	}
	_, err = a.GetProfile(ctx, probeUserID)
	return err
}
