package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"golddust/internal/backend"
	"golddust/internal/config"
)

// Prober measures the round-trip time of a single backend
type Prober interface {
	Probe(ctx context.Context, entry CatalogEntry) (time.Duration, error)
}

// ProberFunc adapts a function to the Prober interface
type ProberFunc func(ctx context.Context, entry CatalogEntry) (time.Duration, error)

// Probe calls f
func (f ProberFunc) Probe(ctx context.Context, entry CatalogEntry) (time.Duration, error) {
	return f(ctx, entry)
}

// CatalogProber reports each entry's catalog latency without touching the network
type CatalogProber struct{}

// Probe returns the catalog latency of the entry
func (CatalogProber) Probe(ctx context.Context, entry CatalogEntry) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return time.Duration(entry.LatencyMs * float64(time.Millisecond)), nil
}

// BackendStats is the published health of one backend
type BackendStats struct {
	Name        string
	Kind        backend.Kind
	LatencyMs   float64
	FailureRate float64
	Breaker     BreakerState
	LastError   string
	LastProbe   time.Time
}

// statsTable is an immutable set of stats, swapped atomically on every probe
type statsTable struct {
	backends  []BackendStats
	updatedAt time.Time
}

// backendState is the mutable per-backend tracking state, guarded by Monitor.mu
type backendState struct {
	entry     CatalogEntry
	latency   *EWMA
	failures  *EWMA
	breaker   *CircuitBreaker
	lastError string
	lastProbe time.Time
}

// Monitor probes backends in the background and serves the latest published snapshot
type Monitor struct {
	states []*backendState
	prober Prober
	cfg    config.HealthConfig
	logger zerolog.Logger
	now    func() time.Time

	current atomic.Pointer[statsTable]
	mu      sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a new Monitor; a nil catalog means DefaultCatalog
func NewMonitor(catalog []CatalogEntry, prober Prober, cfg config.HealthConfig, logger zerolog.Logger) (*Monitor, error) {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if len(catalog) == 0 {
		return nil, errors.New("catalog is empty")
	}
	if prober == nil {
		prober = CatalogProber{}
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = config.DefaultProbeInterval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = config.DefaultProbeTimeout
	}

	baseline := NewStaticProvider(catalog).Sample(config.BackendsConfig{})
	if err := baseline.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Monitor{
		prober: prober,
		cfg:    cfg,
		logger: logger.With().Str("component", "health").Logger(),
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}

	for _, e := range catalog {
		m.states = append(m.states, &backendState{
			entry:    e,
			latency:  NewEWMA(cfg.EWMAAlpha, e.LatencyMs),
			failures: NewEWMA(cfg.EWMAAlpha, e.FailureRate),
			breaker:  NewCircuitBreaker(cfg.CircuitBreaker),
		})
	}

	m.mu.Lock()
	m.publishLocked()
	m.mu.Unlock()

	return m, nil
}

// Start probes every backend once, then keeps probing each one on its own goroutine
func (m *Monitor) Start() {
	m.ProbeOnce(m.ctx)

	for _, s := range m.states {
		m.wg.Add(1)
		go m.monitorBackend(s)
	}

	if m.cfg.StatusLogInterval > 0 {
		m.wg.Add(1)
		go m.logStatus()
	}

	m.logger.Info().
		Int("backends", len(m.states)).
		Dur("interval", m.cfg.ProbeInterval).
		Dur("timeout", m.cfg.ProbeTimeout).
		Msg("health monitor started")
}

// Stop stops all probe loops and waits for them to exit
func (m *Monitor) Stop() {
	m.cancel()
	m.wg.Wait()
	m.logger.Info().Msg("health monitor stopped")
}

// ProbeOnce probes every backend in parallel and waits for all results
func (m *Monitor) ProbeOnce(ctx context.Context) {
	var wg sync.WaitGroup
	for _, s := range m.states {
		wg.Add(1)
		go func(s *backendState) {
			defer wg.Done()
			m.probe(ctx, s)
		}(s)
	}
	wg.Wait()
}

// Sample builds a snapshot from the latest published stats.
// A backend is enabled only if its kind is enabled, its breaker is not open
// and its failure rate is within the configured maximum.
func (m *Monitor) Sample(cfg config.BackendsConfig) backend.Snapshot {
	t := m.current.Load()

	backends := make([]backend.Health, 0, len(t.backends))
	for _, st := range t.backends {
		enabled := KindEnabled(cfg, st.Kind) &&
			st.Breaker != BreakerOpen &&
			st.FailureRate <= m.cfg.MaxFailureRate

		backends = append(backends, backend.Health{
			Name:        st.Name,
			Kind:        st.Kind,
			LatencyMs:   st.LatencyMs,
			FailureRate: st.FailureRate,
			Enabled:     enabled,
		})
	}

	return backend.Snapshot{
		Backends: backends,
		TakenAt:  m.now(),
	}
}

// Stats returns a copy of the latest published stats
func (m *Monitor) Stats() []BackendStats {
	t := m.current.Load()
	result := make([]BackendStats, len(t.backends))
	copy(result, t.backends)
	return result
}

// UpdatedAt returns the time the latest stats were published
func (m *Monitor) UpdatedAt() time.Time {
	return m.current.Load().updatedAt
}

// monitorBackend probes a single backend every ProbeInterval
func (m *Monitor) monitorBackend(s *backendState) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.probe(m.ctx, s)
		}
	}
}

// probe runs one bounded probe and publishes the result.
// A timed-out probe counts as a failure like any other error.
func (m *Monitor) probe(ctx context.Context, s *backendState) {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()

	rtt, err := m.prober.Probe(probeCtx, s.entry)
	if err == nil && probeCtx.Err() != nil {
		err = probeCtx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if ctx.Err() != nil {
		// shutting down, not a backend failure
		return
	}

	s.lastProbe = m.now()
	if err != nil {
		wasAllowed := s.breaker.Allow()
		s.failures.Observe(1)
		s.breaker.RecordFailure()
		s.lastError = err.Error()

		if wasAllowed && !s.breaker.Allow() {
			m.logger.Warn().
				Str("backend", s.entry.Name).
				Err(err).
				Msg("backend probe failures exceeded threshold, marking unhealthy")
		} else {
			m.logger.Debug().Str("backend", s.entry.Name).Err(err).Msg("probe failed")
		}
	} else {
		wasTripped := s.breaker.State() != BreakerClosed
		s.latency.Observe(float64(rtt) / float64(time.Millisecond))
		s.failures.Observe(0)
		s.breaker.RecordSuccess()
		s.lastError = ""

		if wasTripped && s.breaker.State() == BreakerClosed {
			m.logger.Info().Str("backend", s.entry.Name).Msg("backend recovered, marking healthy")
		}
		m.logger.Debug().
			Str("backend", s.entry.Name).
			Dur("rtt", rtt).
			Msg("probe succeeded")
	}

	m.publishLocked()
}

// publishLocked rebuilds the stats table and swaps it in; caller holds mu
func (m *Monitor) publishLocked() {
	backends := make([]BackendStats, 0, len(m.states))
	for _, s := range m.states {
		backends = append(backends, BackendStats{
			Name:        s.entry.Name,
			Kind:        s.entry.Kind,
			LatencyMs:   s.latency.Value(),
			FailureRate: clamp01(s.failures.Value()),
			Breaker:     s.breaker.State(),
			LastError:   s.lastError,
			LastProbe:   s.lastProbe,
		})
	}
	m.current.Store(&statsTable{
		backends:  backends,
		updatedAt: m.now(),
	})
}

// logStatus periodically logs the status of all backends
func (m *Monitor) logStatus() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.StatusLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.logCurrentStatus()
		}
	}
}

// logCurrentStatus logs healthy and unhealthy backends per tier
func (m *Monitor) logCurrentStatus() {
	var healthyPrimary, unhealthyPrimary, healthyFallback, unhealthyFallback []string

	for _, st := range m.Stats() {
		status := fmt.Sprintf("%s(%.1fms)", st.Name, st.LatencyMs)
		healthy := st.Breaker != BreakerOpen && st.FailureRate <= m.cfg.MaxFailureRate

		switch {
		case st.Kind == backend.PrimaryRelay && healthy:
			healthyPrimary = append(healthyPrimary, status)
		case st.Kind == backend.PrimaryRelay:
			unhealthyPrimary = append(unhealthyPrimary, status)
		case healthy:
			healthyFallback = append(healthyFallback, status)
		default:
			unhealthyFallback = append(unhealthyFallback, status)
		}
	}

	m.logger.Info().
		Strs("healthyPrimary", healthyPrimary).
		Strs("unhealthyPrimary", unhealthyPrimary).
		Strs("healthyFallback", healthyFallback).
		Strs("unhealthyFallback", unhealthyFallback).
		Msg("backends status")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
