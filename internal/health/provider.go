package health

import (
	"time"

	"golddust/internal/backend"
	"golddust/internal/config"
)

// Provider produces health snapshots for the router.
// Implementations must not block and must not fail; a backend that cannot be
// measured is reported with degraded health instead.
type Provider interface {
	Sample(cfg config.BackendsConfig) backend.Snapshot
}

// CatalogEntry describes a known backend instance and its baseline health
type CatalogEntry struct {
	Name        string
	Kind        backend.Kind
	LatencyMs   float64
	FailureRate float64
}

// DefaultCatalog returns the built-in backend instances
func DefaultCatalog() []CatalogEntry {
	return []CatalogEntry{
		{Name: "oxen-node-1", Kind: backend.PrimaryRelay, LatencyMs: 55.0, FailureRate: 0.020},
		{Name: "oxen-node-2", Kind: backend.PrimaryRelay, LatencyMs: 70.0, FailureRate: 0.040},
		{Name: "tor-exit-1", Kind: backend.FallbackExit, LatencyMs: 250.0, FailureRate: 0.010},
	}
}

// KindEnabled returns the config toggle that gates the given kind
func KindEnabled(cfg config.BackendsConfig, kind backend.Kind) bool {
	switch kind {
	case backend.PrimaryRelay:
		return cfg.PrimaryEnabled
	case backend.FallbackExit:
		return cfg.FallbackEnabled
	default:
		return false
	}
}

// StaticProvider returns fixed health values for a catalog
type StaticProvider struct {
	catalog []CatalogEntry
	now     func() time.Time
}

// NewStaticProvider creates a StaticProvider; a nil catalog means DefaultCatalog
func NewStaticProvider(catalog []CatalogEntry) *StaticProvider {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	entries := make([]CatalogEntry, len(catalog))
	copy(entries, catalog)
	return &StaticProvider{
		catalog: entries,
		now:     time.Now,
	}
}

// Sample builds a snapshot whose enabled flags come straight from cfg
func (p *StaticProvider) Sample(cfg config.BackendsConfig) backend.Snapshot {
	backends := make([]backend.Health, 0, len(p.catalog))
	for _, e := range p.catalog {
		backends = append(backends, backend.Health{
			Name:        e.Name,
			Kind:        e.Kind,
			LatencyMs:   e.LatencyMs,
			FailureRate: e.FailureRate,
			Enabled:     KindEnabled(cfg, e.Kind),
		})
	}
	return backend.Snapshot{
		Backends: backends,
		TakenAt:  p.now(),
	}
}
