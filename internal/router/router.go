package router

import (
	"cmp"
	"slices"

	"github.com/rs/zerolog"

	"golddust/internal/backend"
	"golddust/internal/config"
	"golddust/internal/health"
)

// reasonNoneEnabled is reported when both tiers are empty
const reasonNoneEnabled = "no enabled backends available"

// Router picks a backend for a target: enabled primary relays first,
// enabled fallback exits only when no primary is usable.
type Router struct {
	cfg      config.BackendsConfig
	provider health.Provider
	logger   zerolog.Logger
}

// New creates a new Router; a nil provider means the static catalog
func New(cfg config.BackendsConfig, provider health.Provider, logger zerolog.Logger) *Router {
	if provider == nil {
		provider = health.NewStaticProvider(nil)
	}
	return &Router{
		cfg:      cfg,
		provider: provider,
		logger:   logger.With().Str("component", "router").Logger(),
	}
}

// Status returns the current health snapshot unchanged.
// It never fails today; the error is reserved for providers that do I/O.
func (r *Router) Status() (backend.Snapshot, error) {
	return r.provider.Sample(r.cfg), nil
}

// ChooseBackend returns the best backend for target.
// The target is an opaque label and is never parsed or resolved.
func (r *Router) ChooseBackend(target string) (backend.Choice, error) {
	snapshot := r.provider.Sample(r.cfg)

	for _, kind := range backend.Kinds {
		best, ok := pickFastest(snapshot.Candidates(kind))
		if !ok {
			continue
		}

		r.logger.Debug().
			Str("target", target).
			Str("backend", best.Name).
			Stringer("kind", best.Kind).
			Float64("latencyMs", best.LatencyMs).
			Msg("backend chosen")

		return backend.Choice{
			Target:  target,
			Backend: best,
		}, nil
	}

	r.logger.Debug().Str("target", target).Msg(reasonNoneEnabled)
	return backend.Choice{}, &NoBackendAvailableError{
		Target: target,
		Reason: reasonNoneEnabled,
	}
}

// pickFastest returns the candidate with the lowest latency, ties broken by name
func pickFastest(candidates []backend.Health) (backend.Health, bool) {
	if len(candidates) == 0 {
		return backend.Health{}, false
	}
	slices.SortFunc(candidates, compareCandidates)
	return candidates[0], true
}

// compareCandidates orders by latency ascending, then name, giving a total order
func compareCandidates(a, b backend.Health) int {
	if c := cmp.Compare(a.LatencyMs, b.LatencyMs); c != 0 {
		return c
	}
	return cmp.Compare(a.Name, b.Name)
}
