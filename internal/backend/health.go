package backend

import (
	"errors"
	"fmt"
	"time"
)

// Health is the health record of a single backend instance.
// Records are values: a new one is built for every snapshot.
type Health struct {
	Name        string  `json:"name" yaml:"name"`
	Kind        Kind    `json:"kind" yaml:"kind"`
	LatencyMs   float64 `json:"latencyMs" yaml:"latencyMs"`
	FailureRate float64 `json:"failureRate" yaml:"failureRate"`
	Enabled     bool    `json:"enabled" yaml:"enabled"`
}

// Snapshot is a point-in-time view of every known backend instance
type Snapshot struct {
	Backends []Health  `json:"backends" yaml:"backends"`
	TakenAt  time.Time `json:"takenAt" yaml:"takenAt"`
}

// Choice is the result of a selection: the target and an owned copy of the chosen backend
type Choice struct {
	Target  string `json:"target" yaml:"target"`
	Backend Health `json:"backend" yaml:"backend"`
}

// Candidates returns copies of the enabled records of the given kind, in snapshot order
func (s Snapshot) Candidates(kind Kind) []Health {
	result := make([]Health, 0, len(s.Backends))
	for _, b := range s.Backends {
		if b.Enabled && b.Kind == kind {
			result = append(result, b)
		}
	}
	return result
}

// Get returns the record with the given name
func (s Snapshot) Get(name string) (Health, bool) {
	for _, b := range s.Backends {
		if b.Name == name {
			return b, true
		}
	}
	return Health{}, false
}

// Validate checks name uniqueness and value ranges
func (s Snapshot) Validate() error {
	names := make(map[string]bool, len(s.Backends))
	var errs []error
	for i, b := range s.Backends {
		if b.Name == "" {
			errs = append(errs, fmt.Errorf("backend[%d]: name is required", i))
		} else if names[b.Name] {
			errs = append(errs, fmt.Errorf("backend[%d]: duplicate name '%s'", i, b.Name))
		}
		names[b.Name] = true

		if b.LatencyMs < 0 {
			errs = append(errs, fmt.Errorf("backend '%s': latency must be non-negative", b.Name))
		}
		if b.FailureRate < 0 || b.FailureRate > 1 {
			errs = append(errs, fmt.Errorf("backend '%s': failure rate must be in [0, 1]", b.Name))
		}
	}
	return errors.Join(errs...)
}
