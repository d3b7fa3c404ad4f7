package health

import (
	"sync"
	"time"

	"golddust/internal/config"
)

// BreakerState is the state of a circuit breaker
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

// String returns the state name
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker excludes a backend from selection after consecutive probe failures
type CircuitBreaker struct {
	cfg             config.CircuitBreakerConfig
	state           BreakerState
	failures        int
	halfOpenSuccess int
	openedAt        time.Time
	now             func() time.Time
	mu              sync.Mutex
}

// NewCircuitBreaker creates a new CircuitBreaker
func NewCircuitBreaker(cfg config.CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = config.DefaultFailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = config.DefaultRecoveryTimeout
	}
	if cfg.HalfOpenSuccesses <= 0 {
		cfg.HalfOpenSuccesses = config.DefaultHalfOpenSuccesses
	}
	return &CircuitBreaker{
		cfg:   cfg,
		state: BreakerClosed,
		now:   time.Now,
	}
}

// State returns the current state, moving open to half-open once the recovery timeout has passed
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.advance()
	return cb.state
}

// Allow returns true if the backend may be selected
func (cb *CircuitBreaker) Allow() bool {
	return cb.State() != BreakerOpen
}

// RecordSuccess records a successful probe
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.advance()
	switch cb.state {
	case BreakerHalfOpen:
		cb.halfOpenSuccess++
		if cb.halfOpenSuccess >= cb.cfg.HalfOpenSuccesses {
			cb.state = BreakerClosed
			cb.failures = 0
		}
	case BreakerClosed:
		cb.failures = 0
	}
}

// RecordFailure records a failed probe
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.advance()
	switch cb.state {
	case BreakerClosed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.trip()
		}
	case BreakerHalfOpen:
		cb.trip()
	}
}

// advance moves an open breaker to half-open after the recovery timeout; caller holds mu
func (cb *CircuitBreaker) advance() {
	if cb.state == BreakerOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.RecoveryTimeout {
		cb.state = BreakerHalfOpen
		cb.halfOpenSuccess = 0
	}
}

func (cb *CircuitBreaker) trip() {
	cb.state = BreakerOpen
	cb.openedAt = cb.now()
	cb.halfOpenSuccess = 0
	cb.failures = 0
}
