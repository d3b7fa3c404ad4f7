package history

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"golddust/internal/backend"
)

// Decision is a recorded routing decision
type Decision struct {
	ID      string          `json:"id" yaml:"id"`
	Target  string          `json:"target" yaml:"target"`
	Backend *backend.Health `json:"backend,omitempty" yaml:"backend,omitempty"`
	Error   string          `json:"error,omitempty" yaml:"error,omitempty"`
	At      time.Time       `json:"at" yaml:"at"`
}

// OK returns true if a backend was chosen
func (d Decision) OK() bool {
	return d.Backend != nil
}

// minCleanupInterval bounds how often expired entries are swept
const minCleanupInterval = time.Second

// entry represents a stored decision with expiration
type entry struct {
	decision  Decision
	expiresAt time.Time
}

// Store is an in-memory LRU log of recent decisions with TTL expiry
type Store struct {
	cache *lru.Cache[string, *entry]
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Store holding at most size decisions, each for ttl
func New(size int, ttl time.Duration) (*Store, error) {
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	cache, err := lru.New[string, *entry](size)
	if err != nil {
		return nil, err
	}

	s := &Store{
		cache: cache,
		ttl:   ttl,
		now:   time.Now,
		done:  make(chan struct{}),
	}

	go s.cleanupLoop()

	return s, nil
}

// Record stores the outcome of a selection and returns the stored decision
func (s *Store) Record(target string, choice backend.Choice, err error) Decision {
	d := Decision{
		ID:     uuid.NewString(),
		Target: target,
		At:     s.now(),
	}
	if err != nil {
		d.Error = err.Error()
	} else {
		b := choice.Backend
		d.Backend = &b
	}

	s.mu.Lock()
	s.cache.Add(d.ID, &entry{decision: d, expiresAt: d.At.Add(s.ttl)})
	s.mu.Unlock()

	return d
}

// Get returns a decision by ID
func (s *Store) Get(id string) (Decision, bool) {
	s.mu.RLock()
	e, ok := s.cache.Peek(id)
	s.mu.RUnlock()

	if !ok {
		return Decision{}, false
	}

	if s.now().After(e.expiresAt) {
		s.mu.Lock()
		s.cache.Remove(id)
		s.mu.Unlock()
		return Decision{}, false
	}

	return e.decision, true
}

// Recent returns unexpired decisions, newest first
func (s *Store) Recent() []Decision {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	keys := s.cache.Keys()
	result := make([]Decision, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		e, ok := s.cache.Peek(keys[i])
		if ok && !now.After(e.expiresAt) {
			result = append(result, e.decision)
		}
	}
	return result
}

// Len returns the number of stored decisions, including expired ones not yet removed
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache.Len()
}

// Close stops the cleanup goroutine
func (s *Store) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// cleanupInterval sweeps twice per ttl, but never more often than minCleanupInterval
func cleanupInterval(ttl time.Duration) time.Duration {
	return max(ttl/2, minCleanupInterval)
}

// cleanupLoop periodically removes expired entries
func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval(s.ttl))
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.removeExpired()
		}
	}
}

// removeExpired removes all expired entries
func (s *Store) removeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, key := range s.cache.Keys() {
		e, ok := s.cache.Peek(key)
		if ok && now.After(e.expiresAt) {
			s.cache.Remove(key)
		}
	}
}
