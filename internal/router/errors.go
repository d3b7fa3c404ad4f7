package router

import (
	"errors"
	"fmt"
)

// ErrNoBackendAvailable is matched by every NoBackendAvailableError via errors.Is
var ErrNoBackendAvailable = errors.New("no backend available")

// NoBackendAvailableError is returned when no enabled backend of any kind exists
type NoBackendAvailableError struct {
	Target string
	Reason string
}

// Error implements error
func (e *NoBackendAvailableError) Error() string {
	return fmt.Sprintf("no backend available for %s: %s", e.Target, e.Reason)
}

// Unwrap lets errors.Is match ErrNoBackendAvailable
func (e *NoBackendAvailableError) Unwrap() error {
	return ErrNoBackendAvailable
}
