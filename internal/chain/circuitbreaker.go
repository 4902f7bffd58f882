package chain

import (
	"sync"
	"time"
)

// CircuitBreakerState mirrors the three states from the teacher's own
// circuit breaker (stellar-live-source/server/server.go).
type CircuitBreakerState string

const (
	CircuitClosed   CircuitBreakerState = "closed"
	CircuitOpen     CircuitBreakerState = "open"
	CircuitHalfOpen CircuitBreakerState = "half-open"
)

// CircuitBreaker trips once failureThreshold failures have been
// recorded (a success while closed does not reset the count) and
// resets to half-open after resetTimeout elapses, same shape as
// the teacher's CircuitBreaker.
type CircuitBreaker struct {
	mu               sync.RWMutex
	failureThreshold int
	resetTimeout     time.Duration
	lastFailureTime  time.Time
	failureCount     int
	state            CircuitBreakerState
}

// NewCircuitBreaker constructs a closed circuit breaker.
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		state:            CircuitClosed,
	}
}

// Allow reports whether an operation may proceed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.RLock()
	state := cb.state
	tripped := time.Since(cb.lastFailureTime) > cb.resetTimeout
	cb.mu.RUnlock()

	if state == CircuitClosed {
		return true
	}
	if state == CircuitOpen && tripped {
		cb.mu.Lock()
		cb.state = CircuitHalfOpen
		cb.mu.Unlock()
		return true
	}
	return false
}

// RecordSuccess closes a half-open breaker and resets the failure
// count, mirroring the teacher's own RecordSuccess: a closed breaker's
// failureCount is left alone, since only a half-open probe's outcome
// should clear it.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitHalfOpen {
		cb.state = CircuitClosed
		cb.failureCount = 0
	}
}

// RecordFailure increments the failure count and opens the breaker
// once failureThreshold is reached.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailureTime = time.Now()
	if cb.failureCount >= cb.failureThreshold {
		cb.state = CircuitOpen
	}
}

// State returns the current state, for health reporting.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}
