package events

import (
	"sync"
	"time"
)

// CircuitBreaker stops publish attempts to a failing sink for a cooldown so
// a dead broker does not pile up blocked sends.
type CircuitBreaker struct {
	mu sync.Mutex

	threshold int
	cooldown  time.Duration
	now       func() time.Time

	failures  int
	openUntil time.Time
	open      bool
	halfOpen  bool
}

func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow reports whether a call may proceed. After the cooldown exactly one
// trial call is let through (half-open); others are refused until the trial
// records its result.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if !cb.open {
		return true
	}
	if cb.halfOpen || !cb.now().After(cb.openUntil) {
		return false
	}
	cb.halfOpen = true
	return true
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.open = false
	cb.halfOpen = false
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.halfOpen {
		cb.halfOpen = false
		cb.openUntil = cb.now().Add(cb.cooldown)
		return
	}
	cb.failures++
	if cb.failures >= cb.threshold {
		cb.open = true
		cb.openUntil = cb.now().Add(cb.cooldown)
	}
}

func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.open
}
