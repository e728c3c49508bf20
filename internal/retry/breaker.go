package retry

import (
	"sync"
	"time"
)

// BreakerState represents the state of a circuit breaker.
type BreakerState string

const (
	BreakerClosed   BreakerState = "CLOSED"
	BreakerOpen     BreakerState = "OPEN"
	BreakerHalfOpen BreakerState = "HALF_OPEN"
)

// CircuitBreaker suppresses calls to a repeatedly failing prediction system.
// After threshold consecutive failures the circuit opens; after resetInterval
// a single half-open probe is allowed. A successful probe closes the circuit,
// a failed probe reopens it.
type CircuitBreaker struct {
	mu sync.Mutex

	threshold     int
	resetInterval time.Duration

	state               BreakerState
	consecutiveFailures int
	openedAt            time.Time
	probeInFlight       bool

	// now is replaceable for tests.
	now func() time.Time
}

// NewCircuitBreaker creates a closed CircuitBreaker.
// threshold: consecutive failures that open the circuit (<=0 disables the breaker).
// resetInterval: wait before a half-open probe is allowed.
func NewCircuitBreaker(threshold int, resetInterval time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold:     threshold,
		resetInterval: resetInterval,
		state:         BreakerClosed,
		now:           time.Now,
	}
}

// Allow reports whether a call may proceed. In the OPEN state it returns
// false until resetInterval has elapsed, then admits exactly one probe and
// moves to HALF_OPEN.
func (cb *CircuitBreaker) Allow() bool {
	if cb.threshold <= 0 {
		return true
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if cb.now().Sub(cb.openedAt) < cb.resetInterval {
			return false
		}
		cb.state = BreakerHalfOpen
		cb.probeInFlight = true
		return true
	case BreakerHalfOpen:
		// Only one probe at a time.
		if cb.probeInFlight {
			return false
		}
		cb.probeInFlight = true
		return true
	}
	return false
}

// OnSuccess records a successful call, closing the circuit.
func (cb *CircuitBreaker) OnSuccess() {
	if cb.threshold <= 0 {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = BreakerClosed
	cb.consecutiveFailures = 0
	cb.probeInFlight = false
}

// OnFailure records a failed call. A failed half-open probe reopens the
// circuit immediately; in the closed state the circuit opens once the
// consecutive-failure threshold is reached.
func (cb *CircuitBreaker) OnFailure() {
	if cb.threshold <= 0 {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures++
	if cb.state == BreakerHalfOpen || cb.consecutiveFailures >= cb.threshold {
		cb.state = BreakerOpen
		cb.openedAt = cb.now()
		cb.probeInFlight = false
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// BreakerSet holds one CircuitBreaker per prediction system.
type BreakerSet struct {
	mu            sync.Mutex
	threshold     int
	resetInterval time.Duration
	breakers      map[string]*CircuitBreaker
}

// NewBreakerSet creates a BreakerSet whose breakers share one configuration.
func NewBreakerSet(threshold int, resetInterval time.Duration) *BreakerSet {
	return &BreakerSet{
		threshold:     threshold,
		resetInterval: resetInterval,
		breakers:      make(map[string]*CircuitBreaker),
	}
}

// For returns the breaker for the given system, creating it on first use.
func (s *BreakerSet) For(systemID string) *CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	cb, ok := s.breakers[systemID]
	if !ok {
		cb = NewCircuitBreaker(s.threshold, s.resetInterval)
		s.breakers[systemID] = cb
	}
	return cb
}
