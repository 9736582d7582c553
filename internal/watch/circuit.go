package watch

import (
	"sync"
	"time"
)

// CircuitState is the breaker's own three-state machine, distinct from the
// daemon's lifecycle State (§4.13 "Closed → Open on ≥ failure_threshold
// consecutive failures; Open → HalfOpen after timeout_secs; HalfOpen →
// Closed after success_threshold consecutive successes, else → Open").
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig parameterizes the breaker's thresholds.
type CircuitBreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
}

// DefaultCircuitBreakerConfig mirrors the teacher's own circuit breaker
// defaults (internal/errors/circuit.go: 5 failures, 30s reset), adding the
// spec's consecutive-success requirement for leaving HalfOpen.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	}
}

// CircuitBreaker guards storage calls made while processing a batch.
// Structurally the same mutex-guarded state/counter shape as the teacher's
// errors.CircuitBreaker, generalized to require SuccessThreshold
// consecutive successes (not just one) before HalfOpen closes, per §4.13.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu          sync.Mutex
	state       CircuitState
	failures    int
	successes   int
	openedAt    time.Time
}

// NewCircuitBreaker builds a closed breaker with cfg.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg, state: CircuitClosed}
}

// State returns the breaker's current state, resolving Open → HalfOpen
// when the timeout has elapsed.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentLocked()
}

func (cb *CircuitBreaker) currentLocked() CircuitState {
	if cb.state == CircuitOpen && time.Since(cb.openedAt) >= cb.cfg.Timeout {
		cb.state = CircuitHalfOpen
		cb.successes = 0
	}
	return cb.state
}

// Allow reports whether a batch should be processed or dropped (§4.13
// "While Open, batches are dropped (with a warning) until HalfOpen").
func (cb *CircuitBreaker) Allow() bool {
	return cb.State() != CircuitOpen
}

// RecordSuccess registers a successful storage call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentLocked() {
	case CircuitHalfOpen:
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			cb.state = CircuitClosed
			cb.failures = 0
			cb.successes = 0
		}
	default:
		cb.failures = 0
	}
}

// RecordFailure registers a failed storage call.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentLocked() {
	case CircuitHalfOpen:
		cb.state = CircuitOpen
		cb.openedAt = time.Now()
		cb.successes = 0
	default:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.state = CircuitOpen
			cb.openedAt = time.Now()
		}
	}
}
