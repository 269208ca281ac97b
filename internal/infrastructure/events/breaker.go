package events

import (
	"sync/atomic"
	"time"
)

const (
	circuitClosed = iota
	circuitOpen
	circuitHalfOpen
)

// CircuitBreaker guards the audit repository: sustained store failures open
// the circuit and the publisher drops entries fast instead of queueing work
// that cannot be persisted. After resetTimeout a single probe is let
// through; success closes the circuit again.
type CircuitBreaker struct {
	state        atomic.Int32
	failures     atomic.Int64
	lastFailTime atomic.Int64

	failureThreshold int64
	resetTimeout     time.Duration
}

// NewCircuitBreaker creates a breaker that opens after failureThreshold
// consecutive failures and probes again after resetTimeout
func NewCircuitBreaker(failureThreshold int64, resetTimeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 10
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
	}
}

// Allow reports whether a request may proceed
func (b *CircuitBreaker) Allow() bool {
	switch b.state.Load() {
	case circuitClosed:
		return true

	case circuitOpen:
		lastFail := b.lastFailTime.Load()
		if time.Since(time.Unix(lastFail, 0)) > b.resetTimeout {
			if b.state.CompareAndSwap(circuitOpen, circuitHalfOpen) {
				b.failures.Store(0)
			}
			return true
		}
		return false

	case circuitHalfOpen:
		// One probe at a time while half-open
		return b.failures.Load() == 0

	default:
		return false
	}
}

// RecordFailure counts a failure and opens the circuit at the threshold
func (b *CircuitBreaker) RecordFailure() {
	failures := b.failures.Add(1)
	b.lastFailTime.Store(time.Now().Unix())

	switch b.state.Load() {
	case circuitClosed:
		if failures >= b.failureThreshold {
			b.state.CompareAndSwap(circuitClosed, circuitOpen)
		}
	case circuitHalfOpen:
		b.state.Store(circuitOpen)
	}
}

// RecordSuccess resets failures and closes a half-open circuit
func (b *CircuitBreaker) RecordSuccess() {
	if b.state.Load() == circuitHalfOpen {
		b.state.CompareAndSwap(circuitHalfOpen, circuitClosed)
	}
	b.failures.Store(0)
}

// StateName returns the breaker state for diagnostics
func (b *CircuitBreaker) StateName() string {
	switch b.state.Load() {
	case circuitClosed:
		return "closed"
	case circuitOpen:
		return "open"
	case circuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
