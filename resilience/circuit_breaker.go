// Package resilience provides the circuit breaker used by the vending
// client transport. There is deliberately no retry helper here: failed
// operations surface to the user and are retried only by explicit intent.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/vendline/vendline/core"
)

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	// StateClosed allows all requests through
	StateClosed CircuitState = iota
	// StateOpen blocks all requests
	StateOpen
	// StateHalfOpen allows limited requests for testing
	StateHalfOpen
)

// String returns the string representation of the state
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker tracks consecutive failures and fails fast once a
// threshold is reached. After SleepWindow it admits a limited number of
// probe requests; a probe success closes the circuit, a probe failure
// reopens it.
type CircuitBreaker struct {
	name   string
	config core.CircuitBreakerConfig
	logger core.Logger

	mu              sync.Mutex
	state           CircuitState
	failures        int
	halfOpenInUse   int
	halfOpenSuccess int
	openedAt        time.Time
}

// NewCircuitBreaker creates a breaker with the given thresholds.
func NewCircuitBreaker(name string, config core.CircuitBreakerConfig, logger core.Logger) *CircuitBreaker {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if config.Threshold <= 0 {
		config.Threshold = 5
	}
	if config.SleepWindow <= 0 {
		config.SleepWindow = 30 * time.Second
	}
	if config.HalfOpenRequests <= 0 {
		config.HalfOpenRequests = 3
	}
	return &CircuitBreaker{
		name:   name,
		config: config,
		logger: logger,
		state:  StateClosed,
	}
}

// Allow reports whether a request may proceed, transitioning
// open -> half-open when the sleep window has elapsed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(cb.openedAt) >= cb.config.SleepWindow {
			cb.transition(StateHalfOpen)
			cb.halfOpenInUse = 1
			return true
		}
		return false
	case StateHalfOpen:
		if cb.halfOpenInUse < cb.config.HalfOpenRequests {
			cb.halfOpenInUse++
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess notes a successful request.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.halfOpenSuccess++
		if cb.halfOpenSuccess >= cb.config.HalfOpenRequests {
			cb.transition(StateClosed)
		}
	}
}

// RecordFailure notes a failed request.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.config.Threshold {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		cb.transition(StateOpen)
	}
}

// Execute runs fn with breaker protection. If the circuit is open it
// returns core.ErrCircuitBreakerOpen without invoking fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !cb.Allow() {
		return core.ErrCircuitBreakerOpen
	}
	if err := fn(); err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}

// GetState returns the current state as a string.
func (cb *CircuitBreaker) GetState() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state.String()
}

// Reset manually closes the circuit and clears all counts.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
}

// transition moves to a new state. Caller holds cb.mu.
func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to
	cb.failures = 0
	cb.halfOpenInUse = 0
	cb.halfOpenSuccess = 0
	if to == StateOpen {
		cb.openedAt = time.Now()
	}
	if from != to {
		cb.logger.Warn("Circuit breaker state change", map[string]interface{}{
			"operation": "circuit_state_change",
			"breaker":   cb.name,
			"from":      from.String(),
			"to":        to.String(),
		})
	}
}
