package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/vendline/vendline/core"
	"github.com/vendline/vendline/resilience"
)

// BreakerTransport wraps an http.RoundTripper with circuit breaker
// protection. Transport errors and 5xx responses count toward the failure
// threshold; 4xx responses do not, since the server handled the request
// and rejected it for business reasons. When the circuit is open every
// round trip fails fast with core.ErrCircuitBreakerOpen.
type BreakerTransport struct {
	base    http.RoundTripper
	breaker *resilience.CircuitBreaker
}

// NewBreakerTransport creates a circuit-breaking transport. A nil base
// uses http.DefaultTransport.
func NewBreakerTransport(base http.RoundTripper, breaker *resilience.CircuitBreaker) *BreakerTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &BreakerTransport{base: base, breaker: breaker}
}

// RoundTrip implements http.RoundTripper.
func (t *BreakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.breaker.Allow() {
		return nil, core.ErrCircuitBreakerOpen
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		// A caller that gave up is not a backend failure.
		if !errors.Is(err, context.Canceled) {
			t.breaker.RecordFailure()
		}
		return nil, err
	}

	if resp.StatusCode >= 500 {
		t.breaker.RecordFailure()
	} else {
		t.breaker.RecordSuccess()
	}
	return resp, nil
}

// State returns the current circuit state for observability.
func (t *BreakerTransport) State() string {
	return t.breaker.GetState()
}
