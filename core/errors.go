package core

import (
	"context"
	"errors"
	"fmt"
)

// Standard sentinel errors for comparison using errors.Is()
// These are generic errors that can be wrapped with additional context
var (
	// Session state errors
	ErrBusy      = errors.New("another operation is in progress")
	ErrNotLoaded = errors.New("session not loaded")

	// Purchase eligibility errors
	ErrEmptyCart           = errors.New("cart is empty")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrProductNotFound     = errors.New("product not found")

	// HTTP/Network errors
	ErrRequestFailed      = errors.New("request failed")
	ErrMalformedResponse  = errors.New("malformed response body")
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
	ErrTimeout            = errors.New("operation timeout")
)

// ServiceError is the single error kind for every remote-call failure.
// It records which operation failed and the HTTP status when one was
// received; the underlying transport or decode error is wrapped and
// reachable through errors.Is/As. No operation produces a different
// error type depending on the status code.
type ServiceError struct {
	Op     string // Operation that failed (e.g., "client.InsertCoin")
	Status int    // HTTP status code, 0 when the request never completed
	Err    error  // Underlying error for wrapping
}

// Error returns the string representation of the error
func (e *ServiceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is/As
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a ServiceError for the given operation.
func NewServiceError(op string, status int, err error) *ServiceError {
	return &ServiceError{Op: op, Status: status, Err: err}
}

// IsRemote reports whether err originated from a remote call.
func IsRemote(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}

// IsBusy reports whether err is the single-flight rejection.
func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}

// IsStuck reports whether err indicates a call that never settled in time.
// These are the failures that mark the session degraded.
func IsStuck(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
