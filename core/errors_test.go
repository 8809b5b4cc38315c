package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestServiceErrorFormatting(t *testing.T) {
	err := NewServiceError("client.FetchBalance", 503, ErrRequestFailed)
	want := "client.FetchBalance: status 503: request failed"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}

	err = NewServiceError("client.FetchBalance", 0, errors.New("connection refused"))
	want = "client.FetchBalance: connection refused"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestServiceErrorUnwrap(t *testing.T) {
	inner := fmt.Errorf("%w: socket closed", ErrRequestFailed)
	err := NewServiceError("client.InsertCoin", 500, inner)

	if !errors.Is(err, ErrRequestFailed) {
		t.Error("expected errors.Is to find the wrapped sentinel")
	}

	var serr *ServiceError
	if !errors.As(err, &serr) {
		t.Fatal("expected errors.As to find ServiceError")
	}
	if serr.Op != "client.InsertCoin" {
		t.Errorf("got op %q", serr.Op)
	}
}

func TestIsRemote(t *testing.T) {
	if !IsRemote(NewServiceError("op", 0, ErrRequestFailed)) {
		t.Error("ServiceError should be remote")
	}
	if IsRemote(ErrBusy) {
		t.Error("ErrBusy is not remote")
	}
	wrapped := fmt.Errorf("context: %w", NewServiceError("op", 404, ErrRequestFailed))
	if !IsRemote(wrapped) {
		t.Error("wrapped ServiceError should be remote")
	}
}

func TestIsBusy(t *testing.T) {
	if !IsBusy(ErrBusy) {
		t.Error("expected true for ErrBusy")
	}
	if !IsBusy(fmt.Errorf("wrap: %w", ErrBusy)) {
		t.Error("expected true for wrapped ErrBusy")
	}
	if IsBusy(ErrEmptyCart) {
		t.Error("expected false for unrelated error")
	}
}

func TestIsStuck(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{ErrTimeout, true},
		{context.DeadlineExceeded, true},
		{NewServiceError("op", 0, fmt.Errorf("%w: gave up", ErrTimeout)), true},
		{NewServiceError("op", 500, ErrRequestFailed), false},
		{context.Canceled, false},
		{nil, false},
	}
	for i, tc := range cases {
		if got := IsStuck(tc.err); got != tc.want {
			t.Errorf("case %d: IsStuck(%v) = %v, want %v", i, tc.err, got, tc.want)
		}
	}
}
