// ABOUTME: Tests for the external-provider error taxonomy and retryability rules.
// ABOUTME: Covers status-code classes, error wrapping, and the package-level IsRetryable helper.
package media

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIErrorRetryability(t *testing.T) {
	cases := []struct {
		status    int
		retryable bool
	}{
		{400, false},
		{401, false},
		{404, false},
		{422, false},
		{429, true},
		{500, true},
		{502, true},
		{503, true},
		{599, true},
		{600, false},
	}
	for _, tc := range cases {
		err := &APIError{Provider: "wavespeed", Message: "boom", StatusCode: tc.status}
		if got := err.IsRetryable(); got != tc.retryable {
			t.Errorf("status %d: IsRetryable() = %v, want %v", tc.status, got, tc.retryable)
		}
	}
}

func TestAPIErrorMessageFormat(t *testing.T) {
	err := &APIError{Provider: "minimax", Message: "timeout", StatusCode: 504, TraceID: "trace-abc"}
	want := "[minimax] timeout (status: 504) [trace: trace-abc]"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestIsRetryableUnwrapsWrappedErrors(t *testing.T) {
	inner := &APIError{Provider: "infinitetalk", Message: "overloaded", StatusCode: 503}
	wrapped := fmt.Errorf("video stage: %w", inner)
	if !IsRetryable(wrapped) {
		t.Error("expected wrapped 503 APIError to be retryable")
	}
	if IsRetryable(errors.New("plain failure")) {
		t.Error("plain errors must not be retryable")
	}
	if IsRetryable(nil) {
		t.Error("nil must not be retryable")
	}
}

func TestAPIErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &APIError{Provider: "wavespeed", Message: "submit failed", StatusCode: 502, Err: cause}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
}
