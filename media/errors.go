// ABOUTME: Error types for external generation-provider failures.
// ABOUTME: APIError carries provider, status code, and trace id; retryability derives from the status code.
package media

import (
	"errors"
	"fmt"
)

// APIError is the uniform error for any external provider failure (image,
// video, speech, lip-sync, LLM). Retryability follows the status code: 5xx
// and 429 are retryable, other 4xx are not. The core never retries these
// itself; the flag is for callers.
type APIError struct {
	Provider   string
	Message    string
	StatusCode int
	TraceID    string
	Err        error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("[%s] %s (status: %d)", e.Provider, e.Message, e.StatusCode)
	if e.TraceID != "" {
		msg += fmt.Sprintf(" [trace: %s]", e.TraceID)
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the failure is worth retrying at a higher layer.
func (e *APIError) IsRetryable() bool {
	if e.StatusCode >= 500 && e.StatusCode < 600 {
		return true
	}
	return e.StatusCode == 429
}

// IsRetryable reports whether err is (or wraps) a retryable APIError.
// Unknown errors are never retryable.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	return false
}
