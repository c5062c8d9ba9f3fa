package llm

import (
	"errors"
	"fmt"
)

// ErrRateLimited is returned when the provider rejected the call with a
// 429. Retryable after backoff.
var ErrRateLimited = errors.New("llm provider rate limited")

// ProviderError wraps a 5xx or transport-level failure from the provider.
// Retryable.
type ProviderError struct {
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm provider error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("llm provider error: %v", e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// InvalidRequestError wraps a non-429 4xx from the provider. The request
// itself is malformed; retrying the same payload cannot succeed.
type InvalidRequestError struct {
	StatusCode int
	Err        error
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("llm request rejected (status %d): %v", e.StatusCode, e.Err)
}

func (e *InvalidRequestError) Unwrap() error { return e.Err }

// IsRetryable reports whether the completion error is worth retrying.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var pe *ProviderError
	return errors.As(err, &pe)
}
