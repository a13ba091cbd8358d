package llm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRateLimited indicates the provider rejected the call for quota
	// or rate reasons. Retryable.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnavailable indicates a transient provider-side failure. Retryable.
	ErrUnavailable = errors.New("provider unavailable")

	// ErrTimeout indicates the call exceeded its deadline. Retryable on a
	// fallback provider, not on the same one.
	ErrTimeout = errors.New("request timeout")

	// ErrInvalidRequest indicates the request itself was rejected.
	// Never retryable.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrAllProvidersFailed indicates every client in the fallback chain
	// failed.
	ErrAllProvidersFailed = errors.New("all providers failed")
)

// classify maps a raw provider error onto the package's typed errors so
// callers can branch with errors.Is instead of string matching.
func classify(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case containsAny(msg, "rate limit", "quota exceeded", "429", "resource exhausted"):
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case containsAny(msg, "timeout", "deadline exceeded", "context canceled"):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case containsAny(msg, "500", "502", "503", "504", "unavailable", "connection reset", "temporary"):
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	case containsAny(msg, "invalid", "400", "unsupported"):
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	default:
		return err
	}
}

// retryable reports whether a classified error is worth retrying on the
// same provider.
func retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable)
}

// containsAny checks if s contains any of the substrings (case-insensitive).
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}
