package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrUnknownProvider indicates no adapter is registered for a provider name.
var ErrUnknownProvider = errors.New("unknown provider")

// ProviderError is a classified failure from a provider HTTP exchange.
// StatusCode drives retry classification; RetryAfter carries the provider's
// backpressure hint when present.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// GetRetryAfter returns the provider's recommended wait before retrying,
// zero when the provider gave no hint.
func (e *ProviderError) GetRetryAfter() time.Duration { return e.RetryAfter }

// IsRetryable reports whether an error is transient enough to retry:
// rate limits, server errors, timeouts, and network failures. Client errors
// and context cancellation are terminal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		switch {
		case provErr.StatusCode == 429:
			return true
		case provErr.StatusCode >= 500:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return false
}
