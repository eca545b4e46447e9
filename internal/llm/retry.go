package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/ahrav/go-tribunal/internal/llm/transport"
)

// Retry runtime errors.
var (
	errContextCancelledBeforeRetry = errors.New("context cancelled before retry")
	errContextCancelledDuringRetry = errors.New("context cancelled during retry")
)

// retryAfterProvider is implemented by errors that carry a provider
// backpressure hint (e.g. a Retry-After header).
type retryAfterProvider interface {
	GetRetryAfter() time.Duration
}

// newRetryMiddleware returns middleware that retries transient failures with
// exponential backoff and full jitter, respecting provider Retry-After hints.
// Terminal errors (client errors, cancellation) pass through immediately.
func newRetryMiddleware(cfg RetryConfig) transport.Middleware {
	logger := slog.Default().With("component", "retry")

	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", errContextCancelledBeforeRetry, ctx.Err())
			default:
			}

			var lastErr error
			interval := cfg.InitialInterval

			for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
				resp, err := next.Handle(ctx, req)
				if err == nil {
					return resp, nil
				}
				lastErr = err

				if !transport.IsRetryable(err) {
					return nil, err
				}
				if attempt == cfg.MaxAttempts {
					break
				}

				delay := backoffDelay(interval, err)
				logger.Warn("rater call failed, backing off",
					"provider", req.Provider,
					"model", req.Model,
					"attempt", attempt,
					"delay", delay,
					"error", err)

				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return nil, fmt.Errorf("%w: %w", errContextCancelledDuringRetry, ctx.Err())
				}

				interval = time.Duration(float64(interval) * cfg.Multiplier)
				if interval > cfg.MaxInterval {
					interval = cfg.MaxInterval
				}
			}

			return nil, fmt.Errorf("all %d attempts failed: %w", cfg.MaxAttempts, lastErr)
		})
	}
}

// backoffDelay computes the wait before the next attempt: the provider's
// Retry-After hint when present, otherwise full jitter over the current
// interval.
func backoffDelay(interval time.Duration, err error) time.Duration {
	var rap retryAfterProvider
	if errors.As(err, &rap) {
		if after := rap.GetRetryAfter(); after > 0 {
			return after
		}
	}
	if interval <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(interval))) //nolint:gosec // jitter, not crypto
}
