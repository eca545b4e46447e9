package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tribunal/internal/llm/transport"
)

func fastRetryConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	var calls int
	handler := transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		calls++
		if calls < 3 {
			return nil, &transport.ProviderError{Provider: "ollama", StatusCode: 500, Message: "overloaded"}
		}
		return &transport.Response{Content: "ok"}, nil
	})

	mw := newRetryMiddleware(fastRetryConfig(3))
	resp, err := mw(handler).Handle(context.Background(), &transport.Request{Provider: "ollama"})

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	var calls int
	handler := transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		calls++
		return nil, &transport.ProviderError{Provider: "ollama", StatusCode: 503}
	})

	mw := newRetryMiddleware(fastRetryConfig(3))
	_, err := mw(handler).Handle(context.Background(), &transport.Request{Provider: "ollama"})

	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var provErr *transport.ProviderError
	assert.True(t, errors.As(err, &provErr))
}

func TestRetryTerminalErrorFailsFast(t *testing.T) {
	var calls int
	handler := transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		calls++
		return nil, &transport.ProviderError{Provider: "openai", StatusCode: 401, Message: "bad key"}
	})

	mw := newRetryMiddleware(fastRetryConfig(3))
	_, err := mw(handler).Handle(context.Background(), &transport.Request{Provider: "openai"})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "client errors must not be retried")
}

func TestRetryCancelledContextFailsFast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int
	handler := transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		calls++
		return &transport.Response{}, nil
	})

	mw := newRetryMiddleware(fastRetryConfig(3))
	_, err := mw(handler).Handle(ctx, &transport.Request{})

	require.Error(t, err)
	assert.ErrorIs(t, err, errContextCancelledBeforeRetry)
	assert.Zero(t, calls)
}

func TestBackoffDelayHonorsRetryAfter(t *testing.T) {
	err := &transport.ProviderError{StatusCode: 429, RetryAfter: 250 * time.Millisecond}
	assert.Equal(t, 250*time.Millisecond, backoffDelay(time.Second, err))
}

func TestBackoffDelayJitterWithinInterval(t *testing.T) {
	err := &transport.ProviderError{StatusCode: 500}
	for i := 0; i < 50; i++ {
		delay := backoffDelay(100*time.Millisecond, err)
		assert.GreaterOrEqual(t, delay, time.Duration(0))
		assert.Less(t, delay, 100*time.Millisecond)
	}
}
