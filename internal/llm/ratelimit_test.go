package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tribunal/internal/llm/transport"
)

func TestRateLimitAllowsBurst(t *testing.T) {
	mw := newRateLimitMiddleware(RateLimitConfig{RequestsPerSecond: 1, Burst: 3})

	var calls int
	handler := mw(transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		calls++
		return &transport.Response{}, nil
	}))

	for i := 0; i < 3; i++ {
		_, err := handler.Handle(context.Background(), &transport.Request{Provider: "ollama"})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls)
}

func TestRateLimitBlocksUntilContextDone(t *testing.T) {
	mw := newRateLimitMiddleware(RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1})

	handler := mw(transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		return &transport.Response{}, nil
	}))

	_, err := handler.Handle(context.Background(), &transport.Request{Provider: "ollama"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = handler.Handle(ctx, &transport.Request{Provider: "ollama"})
	assert.Error(t, err, "second call should block past the deadline")
}

func TestRateLimitersArePerProvider(t *testing.T) {
	limiters := newProviderLimiters(RateLimitConfig{RequestsPerSecond: 1, Burst: 1})

	ollama := limiters.get("ollama")
	openai := limiters.get("openai")
	assert.NotSame(t, ollama, openai)
	assert.Same(t, ollama, limiters.get("ollama"))
}
