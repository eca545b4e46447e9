package llm

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-tribunal/internal/llm/transport"
)

// providerLimiters lazily creates one token bucket per provider. Raters on
// the same provider (the common local-Ollama jury) share a bucket so the
// daemon is never flooded by concurrent scoring.
type providerLimiters struct {
	cfg RateLimitConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newProviderLimiters(cfg RateLimitConfig) *providerLimiters {
	return &providerLimiters{
		cfg:      cfg,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (p *providerLimiters) get(provider string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	limiter, ok := p.limiters[provider]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(p.cfg.RequestsPerSecond), p.cfg.Burst)
		p.limiters[provider] = limiter
	}
	return limiter
}

// newRateLimitMiddleware returns middleware that blocks until the provider's
// token bucket admits the request, or the context is done.
func newRateLimitMiddleware(cfg RateLimitConfig) transport.Middleware {
	limiters := newProviderLimiters(cfg)

	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			if err := limiters.get(req.Provider).Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
			return next.Handle(ctx, req)
		})
	}
}
