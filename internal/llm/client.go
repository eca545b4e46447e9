package llm

import (
	"context"
	"net/http"

	"github.com/ahrav/go-tribunal/internal/llm/providers"
	"github.com/ahrav/go-tribunal/internal/llm/transport"
)

// Client issues rater calls through the resilience pipeline.
type Client interface {
	// Rate sends one prompt to one rater and returns its raw reply text.
	Rate(ctx context.Context, req *transport.Request) (*transport.Response, error)
}

type client struct {
	handler transport.Handler
}

// NewClient builds the rater client: cache (outermost, when configured),
// then retry, then rate limiting, around the provider HTTP handler. The
// cache sits outside retry so a hit never consumes rate-limit tokens, and
// the limiter sits inside retry so every attempt waits for a token.
func NewClient(cfg *Config) Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg = cfg.withDefaults()

	providerConfigs := make(map[string]providers.Config, len(cfg.Providers))
	for name, settings := range cfg.Providers {
		providerConfigs[name] = providers.Config{
			Endpoint: settings.Endpoint,
			APIKey:   settings.APIKey,
		}
	}
	router := providers.NewRouter(providerConfigs)

	core := transport.NewHTTPHandler(&http.Client{Timeout: cfg.HTTPTimeout}, router)

	middlewares := make([]transport.Middleware, 0, 3)
	if cfg.Cache.Addr != "" {
		middlewares = append(middlewares, newCacheMiddleware(cfg.Cache))
	}
	middlewares = append(middlewares,
		newRetryMiddleware(cfg.Retry),
		newRateLimitMiddleware(cfg.RateLimit),
	)

	return &client{handler: transport.Chain(core, middlewares...)}
}

// Rate implements Client.
func (c *client) Rate(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	return c.handler.Handle(ctx, req)
}
