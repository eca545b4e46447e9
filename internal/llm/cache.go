package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ahrav/go-tribunal/internal/llm/transport"
)

// cacheKeyPrefix versions the cache namespace so a format change never
// replays stale entries.
const cacheKeyPrefix = "tribunal:rater:v1:"

// responseCache stores successful rater replies in Redis. Raters run at
// temperature zero, so identical prompts are expected to produce identical
// scores; caching skips the round trip on re-evaluation of the same instance.
//
// The cache degrades gracefully: Redis failures are logged and the call
// proceeds uncached. Only successful responses are ever stored.
type responseCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func newResponseCache(cfg CacheConfig) *responseCache {
	return &responseCache{
		client: redis.NewClient(&redis.Options{Addr: cfg.Addr}),
		ttl:    cfg.TTL,
		logger: slog.Default().With("component", "rater_cache"),
	}
}

// cacheKey derives a stable key from the fields that determine a rater's
// reply. Temperature and token limits are part of the request identity.
func cacheKey(req *transport.Request) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%g|%d|%s",
		req.Provider, req.Model, req.Temperature, req.MaxTokens, req.Prompt)
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

func (c *responseCache) get(ctx context.Context, key string) (*transport.Response, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache lookup failed, continuing uncached", "error", err)
		}
		return nil, false
	}

	var resp transport.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.logger.Warn("cache entry corrupt, ignoring", "key", key, "error", err)
		return nil, false
	}

	resp.FromCache = true
	return &resp, true
}

func (c *responseCache) put(ctx context.Context, key string, resp *transport.Response) {
	raw, err := json.Marshal(resp)
	if err != nil {
		c.logger.Warn("cache marshal failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache store failed", "key", key, "error", err)
	}
}

// newCacheMiddleware returns read-through cache middleware over Redis.
func newCacheMiddleware(cfg CacheConfig) transport.Middleware {
	cache := newResponseCache(cfg)

	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			key := cacheKey(req)
			if resp, ok := cache.get(ctx, key); ok {
				return resp, nil
			}

			resp, err := next.Handle(ctx, req)
			if err != nil {
				return nil, err
			}

			cache.put(ctx, key, resp)
			return resp, nil
		})
	}
}
