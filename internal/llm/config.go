// Package llm provides the resilient client used to call external raters.
// A middleware chain layers retry with exponential backoff, per-provider
// rate limiting, and a success-only Redis response cache around a core HTTP
// handler that speaks each provider's wire format.
//
// The client treats raters as uncontrolled text generators: failures are
// classified retryable or terminal at the transport layer, and anything
// terminal surfaces to the caller, which degrades the affected rater to
// fallback scores rather than failing the evaluation.
package llm

import "time"

// Default client settings.
const (
	defaultHTTPTimeout     = 90 * time.Second
	defaultRetryAttempts   = 3
	defaultInitialInterval = time.Second
	defaultMaxInterval     = 30 * time.Second
	defaultMultiplier      = 2.0
	defaultRatePerSecond   = 2.0
	defaultBurst           = 4
	defaultCacheTTL        = 24 * time.Hour
)

// RetryConfig controls the retry middleware.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int `yaml:"max_attempts"`

	// InitialInterval is the base backoff before the first retry.
	InitialInterval time.Duration `yaml:"initial_interval"`

	// MaxInterval caps the exponential backoff.
	MaxInterval time.Duration `yaml:"max_interval"`

	// Multiplier is the backoff growth factor per attempt.
	Multiplier float64 `yaml:"multiplier"`
}

// RateLimitConfig controls the per-provider token-bucket limiter.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate allowed per provider.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the token-bucket depth per provider.
	Burst int `yaml:"burst"`
}

// CacheConfig controls the Redis response cache. An empty Addr disables
// caching entirely.
type CacheConfig struct {
	// Addr is the Redis address (host:port).
	Addr string `yaml:"addr"`

	// TTL bounds how long successful rater replies are reused.
	TTL time.Duration `yaml:"ttl"`
}

// Config aggregates client settings. Zero values are replaced with defaults
// by NewClient.
type Config struct {
	// HTTPTimeout is the default per-call timeout when a request does not
	// carry its own.
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	// Providers holds per-provider endpoints and credentials, keyed by
	// provider name.
	Providers map[string]ProviderSettings `yaml:"providers"`

	Retry     RetryConfig     `yaml:"retry"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Cache     CacheConfig     `yaml:"cache"`
}

// ProviderSettings configures one provider's connection.
type ProviderSettings struct {
	Endpoint string `yaml:"endpoint,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
}

// DefaultConfig returns a configuration suitable for a local Ollama jury:
// conservative retry, a gentle rate limit, and caching disabled.
func DefaultConfig() *Config {
	return &Config{
		HTTPTimeout: defaultHTTPTimeout,
		Retry: RetryConfig{
			MaxAttempts:     defaultRetryAttempts,
			InitialInterval: defaultInitialInterval,
			MaxInterval:     defaultMaxInterval,
			Multiplier:      defaultMultiplier,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: defaultRatePerSecond,
			Burst:             defaultBurst,
		},
		Cache: CacheConfig{TTL: defaultCacheTTL},
	}
}

// withDefaults fills zero values with the package defaults.
func (c *Config) withDefaults() *Config {
	out := *c
	def := DefaultConfig()
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = def.HTTPTimeout
	}
	if out.Retry.MaxAttempts <= 0 {
		out.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if out.Retry.InitialInterval <= 0 {
		out.Retry.InitialInterval = def.Retry.InitialInterval
	}
	if out.Retry.MaxInterval <= 0 {
		out.Retry.MaxInterval = def.Retry.MaxInterval
	}
	if out.Retry.Multiplier < 1 {
		out.Retry.Multiplier = def.Retry.Multiplier
	}
	if out.RateLimit.RequestsPerSecond <= 0 {
		out.RateLimit.RequestsPerSecond = def.RateLimit.RequestsPerSecond
	}
	if out.RateLimit.Burst <= 0 {
		out.RateLimit.Burst = def.RateLimit.Burst
	}
	if out.Cache.TTL <= 0 {
		out.Cache.TTL = def.Cache.TTL
	}
	return &out
}
