package providers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ahrav/go-tribunal/internal/llm/transport"
)

// Config holds per-provider connection settings.
type Config struct {
	// Endpoint is the provider base URL; adapters apply their defaults
	// when empty.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// APIKey authenticates against hosted providers. Unused by Ollama.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// Router maps provider names to adapters. Built once at client construction
// and read-only afterwards.
type Router struct {
	adapters map[string]transport.Adapter
}

// NewRouter builds a router with adapters for every configured provider.
// Unconfigured providers get default settings, so a bare router still
// routes to a local Ollama daemon.
func NewRouter(configs map[string]Config) *Router {
	r := &Router{adapters: make(map[string]transport.Adapter, 2)}
	r.adapters[ProviderOllama] = NewOllamaAdapter(configs[ProviderOllama])
	r.adapters[ProviderOpenAI] = NewOpenAIAdapter(configs[ProviderOpenAI])
	return r
}

// Pick returns the adapter for the given provider name.
func (r *Router) Pick(provider string) (transport.Adapter, error) {
	adapter, ok := r.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", transport.ErrUnknownProvider, provider)
	}
	return adapter, nil
}

// newProviderError builds a classified error from a non-200 provider
// response, honoring a Retry-After header when present.
func newProviderError(provider string, httpResp *http.Response, body []byte) *transport.ProviderError {
	provErr := &transport.ProviderError{
		Provider:   provider,
		StatusCode: httpResp.StatusCode,
		Message:    truncate(string(body), 256),
	}

	if after := httpResp.Header.Get("Retry-After"); after != "" {
		if secs, err := strconv.Atoi(after); err == nil && secs > 0 {
			provErr.RetryAfter = time.Duration(secs) * time.Second
		}
	}

	return provErr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
