// Package transport defines the request/response types and middleware
// pipeline for rater calls. Raters are plain HTTP text generators; the
// pipeline layers retry, rate limiting, and caching around a core handler
// that speaks to one provider adapter per request.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Request is a normalized rater call: one prompt to one provider/model.
type Request struct {
	// Provider selects the adapter ("ollama", "openai").
	Provider string `json:"provider"`

	// Model is the provider-specific model name.
	Model string `json:"model"`

	// Prompt is the fully rendered prompt text.
	Prompt string `json:"prompt"`

	// Temperature is the sampling temperature.
	Temperature float64 `json:"temperature"`

	// MaxTokens bounds the reply length.
	MaxTokens int `json:"max_tokens"`

	// Timeout bounds this single call; zero means the client default.
	// A rater that exceeds it degrades to fallback scores upstream instead
	// of stalling the batch.
	Timeout time.Duration `json:"timeout"`

	// IdempotencyKey deduplicates the call across activity retries and
	// doubles as the cache lookup key component.
	IdempotencyKey string `json:"idempotency_key"`
}

// Response is the normalized rater reply.
type Response struct {
	// Content is the raw reply text handed to the score extractor.
	Content string `json:"content"`

	// Usage carries transport-level accounting.
	Usage Usage `json:"usage"`

	// FromCache is true when the response was served from the cache
	// without a provider call.
	FromCache bool `json:"from_cache"`
}

// Usage tracks per-call resource consumption.
type Usage struct {
	LatencyMs        int64 `json:"latency_ms"`
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

// Router selects the provider adapter for a request.
type Router interface {
	Pick(provider string) (Adapter, error)
}

// Adapter abstracts one provider's HTTP wire format.
type Adapter interface {
	// Build constructs the provider HTTP request for a normalized Request.
	Build(ctx context.Context, req *Request) (*http.Request, error)

	// Parse extracts a normalized Response from the provider HTTP response.
	Parse(httpResp *http.Response) (*Response, error)

	// Name returns the provider name.
	Name() string
}

// Handler processes rater requests; middleware wraps handlers.
type Handler interface {
	Handle(ctx context.Context, req *Request) (*Response, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, *Request) (*Response, error)

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Middleware transforms a Handler into an enhanced Handler.
type Middleware func(Handler) Handler

// Chain builds a middleware pipeline around a core handler. Middleware
// executes in the order provided, first middleware outermost.
func Chain(h Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// NewHTTPHandler creates the core handler that performs the provider HTTP
// call through the routed adapter.
func NewHTTPHandler(client *http.Client, router Router) Handler {
	return &httpHandler{client: client, router: router}
}

type httpHandler struct {
	client *http.Client
	router Router
}

// Handle implements Handler by routing to a provider adapter and executing
// the HTTP exchange with the per-request timeout applied.
func (h *httpHandler) Handle(ctx context.Context, req *Request) (*Response, error) {
	adapter, err := h.router.Pick(req.Provider)
	if err != nil {
		return nil, fmt.Errorf("failed to select provider: %w", err)
	}

	reqCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := adapter.Build(reqCtx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	start := time.Now()
	httpResp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	resp, err := adapter.Parse(httpResp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	resp.Usage.LatencyMs = time.Since(start).Milliseconds()
	return resp, nil
}
