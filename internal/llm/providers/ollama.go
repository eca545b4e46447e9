// Package providers implements transport adapters for the rater backends:
// Ollama for local model execution and OpenAI-compatible HTTP APIs.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ahrav/go-tribunal/internal/llm/transport"
)

// Provider names recognized by the router.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// OllamaAdapter implements transport.Adapter for a local Ollama daemon.
// It uses the non-streaming /api/chat endpoint.
type OllamaAdapter struct {
	config Config
}

// NewOllamaAdapter creates an Ollama adapter with the default local endpoint
// when none is configured.
func NewOllamaAdapter(cfg Config) *OllamaAdapter {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:11434"
	}
	return &OllamaAdapter{config: cfg}
}

// Name returns the provider name.
func (a *OllamaAdapter) Name() string { return ProviderOllama }

// Build constructs the Ollama chat request for a normalized rater request.
func (a *OllamaAdapter) Build(ctx context.Context, req *transport.Request) (*http.Request, error) {
	body := map[string]any{
		"model": req.Model,
		"messages": []map[string]string{
			{"role": "user", "content": req.Prompt},
		},
		"stream": false,
		"options": map[string]any{
			"temperature": req.Temperature,
			"num_predict": req.MaxTokens,
		},
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.config.Endpoint+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	return httpReq, nil
}

// Parse extracts the reply text and token counts from an Ollama response.
func (a *OllamaAdapter) Parse(httpResp *http.Response) (*transport.Response, error) {
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, newProviderError(ProviderOllama, httpResp, body)
	}

	var resp struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		PromptEvalCount int64 `json:"prompt_eval_count"`
		EvalCount       int64 `json:"eval_count"`
		Done            bool  `json:"done"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode ollama response: %w", err)
	}

	return &transport.Response{
		Content: resp.Message.Content,
		Usage: transport.Usage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
		},
	}, nil
}
