package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tribunal/internal/llm/transport"
)

func TestOllamaAdapterRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama3.1:8b", body["model"])
		assert.Equal(t, false, body["stream"])

		opts, ok := body["options"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, 0.0, opts["temperature"])
		assert.Equal(t, float64(512), opts["num_predict"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"message":           map[string]string{"role": "assistant", "content": "INFORMATIONAL: 0.73"},
			"prompt_eval_count": 120,
			"eval_count":        40,
			"done":              true,
		})
	}))
	defer server.Close()

	adapter := NewOllamaAdapter(Config{Endpoint: server.URL})
	httpReq, err := adapter.Build(context.Background(), &transport.Request{
		Model:     "llama3.1:8b",
		Prompt:    "rate this",
		MaxTokens: 512,
	})
	require.NoError(t, err)

	httpResp, err := http.DefaultClient.Do(httpReq)
	require.NoError(t, err)
	defer func() { _ = httpResp.Body.Close() }()

	resp, err := adapter.Parse(httpResp)
	require.NoError(t, err)
	assert.Equal(t, "INFORMATIONAL: 0.73", resp.Content)
	assert.Equal(t, int64(120), resp.Usage.PromptTokens)
	assert.Equal(t, int64(40), resp.Usage.CompletionTokens)
}

func TestOllamaAdapterDefaultEndpoint(t *testing.T) {
	adapter := NewOllamaAdapter(Config{})
	httpReq, err := adapter.Build(context.Background(), &transport.Request{Model: "m", Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "localhost:11434", httpReq.URL.Host)
}

func TestOpenAIAdapterRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "idem-1", r.Header.Get("Idempotency-Key"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "PRIVACY: 0.2"}},
			},
			"usage": map[string]int{"prompt_tokens": 100, "completion_tokens": 20},
		})
	}))
	defer server.Close()

	adapter := NewOpenAIAdapter(Config{Endpoint: server.URL, APIKey: "test-key"})
	httpReq, err := adapter.Build(context.Background(), &transport.Request{
		Model:          "gpt-4o-mini",
		Prompt:         "rate this",
		IdempotencyKey: "idem-1",
	})
	require.NoError(t, err)

	httpResp, err := http.DefaultClient.Do(httpReq)
	require.NoError(t, err)
	defer func() { _ = httpResp.Body.Close() }()

	resp, err := adapter.Parse(httpResp)
	require.NoError(t, err)
	assert.Equal(t, "PRIVACY: 0.2", resp.Content)
	assert.Equal(t, int64(100), resp.Usage.PromptTokens)
}

func TestParseErrorStatusBecomesProviderError(t *testing.T) {
	resp := httptest.NewRecorder()
	resp.WriteHeader(http.StatusTooManyRequests)
	resp.Header().Set("Retry-After", "7")
	_, _ = io.WriteString(resp, "slow down")

	httpResp := resp.Result()
	httpResp.Header.Set("Retry-After", "7")

	adapter := NewOllamaAdapter(Config{})
	_, err := adapter.Parse(httpResp)
	require.Error(t, err)

	var provErr *transport.ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, ProviderOllama, provErr.Provider)
	assert.Equal(t, http.StatusTooManyRequests, provErr.StatusCode)
	assert.Equal(t, "slow down", provErr.Message)
	assert.Equal(t, int64(7e9), provErr.RetryAfter.Nanoseconds())
}

func TestRouterPick(t *testing.T) {
	router := NewRouter(nil)

	adapter, err := router.Pick(ProviderOllama)
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, adapter.Name())

	adapter, err = router.Pick(ProviderOpenAI)
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, adapter.Name())

	_, err = router.Pick("anthropic")
	assert.ErrorIs(t, err, transport.ErrUnknownProvider)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 256))
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, truncate(string(long), 256), 256)
}
