package scoring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/go-tribunal/internal/domain"
	"github.com/ahrav/go-tribunal/internal/llm/transport"
)

// stubClient answers rater calls from a canned function, recording every
// request it sees.
type stubClient struct {
	mu       sync.Mutex
	requests []*transport.Request
	respond  func(req *transport.Request) (*transport.Response, error)
}

func (s *stubClient) Rate(_ context.Context, req *transport.Request) (*transport.Response, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return s.respond(req)
}

func testRequest(t *testing.T, raterIDs ...string) domain.EvaluationRequest {
	t.Helper()

	raters := make([]domain.RaterSpec, len(raterIDs))
	for i, id := range raterIDs {
		raters[i] = domain.RaterSpec{
			ID: id, Provider: "ollama", Model: "llama3.1:8b",
			MaxTokens: 512,
		}
	}

	req, err := domain.NewEvaluationRequest(
		"inst-1",
		"Is it safe to combine ibuprofen and aspirin?",
		"resp", raters, domain.DefaultDimensionSet())
	require.NoError(t, err)
	return *req
}

func fullReply(score float64) string {
	var b strings.Builder
	for _, key := range domain.DefaultDimensionSet().Keys() {
		fmt.Fprintf(&b, "%s: %g\n", strings.ToUpper(key), score)
	}
	b.WriteString("JUSTIFICATION: test reasoning")
	return b.String()
}

func TestScoreInstanceHappyPath(t *testing.T) {
	client := &stubClient{respond: func(*transport.Request) (*transport.Response, error) {
		return &transport.Response{Content: fullReply(0.3)}, nil
	}}
	acts := NewActivities(client, nil)

	out, err := acts.ScoreInstance(context.Background(), ScoreInput{
		Request:  testRequest(t, "rater-1", "rater-2", "rater-3"),
		Response: "Take with food; consult your physician.",
	})
	require.NoError(t, err)

	require.Len(t, out.Scorecards, 3)
	for _, card := range out.Scorecards {
		assert.False(t, card.AllFallback())
		assert.Len(t, card.Opinions, domain.DefaultDimensionSet().Len())
	}
	assert.NotEmpty(t, out.PromptHash)
}

func TestScoreInstancePreservesJuryOrder(t *testing.T) {
	client := &stubClient{respond: func(*transport.Request) (*transport.Response, error) {
		return &transport.Response{Content: fullReply(0.2)}, nil
	}}
	acts := NewActivities(client, nil)

	ids := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta"}
	out, err := acts.ScoreInstance(context.Background(), ScoreInput{
		Request:  testRequest(t, ids...),
		Response: "resp",
	})
	require.NoError(t, err)

	require.Len(t, out.Scorecards, len(ids))
	for i, card := range out.Scorecards {
		assert.Equal(t, ids[i], card.RaterID)
	}
}

func TestScoreInstanceRaterFailureDegrades(t *testing.T) {
	client := &stubClient{respond: func(req *transport.Request) (*transport.Response, error) {
		if strings.Contains(req.IdempotencyKey, "rater-2") {
			return nil, errors.New("connection refused")
		}
		return &transport.Response{Content: fullReply(0.3)}, nil
	}}
	acts := NewActivities(client, nil)

	out, err := acts.ScoreInstance(context.Background(), ScoreInput{
		Request:  testRequest(t, "rater-1", "rater-2", "rater-3"),
		Response: "resp",
	})
	require.NoError(t, err, "one broken rater must not fail the activity")

	assert.False(t, out.Scorecards[0].AllFallback())
	assert.True(t, out.Scorecards[1].AllFallback())
	assert.False(t, out.Scorecards[2].AllFallback())

	for _, op := range out.Scorecards[1].Opinions {
		assert.Equal(t, domain.FallbackScore, op.Score)
		assert.Contains(t, op.Justification, "rater call failed")
	}
}

func TestScoreInstanceMissingResponse(t *testing.T) {
	acts := NewActivities(&stubClient{respond: func(*transport.Request) (*transport.Response, error) {
		t.Fatal("client must not be called")
		return nil, nil
	}}, nil)

	_, err := acts.ScoreInstance(context.Background(), ScoreInput{
		Request: testRequest(t, "rater-1"),
	})
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.True(t, appErr.NonRetryable())
	assert.Equal(t, "MissingResponse", appErr.Type())
}

func TestScoreInstanceIdempotencyKeysPerRater(t *testing.T) {
	client := &stubClient{respond: func(*transport.Request) (*transport.Response, error) {
		return &transport.Response{Content: fullReply(0.1)}, nil
	}}
	acts := NewActivities(client, nil)

	_, err := acts.ScoreInstance(context.Background(), ScoreInput{
		Request:  testRequest(t, "rater-1", "rater-2"),
		Response: "resp",
	})
	require.NoError(t, err)

	keys := make(map[string]bool)
	for _, req := range client.requests {
		assert.NotEmpty(t, req.IdempotencyKey)
		keys[req.IdempotencyKey] = true
	}
	assert.Len(t, keys, 2, "each rater call needs a distinct idempotency key")
}

func TestScoreInstanceAppliesPerCallTimeout(t *testing.T) {
	client := &stubClient{respond: func(*transport.Request) (*transport.Response, error) {
		return &transport.Response{Content: fullReply(0.1)}, nil
	}}
	acts := NewActivities(client, nil)

	req := testRequest(t, "rater-1", "rater-2")
	_, err := acts.ScoreInstance(context.Background(), ScoreInput{
		Request:  req,
		Response: "resp",
	})
	require.NoError(t, err)

	want := time.Duration(req.TimeoutSecs) * time.Second
	require.Len(t, client.requests, 2)
	for _, r := range client.requests {
		assert.Equal(t, want, r.Timeout, "each rater call carries the per-call budget")
	}
}

func TestGenerateResponse(t *testing.T) {
	client := &stubClient{respond: func(req *transport.Request) (*transport.Response, error) {
		assert.Equal(t, "candidate-model", req.Model)
		assert.Contains(t, req.Prompt, "ibuprofen")
		return &transport.Response{Content: "Generally avoid combining them.", Usage: transport.Usage{LatencyMs: 42}}, nil
	}}
	acts := NewActivities(client, nil)

	req := testRequest(t, "rater-1")
	req.Response = ""
	req.Candidate = domain.RaterSpec{
		ID: "candidate", Provider: "ollama", Model: "candidate-model", MaxTokens: 1024,
	}

	out, err := acts.GenerateResponse(context.Background(), GenerateInput{Request: req})
	require.NoError(t, err)
	assert.Equal(t, "Generally avoid combining them.", out.Response)
	assert.Equal(t, int64(42), out.LatencyMs)
	assert.NotEmpty(t, out.PromptHash)
}

func TestGenerateResponseMissingCandidate(t *testing.T) {
	acts := NewActivities(&stubClient{respond: func(*transport.Request) (*transport.Response, error) {
		return nil, nil
	}}, nil)

	req := testRequest(t, "rater-1")
	req.Response = ""

	_, err := acts.GenerateResponse(context.Background(), GenerateInput{Request: req})
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.True(t, appErr.NonRetryable())
	assert.Equal(t, "MissingCandidate", appErr.Type())
}

func TestGenerateResponseProviderFailureIsRetryable(t *testing.T) {
	acts := NewActivities(&stubClient{respond: func(*transport.Request) (*transport.Response, error) {
		return nil, errors.New("daemon not running")
	}}, nil)

	req := testRequest(t, "rater-1")
	req.Response = ""
	req.Candidate = domain.RaterSpec{ID: "c", Provider: "ollama", Model: "m", MaxTokens: 256}

	_, err := acts.GenerateResponse(context.Background(), GenerateInput{Request: req})
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.False(t, appErr.NonRetryable())
}
