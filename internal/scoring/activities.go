package scoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/go-tribunal/internal/domain"
	"github.com/ahrav/go-tribunal/internal/llm/transport"
	"github.com/ahrav/go-tribunal/pkg/activity"
	"github.com/ahrav/go-tribunal/pkg/events"
)

// maxConcurrentRaters bounds the jury fan-out so a local Ollama daemon is
// not asked to serve the whole jury at once.
const maxConcurrentRaters = 4

// RaterClient is the slice of the LLM client the scoring activities need.
type RaterClient interface {
	Rate(ctx context.Context, req *transport.Request) (*transport.Response, error)
}

// Activities implements response generation and jury scoring as Temporal
// activities.
type Activities struct {
	activity.BaseActivities
	client RaterClient
}

// NewActivities creates scoring activities backed by the given rater client.
func NewActivities(client RaterClient, sink events.EventSink) *Activities {
	return &Activities{
		BaseActivities: activity.NewBaseActivities(sink),
		client:         client,
	}
}

// GenerateInput carries the request whose Response field is empty.
type GenerateInput struct {
	Request domain.EvaluationRequest `json:"request"`
}

// GenerateOutput carries the candidate model's response text.
type GenerateOutput struct {
	Response   string `json:"response"`
	PromptHash string `json:"prompt_hash"`
	LatencyMs  int64  `json:"latency_ms"`
}

// ScoreInput carries the request together with the resolved response text.
type ScoreInput struct {
	Request  domain.EvaluationRequest `json:"request"`
	Response string                   `json:"response"`
}

// ScoreOutput carries one scorecard per jury member, in jury order.
type ScoreOutput struct {
	Scorecards []domain.RaterScorecard `json:"scorecards"`
	PromptHash string                  `json:"prompt_hash"`
}

// GenerateResponse asks the candidate model to answer the instance's
// question. Invalid requests fail non-retryably; provider failures are left
// retryable so Temporal's retry policy applies.
func (a *Activities) GenerateResponse(ctx context.Context, input GenerateInput) (*GenerateOutput, error) {
	req := input.Request
	if err := req.Validate(); err != nil {
		return nil, nonRetryable(err, "InvalidEvaluationRequest")
	}
	if req.Candidate.Model == "" {
		return nil, nonRetryable(
			fmt.Errorf("instance %s has no response and no candidate model", req.InstanceID),
			"MissingCandidate")
	}

	wfCtx := a.GetWorkflowContext(ctx)
	prompt := domain.BuildResponsePrompt(req.Question, req.Context, req.Options)

	activity.SafeLog(ctx, "Generating candidate response",
		"instance_id", req.InstanceID,
		"model", req.Candidate.Model)

	resp, err := a.client.Rate(ctx, &transport.Request{
		Provider:       req.Candidate.Provider,
		Model:          req.Candidate.Model,
		Prompt:         prompt,
		Temperature:    req.Candidate.Temperature,
		MaxTokens:      req.Candidate.MaxTokens,
		Timeout:        time.Duration(req.TimeoutSecs) * time.Second,
		IdempotencyKey: fmt.Sprintf("%s:generate:%s", wfCtx.WorkflowID, req.InstanceID),
	})
	if err != nil {
		return nil, retryable(fmt.Errorf("candidate generation failed: %w", err), "GenerationFailed")
	}

	return &GenerateOutput{
		Response:   resp.Content,
		PromptHash: domain.PromptHash(prompt),
		LatencyMs:  resp.Usage.LatencyMs,
	}, nil
}

// ScoreInstance fans the response out to every jury member and collects one
// scorecard per rater. Rater failures degrade to all-fallback scorecards
// rather than failing the activity; jury order is preserved in the output.
func (a *Activities) ScoreInstance(ctx context.Context, input ScoreInput) (*ScoreOutput, error) {
	req := input.Request
	if err := req.Validate(); err != nil {
		return nil, nonRetryable(err, "InvalidEvaluationRequest")
	}
	if input.Response == "" {
		return nil, nonRetryable(
			fmt.Errorf("instance %s has no response to score", req.InstanceID),
			"MissingResponse")
	}

	set, err := req.DimensionSet()
	if err != nil {
		return nil, nonRetryable(err, "InvalidDimensionConfig")
	}

	wfCtx := a.GetWorkflowContext(ctx)
	prompt := domain.BuildRatingPrompt(req.Question, input.Response, set)

	activity.SafeLog(ctx, "Scoring instance",
		"instance_id", req.InstanceID,
		"raters", len(req.Raters),
		"dimensions", set.Len())

	scorecards := make([]domain.RaterScorecard, len(req.Raters))
	sem := make(chan struct{}, maxConcurrentRaters)
	callTimeout := time.Duration(req.TimeoutSecs) * time.Second
	var wg sync.WaitGroup

	for i, rater := range req.Raters {
		wg.Add(1)
		go func(idx int, spec domain.RaterSpec) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			scorecards[idx] = a.scoreWithRater(ctx, wfCtx, spec, prompt, req.InstanceID, callTimeout, set)
		}(i, rater)
	}
	wg.Wait()

	a.RecordHeartbeat(ctx, fmt.Sprintf("scored %d raters", len(req.Raters)))

	for _, card := range scorecards {
		if card.AllFallback() {
			a.emitRaterFallback(ctx, wfCtx, req.InstanceID, card.RaterID)
		} else {
			a.emitRaterScored(ctx, wfCtx, req.InstanceID, card)
		}
	}

	return &ScoreOutput{
		Scorecards: scorecards,
		PromptHash: domain.PromptHash(prompt),
	}, nil
}

// scoreWithRater runs one jury member end to end. Any transport failure
// becomes an all-fallback scorecard so one slow or broken rater never sinks
// the instance.
func (a *Activities) scoreWithRater(
	ctx context.Context,
	wfCtx activity.WorkflowContext,
	spec domain.RaterSpec,
	prompt, instanceID string,
	timeout time.Duration,
	set *domain.DimensionSet,
) domain.RaterScorecard {
	resp, err := a.client.Rate(ctx, &transport.Request{
		Provider:       spec.Provider,
		Model:          spec.Model,
		Prompt:         prompt,
		Temperature:    spec.Temperature,
		MaxTokens:      spec.MaxTokens,
		Timeout:        timeout,
		IdempotencyKey: fmt.Sprintf("%s:score:%s:%s", wfCtx.WorkflowID, instanceID, spec.ID),
	})
	if err != nil {
		activity.SafeLogError(ctx, "Rater call failed, using fallback scores",
			"rater_id", spec.ID,
			"instance_id", instanceID,
			"error", err)
		return fallbackScorecard(spec.ID, set, "rater call failed: "+err.Error())
	}

	return ExtractScorecard(spec.ID, resp.Content, set)
}

// fallbackScorecard builds the all-neutral scorecard recorded when a rater
// produced no reply at all.
func fallbackScorecard(raterID string, set *domain.DimensionSet, reason string) domain.RaterScorecard {
	card := domain.RaterScorecard{
		RaterID:  raterID,
		Opinions: make([]domain.RaterOpinion, 0, set.Len()),
	}
	for _, key := range set.Keys() {
		card.Opinions = append(card.Opinions, domain.NewFallbackOpinion(raterID, key, reason))
	}
	return card
}

// nonRetryable wraps an error so Temporal stops retrying the activity.
func nonRetryable(err error, errType string) error {
	return temporal.NewNonRetryableApplicationError(err.Error(), errType, err)
}

// retryable wraps an error so Temporal's retry policy applies.
func retryable(err error, errType string) error {
	return temporal.NewApplicationError(err.Error(), errType, err)
}
