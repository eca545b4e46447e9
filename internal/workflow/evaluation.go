// Package workflow orchestrates the harm evaluation of one dataset instance:
// optional candidate response generation, jury scoring, aggregation into a
// verdict, and persistence of the final record.
package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ahrav/go-tribunal/internal/aggregation"
	"github.com/ahrav/go-tribunal/internal/domain"
	"github.com/ahrav/go-tribunal/internal/results"
	"github.com/ahrav/go-tribunal/internal/scoring"
)

// TaskQueue is the Temporal task queue shared by the worker and starters.
const TaskQueue = "harm-evaluation"

// Per-step retry and timeout tuning. Scoring gets the most room since it
// fans out to the whole jury inside one activity.
const (
	generateAttempts  = 3
	scoreAttempts     = 3
	aggregateAttempts = 1
	persistAttempts   = 5

	heartbeatTimeout = 2 * time.Minute
)

// EvaluationResult is the workflow's return value: the verdict plus the
// context a caller needs without querying the store.
type EvaluationResult struct {
	InstanceID string             `json:"instance_id"`
	Response   string             `json:"response"`
	Verdict    domain.HarmVerdict `json:"verdict"`
	Degraded   bool               `json:"degraded"`
	Generated  bool               `json:"generated"`
}

// HarmEvaluationWorkflow judges one instance end to end. Instances with a
// pre-existing response skip generation. Aggregation and persistence always
// run on whatever scorecards scoring produced, so degraded juries still
// yield a verdict; only structural failures abort the workflow.
func HarmEvaluationWorkflow(ctx workflow.Context, req domain.EvaluationRequest) (*EvaluationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid evaluation request: %w", err)
	}

	logger := workflow.GetLogger(ctx)
	logger.Info("Starting harm evaluation",
		"instance_id", req.InstanceID,
		"raters", len(req.Raters),
		"has_response", req.Response != "")

	stepTimeout := time.Duration(req.TimeoutSecs) * time.Second

	result := &EvaluationResult{InstanceID: req.InstanceID, Response: req.Response}

	var scoringActs *scoring.Activities
	var aggregationActs *aggregation.Activities
	var resultsActs *results.Activities

	if result.Response == "" {
		genCtx := withOptions(ctx, stepTimeout, generateAttempts)
		var genOut scoring.GenerateOutput
		err := workflow.ExecuteActivity(genCtx, scoringActs.GenerateResponse,
			scoring.GenerateInput{Request: req}).Get(ctx, &genOut)
		if err != nil {
			return nil, fmt.Errorf("generate response: %w", err)
		}
		result.Response = genOut.Response
		result.Generated = true
	}

	// The scoring activity bounds its own fan-out, so its timeout covers
	// the whole jury, not a single call.
	scoreTimeout := stepTimeout * time.Duration(max(1, len(req.Raters)))
	scoreCtx := withOptions(ctx, scoreTimeout, scoreAttempts)
	var scoreOut scoring.ScoreOutput
	err := workflow.ExecuteActivity(scoreCtx, scoringActs.ScoreInstance,
		scoring.ScoreInput{Request: req, Response: result.Response}).Get(ctx, &scoreOut)
	if err != nil {
		return nil, fmt.Errorf("score instance: %w", err)
	}

	aggCtx := withOptions(ctx, stepTimeout, aggregateAttempts)
	var aggOut aggregation.AggregateOutput
	err = workflow.ExecuteActivity(aggCtx, aggregationActs.AggregateVerdict,
		aggregation.AggregateInput{Request: req, Scorecards: scoreOut.Scorecards}).Get(ctx, &aggOut)
	if err != nil {
		return nil, fmt.Errorf("aggregate verdict: %w", err)
	}
	result.Verdict = aggOut.Verdict

	persistCtx := withOptions(ctx, stepTimeout, persistAttempts)
	var persistOut results.PersistOutput
	err = workflow.ExecuteActivity(persistCtx, resultsActs.PersistRecord,
		results.PersistInput{
			Request:     req,
			Response:    result.Response,
			Scorecards:  scoreOut.Scorecards,
			Verdict:     aggOut.Verdict,
			EvaluatedAt: workflow.Now(ctx).UTC(),
		}).Get(ctx, &persistOut)
	if err != nil {
		return nil, fmt.Errorf("persist record: %w", err)
	}
	result.Degraded = persistOut.Degraded

	logger.Info("Harm evaluation complete",
		"instance_id", req.InstanceID,
		"final_score", result.Verdict.FinalScore,
		"harm_level", result.Verdict.HarmLevel.String(),
		"degraded", result.Degraded)

	return result, nil
}

// withOptions derives an activity context with the standard retry policy.
func withOptions(ctx workflow.Context, timeout time.Duration, maxAttempts int32) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		HeartbeatTimeout:    heartbeatTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    maxAttempts,
		},
	})
}
