package domain

import (
	"errors"
	"fmt"
)

// Default evaluation configuration values.
const (
	defaultRaterTemperature = 0.0
	defaultRaterMaxTokens   = 512
	defaultTimeoutSecs      = int64(120)
)

// ErrNoRaters indicates an evaluation was requested with an empty jury.
var ErrNoRaters = errors.New("evaluation requires at least one rater")

// RaterSpec identifies one external text generator: a jury member, or the
// candidate model that produces the response under evaluation.
type RaterSpec struct {
	// ID is the stable rater identifier used in opinions and reports.
	ID string `json:"id" validate:"required"`

	// Provider selects the transport adapter (e.g. "ollama", "openai").
	Provider string `json:"provider" validate:"required"`

	// Model is the provider-specific model name (e.g. "gemma2:27b").
	Model string `json:"model" validate:"required"`

	// Temperature is the sampling temperature for rater calls. Zero keeps
	// rating as deterministic as the backend allows.
	Temperature float64 `json:"temperature" validate:"min=0,max=2"`

	// MaxTokens bounds the rater reply length.
	MaxTokens int `json:"max_tokens" validate:"min=1"`
}

// Validate checks the rater spec against its structural constraints.
func (r *RaterSpec) Validate() error { return validate.Struct(r) }

// EvaluationRequest is the workflow input for judging one dataset instance.
// Dimensions travel as a plain slice so the request serializes cleanly into
// workflow history; activities rebuild the validated DimensionSet from it,
// which is deterministic because declaration order is preserved.
type EvaluationRequest struct {
	// InstanceID identifies the dataset instance being evaluated.
	InstanceID string `json:"instance_id" validate:"required"`

	// Question is the medical question posed to the candidate model.
	Question string `json:"question" validate:"required"`

	// Context is optional supporting literature for the question.
	Context string `json:"context,omitempty"`

	// Options holds multiple-choice options when the dataset provides them.
	Options map[string]string `json:"options,omitempty"`

	// Response is the text under judgment. When empty, the workflow first
	// asks the Candidate model to produce one.
	Response string `json:"response,omitempty"`

	// Candidate is the model that produces the response when Response is
	// empty. Ignored otherwise, so its fields are not validated here; the
	// generation activity checks for a model name when it actually runs.
	Candidate RaterSpec `json:"candidate,omitempty" validate:"structonly"`

	// Raters is the jury: every member scores every dimension.
	Raters []RaterSpec `json:"raters" validate:"required,min=1,dive"`

	// Dimensions is the active harm rubric in canonical order.
	Dimensions []HarmDimension `json:"dimensions" validate:"required,min=1,dive"`

	// CriticalThreshold is the escalation threshold T.
	CriticalThreshold float64 `json:"critical_threshold" validate:"min=0,max=1"`

	// TimeoutSecs bounds each activity attempt.
	TimeoutSecs int64 `json:"timeout_secs" validate:"min=1"`
}

// NewEvaluationRequest builds a request with defaulted rater settings and
// threshold. The dimension set and weight sum are validated eagerly so
// configuration errors surface before any workflow starts.
func NewEvaluationRequest(
	instanceID, question, response string,
	raters []RaterSpec,
	set *DimensionSet,
) (*EvaluationRequest, error) {
	if len(raters) == 0 {
		return nil, ErrNoRaters
	}

	specs := make([]RaterSpec, len(raters))
	for i, r := range raters {
		if r.Temperature == 0 {
			r.Temperature = defaultRaterTemperature
		}
		if r.MaxTokens == 0 {
			r.MaxTokens = defaultRaterMaxTokens
		}
		specs[i] = r
	}

	req := &EvaluationRequest{
		InstanceID:        instanceID,
		Question:          question,
		Response:          response,
		Raters:            specs,
		Dimensions:        set.Dimensions(),
		CriticalThreshold: DefaultCriticalThreshold,
		TimeoutSecs:       defaultTimeoutSecs,
	}

	return req, req.Validate()
}

// Validate checks structural constraints and rebuilds the dimension set to
// enforce the weight-sum invariant. Returns an error wrapping the first
// violation found.
func (r *EvaluationRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if _, err := NewDimensionSet(r.Dimensions); err != nil {
		return fmt.Errorf("invalid dimension configuration: %w", err)
	}
	return nil
}

// DimensionSet rebuilds the validated set from the request's dimensions.
// Callers should Validate first; this returns the construction error as-is.
func (r *EvaluationRequest) DimensionSet() (*DimensionSet, error) {
	return NewDimensionSet(r.Dimensions)
}
