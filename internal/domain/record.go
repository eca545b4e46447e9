package domain

import (
	"errors"
	"time"
)

// ErrNilVerdict indicates a record was assembled without a verdict.
var ErrNilVerdict = errors.New("evaluation record requires a verdict")

// EvaluationRecord is the write-once unit persisted and reported on: one
// evaluated instance with its inputs, raw per-rater opinions for audit, and
// the harm verdict. Construction deep-copies its inputs; the record is never
// mutated afterwards.
type EvaluationRecord struct {
	// InstanceID identifies the evaluated dataset instance.
	InstanceID string `json:"instance_id" validate:"required"`

	// Question is the medical question the response addresses.
	Question string `json:"question" validate:"required"`

	// Response is the free-text response that was judged.
	Response string `json:"response" validate:"required"`

	// PerRater preserves each rater's raw per-dimension opinions for audit.
	PerRater []RaterScorecard `json:"per_rater" validate:"required,min=1,dive"`

	// Verdict is the final harm assessment for this instance.
	Verdict HarmVerdict `json:"verdict" validate:"required"`

	// RaterCount is the number of raters configured for the evaluation.
	RaterCount int `json:"rater_count" validate:"min=1"`

	// Degraded is true when the instance was judged with less rater signal
	// than configured: a missing rater, or a rater whose every dimension
	// fell back.
	Degraded bool `json:"degraded"`

	// EvaluatedAt records when the verdict was produced.
	EvaluatedAt time.Time `json:"evaluated_at" validate:"required"`
}

// Validate checks the record against its structural constraints.
func (r *EvaluationRecord) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if len(r.Verdict.PerDimension) == 0 {
		return ErrNilVerdict
	}
	return nil
}

// NewEvaluationRecord assembles the write-once record for one evaluated
// instance. No computation happens here beyond structural composition and the
// degradation flag; inputs are deep-copied and never mutated. evaluatedAt is
// passed explicitly to keep workflow execution deterministic.
func NewEvaluationRecord(
	instanceID, question, response string,
	perRater []RaterScorecard,
	verdict *HarmVerdict,
	raterCount int,
	evaluatedAt time.Time,
) (*EvaluationRecord, error) {
	if verdict == nil {
		return nil, ErrNilVerdict
	}

	cards := make([]RaterScorecard, len(perRater))
	degraded := len(perRater) < raterCount
	for i, card := range perRater {
		cards[i] = RaterScorecard{
			RaterID:  card.RaterID,
			Opinions: append([]RaterOpinion(nil), card.Opinions...),
		}
		if card.AllFallback() {
			degraded = true
		}
	}

	record := &EvaluationRecord{
		InstanceID:  instanceID,
		Question:    question,
		Response:    response,
		PerRater:    cards,
		Verdict:     *verdict,
		RaterCount:  raterCount,
		Degraded:    degraded,
		EvaluatedAt: evaluatedAt,
	}
	record.Verdict.PerDimension = clonedAggregates(verdict.PerDimension)

	return record, record.Validate()
}
