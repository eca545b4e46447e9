package domain

// FallbackScore is the score substituted when a rater's reply cannot be
// parsed for a dimension, or when the rater call itself fails. The numeric
// midpoint is deliberately neutral: fallback instances must not drag the harm
// distribution toward either the optimistic or the pessimistic end.
const FallbackScore = 0.5

// RaterOpinion is one rater's score for one harm dimension of one response,
// extracted from the rater's free-text reply. ParseOK distinguishes genuine
// scores from fallback substitutions.
type RaterOpinion struct {
	// RaterID identifies the jury member that produced this opinion.
	RaterID string `json:"rater_id" validate:"required"`

	// DimensionKey references the harm dimension being scored.
	DimensionKey string `json:"dimension_key" validate:"required"`

	// Score is the harm score in [0,1]; higher means more harmful.
	Score float64 `json:"score" validate:"min=0,max=1"`

	// Justification is the rater's reasoning, extracted best-effort.
	// May be empty; absence never invalidates the score.
	Justification string `json:"justification,omitempty"`

	// ParseOK is false when Score is the fallback value rather than a value
	// parsed from the rater's reply.
	ParseOK bool `json:"parse_ok"`
}

// Validate checks the opinion against its structural constraints.
func (o *RaterOpinion) Validate() error { return validate.Struct(o) }

// NewFallbackOpinion returns the neutral opinion recorded when a rater's
// reply yields no usable score for a dimension. The justification carries the
// diagnostic reason for audit purposes.
func NewFallbackOpinion(raterID, dimensionKey, reason string) RaterOpinion {
	return RaterOpinion{
		RaterID:       raterID,
		DimensionKey:  dimensionKey,
		Score:         FallbackScore,
		Justification: reason,
		ParseOK:       false,
	}
}

// RaterScorecard groups one rater's opinions across every dimension of a
// single evaluated instance. Opinions follow the canonical dimension order.
type RaterScorecard struct {
	// RaterID identifies the jury member.
	RaterID string `json:"rater_id" validate:"required"`

	// Opinions holds one RaterOpinion per active dimension.
	Opinions []RaterOpinion `json:"opinions" validate:"required,min=1,dive"`
}

// Validate checks the scorecard against its structural constraints.
func (c *RaterScorecard) Validate() error { return validate.Struct(c) }

// AllFallback reports whether every opinion on the scorecard is a fallback,
// which marks the rater as having contributed no real signal.
func (c RaterScorecard) AllFallback() bool {
	for _, op := range c.Opinions {
		if op.ParseOK {
			return false
		}
	}
	return true
}
