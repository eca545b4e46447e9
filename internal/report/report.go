// Package report summarizes persisted evaluation records: harm-level
// distribution, per-dimension behavior, escalation patterns, and rater
// agreement.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/ahrav/go-tribunal/internal/domain"
)

// divergenceThreshold flags dimensions where the mean drifts from the median
// far enough to suggest a skewed rater, since the verdict ignores the mean.
const divergenceThreshold = 0.15

// harmLevelOrder fixes the display order from least to most harmful.
var harmLevelOrder = []domain.HarmLevel{
	domain.HarmLevelLow,
	domain.HarmLevelModerate,
	domain.HarmLevelModerateHigh,
	domain.HarmLevelHigh,
	domain.HarmLevelSevere,
}

// Summary is the computed report over a set of evaluation records.
type Summary struct {
	// Total is the number of records summarized.
	Total int

	// Degraded counts records judged with reduced rater signal.
	Degraded int

	// Escalated counts records whose verdict used the critical-dimension rule.
	Escalated int

	// MeanFinalScore is the mean of the final scores.
	MeanFinalScore float64

	// ByHarmLevel counts records per classification bucket.
	ByHarmLevel map[domain.HarmLevel]int

	// ByDimension aggregates per-dimension behavior across records.
	ByDimension map[string]DimensionSummary
}

// DimensionSummary aggregates one dimension's behavior across records.
type DimensionSummary struct {
	// MeanAggregate is the mean of the dimension's per-record aggregates.
	MeanAggregate float64

	// MaxAggregate is the worst aggregate observed for the dimension.
	MaxAggregate float64

	// Escalations counts records this dimension escalated.
	Escalations int

	// MeanStdDev is the mean cross-rater standard deviation, a proxy for
	// jury disagreement on this dimension.
	MeanStdDev float64

	// Divergent counts records where mean and median disagreed by more
	// than divergenceThreshold.
	Divergent int
}

// Build computes the summary over the given records. Pure function; an empty
// input yields a zero summary.
func Build(records []*domain.EvaluationRecord) *Summary {
	summary := &Summary{
		ByHarmLevel: make(map[domain.HarmLevel]int),
		ByDimension: make(map[string]DimensionSummary),
	}
	if len(records) == 0 {
		return summary
	}

	dimCounts := make(map[string]int)
	var scoreSum float64

	for _, record := range records {
		summary.Total++
		if record.Degraded {
			summary.Degraded++
		}
		if record.Verdict.Escalated() {
			summary.Escalated++
		}
		scoreSum += record.Verdict.FinalScore
		summary.ByHarmLevel[record.Verdict.HarmLevel]++

		for key, agg := range record.Verdict.PerDimension {
			ds := summary.ByDimension[key]
			ds.MeanAggregate += agg.AggregateScore
			ds.MeanStdDev += agg.StdDev
			if agg.AggregateScore > ds.MaxAggregate {
				ds.MaxAggregate = agg.AggregateScore
			}
			if diff := agg.Mean - agg.AggregateScore; diff > divergenceThreshold || diff < -divergenceThreshold {
				ds.Divergent++
			}
			if record.Verdict.Escalated() && record.Verdict.CriticalDimension == key {
				ds.Escalations++
			}
			summary.ByDimension[key] = ds
			dimCounts[key]++
		}
	}

	summary.MeanFinalScore = scoreSum / float64(summary.Total)
	for key, n := range dimCounts {
		ds := summary.ByDimension[key]
		ds.MeanAggregate /= float64(n)
		ds.MeanStdDev /= float64(n)
		summary.ByDimension[key] = ds
	}
	return summary
}

// Render writes a human-readable report. Dimension rows follow the set's
// canonical order when provided, falling back to alphabetical for dimensions
// outside it.
func Render(w io.Writer, summary *Summary, set *domain.DimensionSet) {
	header := color.New(color.Bold, color.FgCyan)
	warn := color.New(color.FgYellow)
	bad := color.New(color.FgRed, color.Bold)

	_, _ = header.Fprintln(w, "Harm Evaluation Report")
	fmt.Fprintf(w, "Instances evaluated: %d\n", summary.Total)
	if summary.Total == 0 {
		return
	}

	fmt.Fprintf(w, "Mean final score:    %.3f\n", summary.MeanFinalScore)
	fmt.Fprintf(w, "Escalated verdicts:  %d (%.1f%%)\n",
		summary.Escalated, percent(summary.Escalated, summary.Total))
	if summary.Degraded > 0 {
		_, _ = warn.Fprintf(w, "Degraded instances:  %d (%.1f%%)\n",
			summary.Degraded, percent(summary.Degraded, summary.Total))
	}

	_, _ = header.Fprintln(w, "\nHarm Level Distribution")
	for _, level := range harmLevelOrder {
		n := summary.ByHarmLevel[level]
		line := fmt.Sprintf("  %-14s %4d (%.1f%%)", level.String(), n, percent(n, summary.Total))
		switch level {
		case domain.HarmLevelSevere:
			if n > 0 {
				_, _ = bad.Fprintln(w, line)
				continue
			}
		case domain.HarmLevelHigh:
			if n > 0 {
				_, _ = warn.Fprintln(w, line)
				continue
			}
		}
		fmt.Fprintln(w, line)
	}

	_, _ = header.Fprintln(w, "\nPer-Dimension Behavior")
	fmt.Fprintf(w, "  %-15s %9s %6s %11s %7s %9s\n",
		"dimension", "mean agg", "max", "escalations", "stddev", "divergent")
	for _, key := range dimensionOrder(summary, set) {
		ds := summary.ByDimension[key]
		line := fmt.Sprintf("  %-15s %9.3f %6.3f %11d %7.3f %9d",
			key, ds.MeanAggregate, ds.MaxAggregate, ds.Escalations, ds.MeanStdDev, ds.Divergent)
		if ds.Escalations > 0 {
			_, _ = warn.Fprintln(w, line)
		} else {
			fmt.Fprintln(w, line)
		}
	}
}

// RenderString renders the report to a string.
func RenderString(summary *Summary, set *domain.DimensionSet) string {
	var b strings.Builder
	Render(&b, summary, set)
	return b.String()
}

func dimensionOrder(summary *Summary, set *domain.DimensionSet) []string {
	var keys []string
	seen := make(map[string]bool)
	if set != nil {
		for _, key := range set.Keys() {
			if _, ok := summary.ByDimension[key]; ok {
				keys = append(keys, key)
				seen[key] = true
			}
		}
	}
	var rest []string
	for key := range summary.ByDimension {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func percent(n, total int) float64 {
	return 100 * float64(n) / float64(total)
}
