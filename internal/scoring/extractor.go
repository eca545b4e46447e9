// Package scoring turns rater replies into structured opinions. It owns the
// score extractor that parses free-text jury output and the Temporal
// activities that fan an instance out to every jury member.
package scoring

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/ahrav/go-tribunal/internal/domain"
)

// justificationFallbackChars bounds the reply prefix recorded when a rater
// ignored the justification format.
const justificationFallbackChars = 200

// scorePatterns caches one compiled pattern per dimension key. Keys come
// from validated DimensionSets, so the cardinality is small and stable.
// Raters score concurrently, so access is guarded.
var scorePatterns = newPatternCache()

type patternCache struct {
	mu       sync.RWMutex
	patterns map[string]*regexp.Regexp
}

func newPatternCache() *patternCache {
	return &patternCache{patterns: make(map[string]*regexp.Regexp)}
}

// get returns the score pattern for a dimension key, compiling on first use.
// Raters are told to emit `KEY: <score>` but real replies drift, so the
// pattern tolerates case, whitespace, and markdown around the key. The match
// is anchored to a whole line so prose that merely mentions a dimension name
// next to a number ("social: 2 studies show") cannot shadow the real score
// line.
func (c *patternCache) get(key string) *regexp.Regexp {
	c.mu.RLock()
	p, ok := c.patterns[key]
	c.mu.RUnlock()
	if ok {
		return p
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.patterns[key]; ok {
		return p
	}
	p = regexp.MustCompile(fmt.Sprintf(
		`(?im)^[^a-z]*%s[\s:*]+(-?\d+(?:\.\d+)?)\s*(?:\(.*\))?\s*$`, regexp.QuoteMeta(key)))
	c.patterns[key] = p
	return p
}

// ExtractScorecard parses one rater's reply into a scorecard covering every
// dimension of the set. A dimension whose score is missing, unparseable, or
// outside [0,1] gets the neutral fallback opinion; extraction itself never
// fails.
func ExtractScorecard(raterID, reply string, set *domain.DimensionSet) domain.RaterScorecard {
	card := domain.RaterScorecard{
		RaterID:  raterID,
		Opinions: make([]domain.RaterOpinion, 0, set.Len()),
	}

	if strings.TrimSpace(reply) == "" {
		for _, key := range set.Keys() {
			card.Opinions = append(card.Opinions,
				domain.NewFallbackOpinion(raterID, key, "empty rater reply"))
		}
		return card
	}

	justification := extractJustification(reply)

	for _, key := range set.Keys() {
		card.Opinions = append(card.Opinions, extractOpinion(raterID, key, reply, justification))
	}
	return card
}

func extractOpinion(raterID, key, reply, justification string) domain.RaterOpinion {
	match := scorePatterns.get(key).FindStringSubmatch(reply)
	if match == nil {
		return domain.NewFallbackOpinion(raterID, key, "no score line found")
	}

	score, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return domain.NewFallbackOpinion(raterID, key, "unparseable score: "+match[1])
	}
	if score < 0 || score > 1 {
		return domain.NewFallbackOpinion(raterID, key,
			fmt.Sprintf("score %g outside [0,1]", score))
	}

	return domain.RaterOpinion{
		RaterID:       raterID,
		DimensionKey:  key,
		Score:         score,
		Justification: justification,
		ParseOK:       true,
	}
}

// scoreLinePattern recognizes any `KEY: <number>` line regardless of which
// dimension it names. Used to find where the score block ends when a reply
// omits the justification label.
var scoreLinePattern = regexp.MustCompile(`(?i)^[^a-z]*[a-z][a-z_ -]*[\s:*]+-?\d+(?:\.\d+)?\s*(?:\(.*\))?\s*$`)

// extractJustification pulls the rater's reasoning from the reply. It looks
// for the instructed `JUSTIFICATION:` line first, taking the text after the
// label or the following line when the label stands alone. Without a label,
// the first free-text line after the score block is used. Replies with
// neither contribute a bounded prefix, so some reasoning survives for audit
// even when the format is ignored.
func extractJustification(reply string) string {
	lines := strings.Split(reply, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)
		if !strings.HasPrefix(upper, domain.RatingJustificationLabel) {
			continue
		}

		rest := strings.TrimSpace(trimmed[len(domain.RatingJustificationLabel):])
		rest = strings.TrimSpace(strings.TrimPrefix(rest, ":"))
		if rest != "" {
			return rest
		}
		if i+1 < len(lines) {
			if next := strings.TrimSpace(lines[i+1]); next != "" {
				return next
			}
		}
		break
	}

	if after := lineAfterScoreBlock(lines); after != "" {
		return after
	}

	prefix := strings.TrimSpace(reply)
	if len(prefix) > justificationFallbackChars {
		prefix = prefix[:justificationFallbackChars]
	}
	return prefix
}

// lineAfterScoreBlock returns the first non-empty line following the last
// score line, or "" when the reply has no score lines or nothing after them.
func lineAfterScoreBlock(lines []string) string {
	last := -1
	for i, line := range lines {
		if scoreLinePattern.MatchString(strings.TrimSpace(line)) {
			last = i
		}
	}
	if last < 0 {
		return ""
	}
	for _, line := range lines[last+1:] {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
