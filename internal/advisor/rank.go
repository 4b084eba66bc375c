package advisor

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"atlas-advisor-backend/internal/types"
)

// Confidence bands.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"

	HighThreshold   = 0.85
	MediumThreshold = 0.6
)

const (
	// MaxRecommendations caps the ranked list returned to the caller.
	MaxRecommendations = 3
	// StarterScore is given to the starter set when nothing matches.
	StarterScore = 0.3

	keywordWeight = 0.5
	featureWeight = 0.3
	nameWeight    = 1.0
)

// starterIDs are offered when the message matches no template.
var starterIDs = []string{"instant-basic", "instant-sidebar", "storymaps"}

// ConfidenceBand labels a score: high at 0.85 and above, medium at 0.6
// and above, low otherwise.
func ConfidenceBand(score float64) string {
	switch {
	case score >= HighThreshold:
		return ConfidenceHigh
	case score >= MediumThreshold:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

type scored struct {
	idx     int
	score   float64
	matched []string
}

// Rank scores every template against message and returns up to limit
// recommendations ordered by score, ties kept in catalog order. Scores are
// in [0,1] and depend only on the message and the catalog.
func Rank(message string, templates []types.AppTemplate, limit int) []types.Recommendation {
	if limit <= 0 {
		limit = MaxRecommendations
	}
	text := " " + normalize(message) + " "

	var hits []scored
	for i, t := range templates {
		var raw float64
		var matched []string
		seen := map[string]bool{}
		if contains(text, normalize(t.Name)) {
			raw += nameWeight
		}
		for _, k := range t.Keywords {
			if contains(text, normalize(k)) && !seen[k] {
				seen[k] = true
				matched = append(matched, k)
				raw += keywordWeight
			}
		}
		for _, f := range t.Features {
			if contains(text, normalize(f)) && !seen[f] {
				seen[f] = true
				matched = append(matched, f)
				raw += featureWeight
			}
		}
		if raw == 0 {
			continue
		}
		if matched == nil {
			matched = []string{}
		}
		hits = append(hits, scored{idx: i, score: scoreOf(raw), matched: matched})
	}

	if len(hits) == 0 {
		return starters(templates, limit)
	}

	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]types.Recommendation, 0, len(hits))
	for _, h := range hits {
		t := templates[h.idx]
		out = append(out, types.Recommendation{
			App:             t,
			Score:           h.score,
			Reasoning:       reasoning(t, h.matched),
			Confidence:      ConfidenceBand(h.score),
			MatchedFeatures: h.matched,
		})
	}
	return out
}

func starters(templates []types.AppTemplate, limit int) []types.Recommendation {
	var out []types.Recommendation
	for i, t := range templates {
		if len(out) == limit {
			break
		}
		for _, id := range starterIDs {
			if t.ID == id {
				out = append(out, types.Recommendation{
					App:             templates[i],
					Score:           StarterScore,
					Reasoning:       fmt.Sprintf("%s is a good general-purpose starting point. %s", t.Name, t.Description),
					Confidence:      ConfidenceBand(StarterScore),
					MatchedFeatures: []string{},
				})
			}
		}
	}
	return out
}

// scoreOf saturates the raw weight into [0,1) and rounds to two places so
// equal inputs always compare equal.
func scoreOf(raw float64) float64 {
	s := 1 - math.Exp(-raw)
	s = math.Round(s*100) / 100
	return math.Max(0, math.Min(1, s))
}

func reasoning(t types.AppTemplate, matched []string) string {
	if len(matched) == 0 {
		return fmt.Sprintf("You asked about %s. %s", t.Name, t.Description)
	}
	m := matched
	if len(m) > 3 {
		m = m[:3]
	}
	return fmt.Sprintf("Matches what you described (%s). %s", strings.Join(m, ", "), t.Description)
}

// normalize lowercases s and collapses everything except letters, digits
// and hyphens into single spaces.
func normalize(s string) string {
	var b strings.Builder
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// contains reports whether phrase occurs in text on word boundaries. text
// must be padded with spaces. A trailing "s" plural also matches.
func contains(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(text, " "+phrase+" ") || strings.Contains(text, " "+phrase+"s ")
}
