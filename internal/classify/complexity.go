package classify

import (
	"fmt"
	"regexp"
	"strings"
)

// Complexity is the result of heuristic complexity scoring.
type Complexity struct {
	// Score ranges 1 (simple factual) to 5 (expert-level).
	Score int `json:"score"`

	// Urgent is true when an urgency indicator matched. Urgency always
	// forces Score to 5.
	Urgent bool `json:"urgent"`

	// RequiresExpert mirrors the routing rule: complexity at or above 4,
	// or any urgency.
	RequiresExpert bool `json:"requires_expert"`

	// Reasoning is a short human-readable explanation for the score.
	Reasoning string `json:"reasoning"`
}

var (
	urgencyIndicators = compileAll(
		`\burgent\b`, `\basap\b`, `\bdeadline\b`, `\btoday\b`,
		`\baudit\b`, `\bnotice\b`, `\bpenalty\b`, `\bemergency\b`,
		`\bimmediately\b`, `\bnow\b`,
	)

	technicalKeywords = compileAll(
		`\binternational\b`, `\bforeign\b`, `\bcrypto\b`, `\bcryptocurrency\b`,
		`\bcapital gains\b`, `\bpartnership\b`, `\btrust\b`, `\bestate\b`,
		`\balternative minimum tax\b`, `\bamt\b`,
		`\bsection 1031\b`, `\blike-kind exchange\b`,
		`\bqualified business income\b`, `\bqbi\b`,
		`\bpassive activity loss\b`, `\bnet operating loss\b`, `\bmulti-state\b`,
	)

	moderateKeywords = compileAll(
		`\bself-employed\b`, `\bschedule c\b`, `\bdepreciation\b`,
		`\bbusiness expenses\b`, `\bhome office\b`, `\brental income\b`,
		`\binvestment\b`, `\bstock\b`, `\bdividend\b`,
	)

	simpleKeywords = compileAll(
		`\bstandard deduction\b`, `\bfiling status\b`, `\bw-2\b`, `\brefund\b`,
		`\bdeadline\b`, `\bextension\b`, `\btax bracket\b`, `\birs\b`,
		`\bform 1040\b`,
	)
)

// intentBaseScores maps an intent to its starting complexity.
var intentBaseScores = map[Intent]int{
	IntentSimpleTax:   2,
	IntentComplexTax:  4,
	IntentBookkeeping: 3,
	IntentUrgent:      5,
	IntentGeneral:     2,
}

// longQueryWords is the word count above which a query gets a complexity bump.
const longQueryWords = 30

// ScoreComplexity scores a query's complexity from 1 to 5 given its
// classified intent. Pure function: same inputs always produce the same
// score.
func ScoreComplexity(query string, intent Intent) Complexity {
	urgent := anyMatch(urgencyIndicators, query)
	technicalCount := countMatches(technicalKeywords, query)
	moderateCount := countMatches(moderateKeywords, query)
	simpleCount := countMatches(simpleKeywords, query)

	score, ok := intentBaseScores[intent]
	if !ok {
		score = 3
	}

	switch {
	case technicalCount > 0:
		score = max(score, 4)
	case moderateCount > 0:
		score = max(score, 3)
	case simpleCount > 0:
		score = min(score, 2)
	}

	if len(strings.Fields(query)) > longQueryWords {
		score++
	}
	if strings.Count(query, "?") > 1 {
		score++
	}

	if urgent {
		score = 5
	}

	score = max(1, min(5, score))

	return Complexity{
		Score:          score,
		Urgent:         urgent,
		RequiresExpert: score >= 4 || urgent,
		Reasoning:      complexityReasoning(score, urgent, technicalCount, intent),
	}
}

func complexityReasoning(score int, urgent bool, technicalCount int, intent Intent) string {
	switch {
	case urgent:
		return "urgent situation detected, immediate specialist assignment required"
	case score >= 4 && technicalCount > 0:
		return fmt.Sprintf("complex tax scenario identified (%s), specialist knowledge required", intent)
	case score >= 4:
		return "high complexity query requiring specialized expertise"
	case score == 3:
		return fmt.Sprintf("moderate complexity (%s), AI can assist with specialist backup", intent)
	default:
		return "straightforward question suitable for AI response"
	}
}

func anyMatch(patterns []*regexp.Regexp, query string) bool {
	for _, pattern := range patterns {
		if pattern.MatchString(query) {
			return true
		}
	}
	return false
}

func countMatches(patterns []*regexp.Regexp, query string) int {
	count := 0
	for _, pattern := range patterns {
		if pattern.MatchString(query) {
			count++
		}
	}
	return count
}
