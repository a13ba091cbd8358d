// Package classify provides deterministic query analysis for the advisory
// pipeline: keyword-based intent classification and heuristic complexity
// scoring. Both are pure functions with no network access, so routing
// behavior is reproducible and unit-testable.
package classify

import "regexp"

// Intent is the category a query is classified into.
type Intent string

const (
	IntentUrgent      Intent = "urgent"
	IntentComplexTax  Intent = "complex_tax"
	IntentBookkeeping Intent = "bookkeeping"
	IntentSimpleTax   Intent = "simple_tax"
	IntentGeneral     Intent = "general"
)

// Classification is the result of intent classification.
type Classification struct {
	Intent Intent `json:"intent"`

	// Confidence is the fraction of the winning intent's patterns that
	// matched, in [0, 1]. Zero when no pattern matched at all.
	Confidence float64 `json:"confidence"`
}

type intentRule struct {
	intent   Intent
	patterns []*regexp.Regexp
}

func compileAll(exprs ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		compiled[i] = regexp.MustCompile(`(?i)` + expr)
	}
	return compiled
}

// intentRules is ordered by tie-break priority: when two intents match the
// same number of patterns the earlier entry wins.
var intentRules = []intentRule{
	{
		intent: IntentUrgent,
		patterns: compileAll(
			`\baudite?d?\b`, `\birs\b`, `\bpenalty\b`, `\bnotice\b`,
			`\bemergency\b`, `\burgent\b`, `\bdeadline\b`, `\btoday\b`,
			`\basap\b`, `\blocked\b`,
		),
	},
	{
		intent: IntentComplexTax,
		patterns: compileAll(
			`\bcapital gains?\b`, `\bcrypto\b`, `\bstaking\b`,
			`\bforeign tax\b`, `\b1031\b`, `\bexchange\b`,
			`\bqbi\b`, `\bqualified business income\b`,
			`\bmulti[- ]state\b`, `\binternational\b`, `\btreaty\b`,
			`\bk-?1\b`, `\bpartnership\b`, `\bdistribution\b`,
		),
	},
	{
		intent: IntentBookkeeping,
		patterns: compileAll(
			`\breconcil\w*\b`, `\bquickbooks\b`, `\bxero\b`,
			`\binvoice\b`, `\bpayroll\b`, `\bcash flow\b`,
			`\bchart of accounts\b`, `\bcategoriz\w*\b`,
		),
	},
	{
		intent: IntentSimpleTax,
		patterns: compileAll(
			`\bstandard deduction\b`, `\bstd deduction\b`,
			`\bw-?2\b`, `\b1040\b`, `\bfiling\b`, `\brefund\b`,
			`\bdeduction\b`, `\btax bracket\b`, `\beitc\b`,
			`\bearned income\b`, `\bhome office\b`, `\bself[- ]employ\w*\b`,
			`\bextension\b`,
		),
	},
}

// ClassifyIntent classifies a query into an intent category by counting
// word-boundary keyword matches. Matching is case-insensitive. A query that
// matches nothing is classified as general with zero confidence.
func ClassifyIntent(query string) Classification {
	best := Classification{Intent: IntentGeneral, Confidence: 0}
	bestMatches := 0

	for _, rule := range intentRules {
		matched := 0
		for _, pattern := range rule.patterns {
			if pattern.MatchString(query) {
				matched++
			}
		}
		// Strict > keeps the priority order on ties.
		if matched > bestMatches {
			bestMatches = matched
			best = Classification{
				Intent:     rule.intent,
				Confidence: float64(matched) / float64(len(rule.patterns)),
			}
		}
	}

	return best
}
