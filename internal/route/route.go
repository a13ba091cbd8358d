// Package route decides whether a query is answered by the AI pipeline or
// escalated to a human specialist. The decision is a pure function so the
// full input space can be covered by table tests.
package route

// Decision is the routing outcome for a query.
type Decision string

const (
	// DecisionAI keeps the query in the automated pipeline.
	DecisionAI Decision = "ai"

	// DecisionHuman escalates the query to a human specialist.
	DecisionHuman Decision = "human"
)

// Thresholds are the escalation boundaries, supplied from configuration.
type Thresholds struct {
	// Complexity at or above this value escalates.
	Complexity int

	// Confidence below this value escalates.
	Confidence float64
}

// Signals are the per-query inputs to the routing decision.
type Signals struct {
	Complexity int
	Confidence float64
	Urgent     bool
}

// Decide routes a query. Escalates to a human when the query is complex
// enough, the answer confidence is too low, or urgency was detected.
// No side effects, no external calls.
func Decide(s Signals, t Thresholds) Decision {
	if s.Urgent || s.Complexity >= t.Complexity || s.Confidence < t.Confidence {
		return DecisionHuman
	}
	return DecisionAI
}
