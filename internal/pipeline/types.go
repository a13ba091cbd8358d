package pipeline

import (
	"github.com/google/uuid"

	"github.com/taxline/taxline/internal/classify"
	"github.com/taxline/taxline/internal/expert"
	"github.com/taxline/taxline/internal/retrieval"
	"github.com/taxline/taxline/internal/route"
)

// QueryRequest is one advisory question from a user. ConversationID is nil
// for the first turn; later turns carry the id returned previously.
type QueryRequest struct {
	Query          string     `json:"query"`
	UserID         string     `json:"user_id"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
}

// QueryResponse is the pipeline's full answer, including the routing
// decision and, for escalated queries, the matched specialist.
type QueryResponse struct {
	ConversationID   uuid.UUID           `json:"conversation_id"`
	Intent           classify.Intent     `json:"intent"`
	IntentConfidence float64             `json:"intent_confidence"`
	ComplexityScore  int                 `json:"complexity_score"`
	RouteDecision    route.Decision      `json:"route_decision"`
	ResponseText     string              `json:"response_text"`
	Confidence       float64             `json:"confidence"`
	Expert           *expert.MatchResult `json:"expert,omitempty"`
	Sources          []retrieval.Source  `json:"sources"`
	Reasoning        string              `json:"reasoning"`
}
