package retrieval

import "github.com/taxline/taxline/internal/knowledge"

// Candidate is a document scored by hybrid retrieval. A document found by
// only one leg carries 0 for the other leg's score.
type Candidate struct {
	knowledge.Document
	LexicalScore  float64 `json:"lexical_score"`
	VectorScore   float64 `json:"vector_score"`
	CombinedScore float64 `json:"combined_score"`
}

// RankedCandidate is a candidate after cross-encoder reranking. The original
// leg scores are preserved alongside the new relevance score.
type RankedCandidate struct {
	Candidate
	RelevanceScore float64 `json:"relevance_score"`
	Rank           int     `json:"rank"`
}

// Source is one numbered entry in an assembled context block. The number
// matches the [n] citation markers in the context text.
type Source struct {
	Number         int     `json:"number"`
	Title          string  `json:"title"`
	Chapter        string  `json:"chapter,omitempty"`
	SourceName     string  `json:"source_name,omitempty"`
	SourceURL      string  `json:"source_url,omitempty"`
	LexicalScore   float64 `json:"lexical_score"`
	VectorScore    float64 `json:"vector_score"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Context is the assembled, citation-tagged grounding block handed to the
// answer generator.
type Context struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}
