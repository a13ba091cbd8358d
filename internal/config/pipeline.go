package config

import "time"

// RetrievalConfig tunes the hybrid retrieval and context assembly stages.
type RetrievalConfig struct {
	// BM25Weight and VectorWeight blend the two retrieval legs into the
	// combined score. They must sum to 1.0.
	BM25Weight   float64 `mapstructure:"bm25_weight" json:"bm25_weight"`
	VectorWeight float64 `mapstructure:"vector_weight" json:"vector_weight"`

	// CandidateCount is how many merged candidates survive hybrid retrieval.
	CandidateCount int `mapstructure:"candidate_count" json:"candidate_count"`

	// FinalCount is how many candidates survive reranking.
	FinalCount int `mapstructure:"final_count" json:"final_count"`

	// SimilarityFloor drops vector matches below this cosine similarity.
	SimilarityFloor float64 `mapstructure:"similarity_floor" json:"similarity_floor"`

	// ContextBudget caps the assembled context in characters.
	ContextBudget int `mapstructure:"context_budget" json:"context_budget"`

	// MinChunkChars is the smallest chunk worth adding once the budget
	// starts running out.
	MinChunkChars int `mapstructure:"min_chunk_chars" json:"min_chunk_chars"`

	// ExpandBy is how many neighboring chunks to pull in on each side of
	// a selected chunk.
	ExpandBy int `mapstructure:"expand_by" json:"expand_by"`
}

// ConfidenceConfig tunes the answer confidence calculation.
type ConfidenceConfig struct {
	// SimilarityWeight and RerankWeight blend the best retrieval similarity
	// and the best rerank score. They must sum to 1.0.
	SimilarityWeight float64 `mapstructure:"similarity_weight" json:"similarity_weight"`
	RerankWeight     float64 `mapstructure:"rerank_weight" json:"rerank_weight"`

	// Boost multiplies the blended score. Raw retrieval scores cluster low,
	// so without the boost almost everything would route to a human.
	Boost float64 `mapstructure:"boost" json:"boost"`

	// ReferralCeiling caps confidence when the generated answer itself
	// recommends consulting an expert.
	ReferralCeiling float64 `mapstructure:"referral_ceiling" json:"referral_ceiling"`

	// MaxConfidence is the hard upper clamp. The system never reports
	// certainty.
	MaxConfidence float64 `mapstructure:"max_confidence" json:"max_confidence"`
}

// RoutingConfig tunes the AI-versus-human routing decision.
type RoutingConfig struct {
	// ComplexityThreshold routes to a human at or above this complexity.
	ComplexityThreshold int `mapstructure:"complexity_threshold" json:"complexity_threshold"`

	// ConfidenceThreshold routes to a human below this confidence.
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" json:"confidence_threshold"`
}

// RerankConfig configures the external cross-encoder rerank service.
type RerankConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	APIKey  string `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON
	Model   string `mapstructure:"model" json:"model"`
}

// TimeoutConfig holds per-stage timeouts in milliseconds.
type TimeoutConfig struct {
	EmbedMs         int `mapstructure:"embed_ms" json:"embed_ms"`
	SearchMs        int `mapstructure:"search_ms" json:"search_ms"`
	RerankMs        int `mapstructure:"rerank_ms" json:"rerank_ms"`
	ContextualizeMs int `mapstructure:"contextualize_ms" json:"contextualize_ms"`
	GenerateMs      int `mapstructure:"generate_ms" json:"generate_ms"`
	PipelineMs      int `mapstructure:"pipeline_ms" json:"pipeline_ms"`
}

// Embed returns the embedding timeout as a duration.
func (t TimeoutConfig) Embed() time.Duration { return time.Duration(t.EmbedMs) * time.Millisecond }

// Search returns the retrieval timeout as a duration.
func (t TimeoutConfig) Search() time.Duration { return time.Duration(t.SearchMs) * time.Millisecond }

// Rerank returns the rerank timeout as a duration.
func (t TimeoutConfig) Rerank() time.Duration { return time.Duration(t.RerankMs) * time.Millisecond }

// Contextualize returns the query rewrite timeout as a duration.
func (t TimeoutConfig) Contextualize() time.Duration {
	return time.Duration(t.ContextualizeMs) * time.Millisecond
}

// Generate returns the answer generation timeout as a duration.
func (t TimeoutConfig) Generate() time.Duration {
	return time.Duration(t.GenerateMs) * time.Millisecond
}

// Pipeline returns the end-to-end pipeline timeout as a duration.
func (t TimeoutConfig) Pipeline() time.Duration {
	return time.Duration(t.PipelineMs) * time.Millisecond
}
