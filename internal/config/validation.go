package config

import (
	"fmt"
	"math"
	"os"
)

// weightEpsilon tolerates float accumulation error when checking weight sums.
const weightEpsilon = 1e-9

// Validate checks the configuration for invalid values.
// Returns sentinel errors (wrapped with context) usable via errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable not set", ErrMissingAPIKey)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model name is empty", ErrInvalidModelName)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %.2f (must be between 0 and 2)", ErrInvalidTemperature, c.Temperature)
	}
	if c.MaxTokens <= 0 || c.MaxTokens > 100000 {
		return fmt.Errorf("%w: %d (must be between 1 and 100000)", ErrInvalidMaxTokens, c.MaxTokens)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder model is empty", ErrInvalidEmbedderModel)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d (must be between 1 and 65535)", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name is empty", ErrInvalidPostgresDBName)
	}
	switch c.PostgresSSLMode {
	case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	if err := c.Retrieval.validate(); err != nil {
		return fmt.Errorf("retrieval: %w", err)
	}
	if err := c.Confidence.validate(); err != nil {
		return fmt.Errorf("confidence: %w", err)
	}
	if err := c.Routing.validate(); err != nil {
		return fmt.Errorf("routing: %w", err)
	}

	return nil
}

func (r RetrievalConfig) validate() error {
	if sum := r.BM25Weight + r.VectorWeight; math.Abs(sum-1.0) > weightEpsilon {
		return fmt.Errorf("%w: bm25_weight + vector_weight = %.4f (must sum to 1.0)", ErrInvalidWeights, sum)
	}
	if r.CandidateCount < 1 || r.CandidateCount > 100 {
		return fmt.Errorf("%w: candidate_count %d (must be between 1 and 100)", ErrInvalidCandidateCount, r.CandidateCount)
	}
	if r.FinalCount < 1 || r.FinalCount > r.CandidateCount {
		return fmt.Errorf("%w: final_count %d (must be between 1 and candidate_count %d)", ErrInvalidCandidateCount, r.FinalCount, r.CandidateCount)
	}
	if r.SimilarityFloor < 0 || r.SimilarityFloor > 1 {
		return fmt.Errorf("%w: similarity_floor %.2f (must be between 0 and 1)", ErrInvalidThreshold, r.SimilarityFloor)
	}
	if r.ContextBudget < r.MinChunkChars {
		return fmt.Errorf("%w: context_budget %d smaller than min_chunk_chars %d", ErrInvalidThreshold, r.ContextBudget, r.MinChunkChars)
	}
	if r.ExpandBy < 0 {
		return fmt.Errorf("%w: expand_by %d (must be non-negative)", ErrInvalidThreshold, r.ExpandBy)
	}
	return nil
}

func (cc ConfidenceConfig) validate() error {
	if sum := cc.SimilarityWeight + cc.RerankWeight; math.Abs(sum-1.0) > weightEpsilon {
		return fmt.Errorf("%w: similarity_weight + rerank_weight = %.4f (must sum to 1.0)", ErrInvalidWeights, sum)
	}
	if cc.Boost < 1 {
		return fmt.Errorf("%w: boost %.2f (must be at least 1)", ErrInvalidThreshold, cc.Boost)
	}
	if cc.ReferralCeiling < 0 || cc.ReferralCeiling > 1 {
		return fmt.Errorf("%w: referral_ceiling %.2f (must be between 0 and 1)", ErrInvalidThreshold, cc.ReferralCeiling)
	}
	if cc.MaxConfidence <= 0 || cc.MaxConfidence > 1 {
		return fmt.Errorf("%w: max_confidence %.2f (must be between 0 and 1)", ErrInvalidThreshold, cc.MaxConfidence)
	}
	return nil
}

func (r RoutingConfig) validate() error {
	if r.ComplexityThreshold < 1 || r.ComplexityThreshold > 5 {
		return fmt.Errorf("%w: complexity_threshold %d (must be between 1 and 5)", ErrInvalidThreshold, r.ComplexityThreshold)
	}
	if r.ConfidenceThreshold < 0 || r.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence_threshold %.2f (must be between 0 and 1)", ErrInvalidThreshold, r.ConfidenceThreshold)
	}
	return nil
}
