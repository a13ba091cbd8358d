package pipeline

import (
	"strings"

	"github.com/taxline/taxline/internal/config"
	"github.com/taxline/taxline/internal/retrieval"
)

// referralPhrases are answer fragments that recommend human consultation.
// An answer containing any of them is capped at the referral ceiling: the
// model itself signaled it is not sufficient.
var referralPhrases = []string{
	"consult an expert",
	"speak with an expert",
	"expert can help",
	"recommend talking to",
	"personalized advice",
	"individual circumstances",
}

// containsReferralPhrase reports whether the answer recommends consulting
// a human. Case-insensitive.
func containsReferralPhrase(answer string) bool {
	lower := strings.ToLower(answer)
	for _, phrase := range referralPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// confidenceCalculator derives answer confidence from the final candidate
// set's scores and the answer text.
type confidenceCalculator struct {
	cfg config.ConfidenceConfig
}

// compute blends the best similarity and the best rerank score across the
// final candidates (maximum, not average: one excellent match is enough
// signal), boosts the low-magnitude raw value, and clamps the result.
// Without rerank scores the similarity stands alone. The returned value is
// always within [0, MaxConfidence].
func (c confidenceCalculator) compute(candidates []retrieval.RankedCandidate, answer string) float64 {
	if len(candidates) == 0 {
		return 0
	}

	var maxSimilarity, maxRerank float64
	for _, cand := range candidates {
		maxSimilarity = max(maxSimilarity, cand.VectorScore)
		maxRerank = max(maxRerank, cand.RelevanceScore)
	}

	base := maxSimilarity
	if maxRerank > 0 {
		base = c.cfg.SimilarityWeight*maxSimilarity + c.cfg.RerankWeight*maxRerank
	}

	confidence := min(1.0, base*c.cfg.Boost)

	if containsReferralPhrase(answer) {
		confidence = min(confidence, c.cfg.ReferralCeiling)
	}

	return max(0, min(confidence, c.cfg.MaxConfidence))
}
