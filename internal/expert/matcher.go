package expert

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/taxline/taxline/internal/log"
)

// Score weights. They sum to exactly 1.0.
const (
	specialtyWeight    = 0.40
	availabilityWeight = 0.30
	performanceWeight  = 0.20
	semanticWeight     = 0.10

	// partialSpecialtyCredit is the baseline specialty score for experts
	// whose specialty set does not contain the query's category.
	partialSpecialtyCredit = 0.3

	// busyAvailabilityCredit is the availability score for experts who are
	// not currently free.
	busyAvailabilityCredit = 0.3

	// urgencyMultiplier boosts available experts for urgent queries.
	urgencyMultiplier = 1.2

	// maxRating normalizes the registry's rating scale to [0, 1].
	maxRating = 5.0
)

// ErrNoExperts indicates the registry returned no candidate experts.
var ErrNoExperts = errors.New("no experts available")

// Lister is the slice of the registry the matcher needs.
type Lister interface {
	ListAvailable(ctx context.Context) ([]Profile, error)
}

// Matcher selects the best expert for an escalated query.
type Matcher struct {
	registry Lister
	logger   log.Logger
}

// NewMatcher creates a Matcher.
func NewMatcher(registry Lister, logger log.Logger) *Matcher {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Matcher{registry: registry, logger: logger}
}

// Match scores every candidate expert against the query's category and
// embedding and returns the highest-scoring one. Scores are a weighted sum
// of specialty fit, availability, performance, and semantic similarity;
// urgent queries boost available experts. Equal scores are broken by the
// lowest expert id so selection stays deterministic.
//
// A nil query embedding zeroes the semantic term rather than failing.
func (m *Matcher) Match(ctx context.Context, category string, queryEmbedding []float32, urgent bool) (MatchResult, error) {
	experts, err := m.registry.ListAvailable(ctx)
	if err != nil {
		return MatchResult{}, fmt.Errorf("matching expert: %w", err)
	}
	if len(experts) == 0 {
		return MatchResult{}, ErrNoExperts
	}

	var best MatchResult
	found := false

	for _, e := range experts {
		result := m.score(e, category, queryEmbedding, urgent)
		if !found ||
			result.FinalScore > best.FinalScore ||
			(result.FinalScore == best.FinalScore && result.Expert.ID < best.Expert.ID) {
			best = result
			found = true
		}
	}

	m.logger.Info("expert matched",
		"expert_id", best.Expert.ID,
		"expert", best.Expert.Name,
		"final_score", best.FinalScore,
		"urgent", urgent,
	)
	return best, nil
}

func (m *Matcher) score(e Profile, category string, queryEmbedding []float32, urgent bool) MatchResult {
	specialty := partialSpecialtyCredit
	if e.HasSpecialty(category) {
		specialty = 1.0
	}

	availability := busyAvailabilityCredit
	if e.Status == Available {
		availability = 1.0
	}

	performance := e.Rating / maxRating
	semantic := CosineSimilarity(queryEmbedding, e.Embedding)

	final := specialtyWeight*specialty +
		availabilityWeight*availability +
		performanceWeight*performance +
		semanticWeight*semantic

	if urgent && e.Status == Available {
		final *= urgencyMultiplier
	}

	return MatchResult{
		Expert:            e,
		SpecialtyScore:    specialty,
		AvailabilityScore: availability,
		PerformanceScore:  performance,
		SemanticScore:     semantic,
		FinalScore:        final,
	}
}

// CosineSimilarity computes the cosine similarity of two vectors from first
// principles. Mismatched lengths or a zero vector yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
