// Package retrieval implements hybrid (lexical + vector) retrieval over the
// knowledge store and assembles retrieved chunks into a bounded,
// citation-tagged context block.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/taxline/taxline/internal/config"
	"github.com/taxline/taxline/internal/knowledge"
	"github.com/taxline/taxline/internal/log"
)

// SearchStore is the slice of the knowledge store the retriever needs.
type SearchStore interface {
	LexicalSearch(ctx context.Context, query string, k int) ([]knowledge.Match, error)
	VectorSearch(ctx context.Context, embedding []float32, k int, floor float64) ([]knowledge.Match, error)
}

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever performs hybrid retrieval. Safe for concurrent use.
type Retriever struct {
	store    SearchStore
	embedder Embedder
	cfg      config.RetrievalConfig
	timeouts config.TimeoutConfig
	logger   log.Logger
}

// NewRetriever creates a hybrid retriever.
func NewRetriever(store SearchStore, embedder Embedder, cfg config.RetrievalConfig, timeouts config.TimeoutConfig, logger log.Logger) *Retriever {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Retriever{store: store, embedder: embedder, cfg: cfg, timeouts: timeouts, logger: logger}
}

// Retrieve embeds the query, runs the lexical and vector legs concurrently,
// and merges them by document id into combined-score-ordered candidates.
// The query embedding is returned alongside so later stages can reuse it.
//
// A single failing leg degrades to the other leg's results with a warning;
// only both legs failing is an error. An empty candidate set is not an
// error here, the caller decides how to respond to it.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]Candidate, []float32, error) {
	embedding, embedErr := r.embedQuery(ctx, query)
	if embedErr != nil {
		// Lexical search needs no embedding, keep that leg alive.
		r.logger.Warn("query embedding failed, falling back to lexical-only retrieval", "error", embedErr)
	}

	var lexical, vector []knowledge.Match
	var lexicalErr, vectorErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sctx, cancel := r.searchContext(gctx)
		defer cancel()
		lexical, lexicalErr = r.store.LexicalSearch(sctx, query, r.cfg.CandidateCount)
		return nil
	})
	if embedErr == nil {
		g.Go(func() error {
			sctx, cancel := r.searchContext(gctx)
			defer cancel()
			vector, vectorErr = r.store.VectorSearch(sctx, embedding, r.cfg.CandidateCount, r.cfg.SimilarityFloor)
			return nil
		})
	}
	_ = g.Wait() // leg errors are collected, not propagated through the group

	if lexicalErr != nil && (embedErr != nil || vectorErr != nil) {
		return nil, nil, fmt.Errorf("both retrieval legs failed: lexical: %w", lexicalErr)
	}
	if lexicalErr != nil {
		r.logger.Warn("lexical search failed, using vector results only", "error", lexicalErr)
	}
	if vectorErr != nil {
		r.logger.Warn("vector search failed, using lexical results only", "error", vectorErr)
	}

	candidates := r.merge(lexical, vector)
	r.logger.Debug("hybrid retrieval complete",
		"lexical", len(lexical), "vector", len(vector), "merged", len(candidates))

	if embedErr != nil {
		return candidates, nil, nil
	}
	return candidates, embedding, nil
}

// embedQuery runs the embedding call under its own timeout so a slow model
// cannot consume the whole request budget.
func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if timeout := r.timeouts.Embed(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return r.embedder.Embed(ctx, query)
}

// searchContext bounds a single search leg. A zero timeout leaves the
// caller's deadline in place.
func (r *Retriever) searchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if timeout := r.timeouts.Search(); timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

// merge combines the two legs by document id, computes the weighted combined
// score, and returns the top candidates sorted by combined score descending,
// ties broken by document id ascending for deterministic ordering.
func (r *Retriever) merge(lexical, vector []knowledge.Match) []Candidate {
	byID := make(map[int64]*Candidate, len(lexical)+len(vector))

	for _, m := range lexical {
		byID[m.ID] = &Candidate{Document: m.Document, LexicalScore: m.Score}
	}
	for _, m := range vector {
		if c, ok := byID[m.ID]; ok {
			c.VectorScore = m.Score
		} else {
			byID[m.ID] = &Candidate{Document: m.Document, VectorScore: m.Score}
		}
	}

	candidates := make([]Candidate, 0, len(byID))
	for _, c := range byID {
		c.CombinedScore = r.cfg.BM25Weight*c.LexicalScore + r.cfg.VectorWeight*c.VectorScore
		candidates = append(candidates, *c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CombinedScore != candidates[j].CombinedScore {
			return candidates[i].CombinedScore > candidates[j].CombinedScore
		}
		return candidates[i].ID < candidates[j].ID
	})

	if len(candidates) > r.cfg.CandidateCount {
		candidates = candidates[:r.cfg.CandidateCount]
	}
	return candidates
}
