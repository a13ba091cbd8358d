// Package embed wraps the Genkit embedder behind the single-text contract
// the pipeline needs, enforcing the knowledge schema's vector dimension.
package embed

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"

	"github.com/taxline/taxline/internal/knowledge"
)

// Service embeds query and document text. Safe for concurrent use.
type Service struct {
	embedder ai.Embedder
}

// New creates an embedding service backed by the given Genkit embedder.
func New(embedder ai.Embedder) *Service {
	return &Service{embedder: embedder}
}

// Embed returns the embedding vector for a single text.
// The result always has knowledge.VectorDimension elements; a provider
// returning a different dimension is an error, not silently stored.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(text)}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("generating embedding: %w", err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}

	vec := resp.Embeddings[0].Embedding
	if len(vec) != knowledge.VectorDimension {
		return nil, fmt.Errorf("embedding dimension %d, want %d", len(vec), knowledge.VectorDimension)
	}
	return vec, nil
}
