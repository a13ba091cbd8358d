package embed

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxline/taxline/internal/knowledge"
)

// mockEmbedder is a mock implementation of ai.Embedder for testing.
type mockEmbedder struct {
	dimension int
	err       error
	lastText  string
}

func (m *mockEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(req.Input) > 0 && len(req.Input[0].Content) > 0 {
		m.lastText = req.Input[0].Content[0].Text
	}
	vec := make([]float32, m.dimension)
	for i := range vec {
		vec[i] = 0.1
	}
	return &ai.EmbedResponse{Embeddings: []*ai.Embedding{{Embedding: vec}}}, nil
}

func (m *mockEmbedder) Name() string { return "mockEmbedder" }

func (m *mockEmbedder) Register(api.Registry) {}

func TestEmbed(t *testing.T) {
	mock := &mockEmbedder{dimension: knowledge.VectorDimension}
	svc := New(mock)

	vec, err := svc.Embed(context.Background(), "standard deduction")
	require.NoError(t, err)
	assert.Len(t, vec, knowledge.VectorDimension)
	assert.Equal(t, "standard deduction", mock.lastText)
}

func TestEmbedProviderError(t *testing.T) {
	svc := New(&mockEmbedder{err: errors.New("quota exceeded")})

	_, err := svc.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generating embedding")
}

func TestEmbedDimensionMismatch(t *testing.T) {
	svc := New(&mockEmbedder{dimension: 768})

	_, err := svc.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension")
}

func TestEmbedEmptyResponse(t *testing.T) {
	svc := New(&mockEmbedder{dimension: 0})

	_, err := svc.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty embedding")
}
