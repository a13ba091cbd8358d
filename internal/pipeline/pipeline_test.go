package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxline/taxline/internal/classify"
	"github.com/taxline/taxline/internal/config"
	"github.com/taxline/taxline/internal/conversation"
	"github.com/taxline/taxline/internal/expert"
	"github.com/taxline/taxline/internal/llm"
	"github.com/taxline/taxline/internal/rerank"
	"github.com/taxline/taxline/internal/retrieval"
	"github.com/taxline/taxline/internal/route"
)

type mockRetriever struct {
	retrieveFunc func(ctx context.Context, query string) ([]retrieval.Candidate, []float32, error)
}

func (m *mockRetriever) Retrieve(ctx context.Context, query string) ([]retrieval.Candidate, []float32, error) {
	return m.retrieveFunc(ctx, query)
}

type mockAssembler struct {
	assembleFunc func(ctx context.Context, candidates []retrieval.RankedCandidate) retrieval.Context
}

func (m *mockAssembler) Assemble(ctx context.Context, candidates []retrieval.RankedCandidate) retrieval.Context {
	return m.assembleFunc(ctx, candidates)
}

type mockReranker struct {
	rerankFunc func(ctx context.Context, query string, documents []string, topN int) ([]rerank.Result, error)
}

func (m *mockReranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]rerank.Result, error) {
	return m.rerankFunc(ctx, query, documents, topN)
}

type mockConversationStore struct {
	createFunc  func(ctx context.Context, userID string) (uuid.UUID, error)
	existsFunc  func(ctx context.Context, id uuid.UUID) (bool, error)
	historyFunc func(ctx context.Context, conversationID uuid.UUID, limit int) ([]conversation.Message, error)

	appended chan conversation.Message
}

func (m *mockConversationStore) Create(ctx context.Context, userID string) (uuid.UUID, error) {
	return m.createFunc(ctx, userID)
}

func (m *mockConversationStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return m.existsFunc(ctx, id)
}

func (m *mockConversationStore) AppendMessage(_ context.Context, _ uuid.UUID, msg conversation.Message) error {
	m.appended <- msg
	return nil
}

func (m *mockConversationStore) History(ctx context.Context, conversationID uuid.UUID, limit int) ([]conversation.Message, error) {
	return m.historyFunc(ctx, conversationID, limit)
}

type mockMatcher struct {
	matchFunc func(ctx context.Context, category string, queryEmbedding []float32, urgent bool) (expert.MatchResult, error)
}

func (m *mockMatcher) Match(ctx context.Context, category string, queryEmbedding []float32, urgent bool) (expert.MatchResult, error) {
	return m.matchFunc(ctx, category, queryEmbedding, urgent)
}

func testPipelineConfig() *config.Config {
	return &config.Config{
		MaxHistoryTurns: 5,
		Retrieval: config.RetrievalConfig{
			CandidateCount: 20,
			FinalCount:     5,
		},
		Confidence: testConfidenceConfig(),
		Routing: config.RoutingConfig{
			ComplexityThreshold: 4,
			ConfidenceThreshold: 0.60,
		},
		Timeouts: config.TimeoutConfig{RerankMs: 1000},
	}
}

type pipelineMocks struct {
	retriever      *mockRetriever
	assembler      *mockAssembler
	reranker       *mockReranker
	generator      *mockLLMClient
	rewriter       *mockLLMClient
	conversations  *mockConversationStore
	matcher        *mockMatcher
	conversationID uuid.UUID
}

func defaultCandidates() []retrieval.Candidate {
	a := retrieval.Candidate{LexicalScore: 0.7, VectorScore: 0.8, CombinedScore: 0.75}
	a.ID = 1
	a.Title = "Standard Deduction"
	a.Content = "The standard deduction for single filers is $14,600."
	b := retrieval.Candidate{LexicalScore: 0.5, VectorScore: 0.6, CombinedScore: 0.55}
	b.ID = 2
	b.Title = "Filing Status"
	b.Content = "Filing status determines the deduction amount."
	return []retrieval.Candidate{a, b}
}

// newTestPipeline wires a Pipeline over happy-path mocks. Individual tests
// override the funcs they exercise.
func newTestPipeline(t *testing.T) (*Pipeline, *pipelineMocks) {
	t.Helper()

	conversationID := uuid.New()
	m := &pipelineMocks{
		conversationID: conversationID,
		retriever: &mockRetriever{
			retrieveFunc: func(context.Context, string) ([]retrieval.Candidate, []float32, error) {
				return defaultCandidates(), []float32{0.1, 0.2, 0.3}, nil
			},
		},
		assembler: &mockAssembler{
			assembleFunc: func(_ context.Context, candidates []retrieval.RankedCandidate) retrieval.Context {
				sources := make([]retrieval.Source, len(candidates))
				for i, c := range candidates {
					sources[i] = retrieval.Source{Number: i + 1, Title: c.Title}
				}
				return retrieval.Context{Text: "[1] reference text", Sources: sources}
			},
		},
		reranker: &mockReranker{
			rerankFunc: func(_ context.Context, _ string, _ []string, _ int) ([]rerank.Result, error) {
				return []rerank.Result{
					{Index: 0, RelevanceScore: 0.9},
					{Index: 1, RelevanceScore: 0.4},
				}, nil
			},
		},
		generator: &mockLLMClient{
			name: "generator",
			completeFunc: func(context.Context, llm.CompletionRequest) (string, error) {
				return "The standard deduction for single filers is $14,600 [1].", nil
			},
		},
		rewriter: &mockLLMClient{
			name: "rewriter",
			completeFunc: func(context.Context, llm.CompletionRequest) (string, error) {
				return "", errors.New("rewriter should not be called")
			},
		},
		conversations: &mockConversationStore{
			createFunc: func(context.Context, string) (uuid.UUID, error) {
				return conversationID, nil
			},
			existsFunc: func(context.Context, uuid.UUID) (bool, error) {
				return true, nil
			},
			historyFunc: func(context.Context, uuid.UUID, int) ([]conversation.Message, error) {
				return nil, nil
			},
			appended: make(chan conversation.Message, 4),
		},
		matcher: &mockMatcher{
			matchFunc: func(context.Context, string, []float32, bool) (expert.MatchResult, error) {
				return expert.MatchResult{
					Expert:     expert.Profile{ID: 7, Name: "Alex Rivera", Status: expert.Available},
					FinalScore: 0.82,
				}, nil
			},
		},
	}

	p := New(
		m.retriever,
		m.assembler,
		m.reranker,
		m.generator,
		NewContextualizer(m.rewriter, 0, nil),
		m.conversations,
		m.matcher,
		testPipelineConfig(),
		nil,
	)
	return p, m
}

func waitForMessages(t *testing.T, ch chan conversation.Message, n int) []conversation.Message {
	t.Helper()

	messages := make([]conversation.Message, 0, n)
	for len(messages) < n {
		select {
		case msg := <-ch:
			messages = append(messages, msg)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for message %d of %d", len(messages)+1, n)
		}
	}
	return messages
}

func TestProcessSimpleQueryAnsweredByAI(t *testing.T) {
	p, m := newTestPipeline(t)
	m.matcher.matchFunc = func(context.Context, string, []float32, bool) (expert.MatchResult, error) {
		t.Error("expert matcher should not run for an AI-routed query")
		return expert.MatchResult{}, nil
	}

	resp, err := p.Process(context.Background(), QueryRequest{
		Query:  "What is the standard deduction?",
		UserID: "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, m.conversationID, resp.ConversationID)
	assert.Equal(t, classify.IntentSimpleTax, resp.Intent)
	assert.Equal(t, 2, resp.ComplexityScore)
	assert.Equal(t, route.DecisionAI, resp.RouteDecision)
	assert.Equal(t, "The standard deduction for single filers is $14,600 [1].", resp.ResponseText)
	assert.InDelta(t, 0.95, resp.Confidence, 1e-9)
	assert.Nil(t, resp.Expert)
	assert.Len(t, resp.Sources, 2)

	messages := waitForMessages(t, m.conversations.appended, 2)
	assert.Equal(t, conversation.RoleUser, messages[0].Role)
	assert.Equal(t, "What is the standard deduction?", messages[0].Content)
	assert.Equal(t, conversation.RoleAssistant, messages[1].Role)
}

func TestProcessComplexQueryEscalates(t *testing.T) {
	p, m := newTestPipeline(t)

	var gotCategory string
	var gotUrgent bool
	var gotEmbedding []float32
	m.matcher.matchFunc = func(_ context.Context, category string, embedding []float32, urgent bool) (expert.MatchResult, error) {
		gotCategory = category
		gotUrgent = urgent
		gotEmbedding = embedding
		return expert.MatchResult{Expert: expert.Profile{
			ID: 7, Name: "Alex Rivera", Specialties: []string{"cryptocurrency", "capital gains", "equity compensation"},
		}}, nil
	}

	resp, err := p.Process(context.Background(), QueryRequest{
		Query:  "How should I report my crypto staking rewards",
		UserID: "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, classify.IntentComplexTax, resp.Intent)
	assert.Equal(t, 4, resp.ComplexityScore)
	assert.Equal(t, route.DecisionHuman, resp.RouteDecision)
	require.NotNil(t, resp.Expert)
	assert.Equal(t, "Alex Rivera", resp.Expert.Expert.Name)
	assert.Contains(t, resp.Reasoning, "escalated to Alex Rivera")
	assert.Contains(t, resp.ResponseText,
		"I'll connect you with Alex Rivera, who specializes in cryptocurrency, capital gains.")

	assert.Equal(t, "complex_tax", gotCategory)
	assert.False(t, gotUrgent)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, gotEmbedding)
}

func TestProcessUrgentQueryForcesEscalation(t *testing.T) {
	p, m := newTestPipeline(t)

	var gotUrgent bool
	m.matcher.matchFunc = func(_ context.Context, _ string, _ []float32, urgent bool) (expert.MatchResult, error) {
		gotUrgent = urgent
		return expert.MatchResult{Expert: expert.Profile{ID: 3, Name: "Sam Chen"}}, nil
	}

	resp, err := p.Process(context.Background(), QueryRequest{
		Query:  "I received an IRS audit notice, help!",
		UserID: "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, classify.IntentUrgent, resp.Intent)
	assert.Equal(t, 5, resp.ComplexityScore)
	assert.Equal(t, route.DecisionHuman, resp.RouteDecision)
	assert.True(t, gotUrgent)
	require.NotNil(t, resp.Expert)
}

func TestProcessEmptyRetrievalReturnsDisclaimer(t *testing.T) {
	p, m := newTestPipeline(t)
	m.retriever.retrieveFunc = func(context.Context, string) ([]retrieval.Candidate, []float32, error) {
		return nil, []float32{0.1}, nil
	}
	m.generator.completeFunc = func(context.Context, llm.CompletionRequest) (string, error) {
		t.Error("generator should not run without grounding material")
		return "", nil
	}

	resp, err := p.Process(context.Background(), QueryRequest{
		Query:  "What is the standard deduction?",
		UserID: "user-1",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.ResponseText, insufficientGroundingAnswer))
	assert.Contains(t, resp.ResponseText, "I'll connect you with Alex Rivera")
	assert.InDelta(t, insufficientGroundingConfidence, resp.Confidence, 1e-9)
	assert.Equal(t, route.DecisionHuman, resp.RouteDecision)
	assert.Empty(t, resp.Sources)
}

func TestProcessGenerationFailureDegrades(t *testing.T) {
	p, m := newTestPipeline(t)
	m.generator.completeFunc = func(context.Context, llm.CompletionRequest) (string, error) {
		return "", fmt.Errorf("all providers failed")
	}

	resp, err := p.Process(context.Background(), QueryRequest{
		Query:  "What is the standard deduction?",
		UserID: "user-1",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.ResponseText, generationFailureAnswer))
	assert.InDelta(t, generationFailureConfidence, resp.Confidence, 1e-9)
	assert.Equal(t, route.DecisionHuman, resp.RouteDecision)
}

func TestProcessRerankReordersCandidates(t *testing.T) {
	p, m := newTestPipeline(t)
	m.reranker.rerankFunc = func(_ context.Context, _ string, documents []string, topN int) ([]rerank.Result, error) {
		assert.Len(t, documents, 2)
		assert.Equal(t, 2, topN)
		return []rerank.Result{
			{Index: 1, RelevanceScore: 0.95},
			{Index: 0, RelevanceScore: 0.30},
		}, nil
	}

	var assembled []retrieval.RankedCandidate
	m.assembler.assembleFunc = func(_ context.Context, candidates []retrieval.RankedCandidate) retrieval.Context {
		assembled = candidates
		return retrieval.Context{Text: "[1] reference text"}
	}

	_, err := p.Process(context.Background(), QueryRequest{
		Query:  "What is the standard deduction?",
		UserID: "user-1",
	})
	require.NoError(t, err)

	require.Len(t, assembled, 2)
	assert.Equal(t, int64(2), assembled[0].ID)
	assert.Equal(t, 1, assembled[0].Rank)
	assert.InDelta(t, 0.95, assembled[0].RelevanceScore, 1e-9)
	assert.Equal(t, int64(1), assembled[1].ID)
	assert.Equal(t, 2, assembled[1].Rank)
}

func TestProcessRerankFailureFallsBackToRetrievalOrder(t *testing.T) {
	p, m := newTestPipeline(t)
	m.reranker.rerankFunc = func(context.Context, string, []string, int) ([]rerank.Result, error) {
		return nil, errors.New("rerank service unavailable")
	}

	var assembled []retrieval.RankedCandidate
	m.assembler.assembleFunc = func(_ context.Context, candidates []retrieval.RankedCandidate) retrieval.Context {
		assembled = candidates
		return retrieval.Context{Text: "[1] reference text"}
	}

	resp, err := p.Process(context.Background(), QueryRequest{
		Query:  "What is the standard deduction?",
		UserID: "user-1",
	})
	require.NoError(t, err)

	require.Len(t, assembled, 2)
	assert.Equal(t, int64(1), assembled[0].ID)
	assert.Equal(t, 1, assembled[0].Rank)
	assert.Zero(t, assembled[0].RelevanceScore)
	assert.Equal(t, int64(2), assembled[1].ID)

	// Without rerank scores confidence rests on similarity alone:
	// 0.8 * 1.5 clamps to the maximum.
	assert.InDelta(t, 0.95, resp.Confidence, 1e-9)
}

func TestProcessWithoutRerankerUsesRetrievalOrder(t *testing.T) {
	p, m := newTestPipeline(t)
	p.reranker = nil

	var assembled []retrieval.RankedCandidate
	m.assembler.assembleFunc = func(_ context.Context, candidates []retrieval.RankedCandidate) retrieval.Context {
		assembled = candidates
		return retrieval.Context{Text: "[1] reference text"}
	}

	_, err := p.Process(context.Background(), QueryRequest{
		Query:  "What is the standard deduction?",
		UserID: "user-1",
	})
	require.NoError(t, err)

	require.Len(t, assembled, 2)
	assert.Equal(t, int64(1), assembled[0].ID)
	assert.Equal(t, int64(2), assembled[1].ID)
}

func TestProcessInvalidQueryRejected(t *testing.T) {
	p, m := newTestPipeline(t)
	m.retriever.retrieveFunc = func(context.Context, string) ([]retrieval.Candidate, []float32, error) {
		t.Error("retrieval should not run for an invalid query")
		return nil, nil, nil
	}

	_, err := p.Process(context.Background(), QueryRequest{Query: "   ", UserID: "user-1"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestProcessRetrievalFailureReturnsError(t *testing.T) {
	p, m := newTestPipeline(t)
	m.retriever.retrieveFunc = func(context.Context, string) ([]retrieval.Candidate, []float32, error) {
		return nil, nil, errors.New("both retrieval legs failed")
	}

	_, err := p.Process(context.Background(), QueryRequest{
		Query:  "What is the standard deduction?",
		UserID: "user-1",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retrieval failed")
}

func TestProcessExistingConversationRewritesQuery(t *testing.T) {
	p, m := newTestPipeline(t)

	existing := uuid.New()
	history := []conversation.Message{
		{Role: conversation.RoleUser, Content: "Can I claim the home office deduction?"},
		{Role: conversation.RoleAssistant, Content: "Yes, if used exclusively for business [1]."},
	}

	var gotLimit int
	m.conversations.historyFunc = func(_ context.Context, id uuid.UUID, limit int) ([]conversation.Message, error) {
		assert.Equal(t, existing, id)
		gotLimit = limit
		return history, nil
	}
	m.rewriter.completeFunc = func(context.Context, llm.CompletionRequest) (string, error) {
		return "Can my spouse also claim the home office deduction?", nil
	}

	var searchQuery string
	m.retriever.retrieveFunc = func(_ context.Context, query string) ([]retrieval.Candidate, []float32, error) {
		searchQuery = query
		return defaultCandidates(), []float32{0.1}, nil
	}

	resp, err := p.Process(context.Background(), QueryRequest{
		Query:          "What about my spouse?",
		UserID:         "user-1",
		ConversationID: &existing,
	})
	require.NoError(t, err)

	assert.Equal(t, existing, resp.ConversationID)
	assert.Equal(t, 10, gotLimit)
	assert.Equal(t, "Can my spouse also claim the home office deduction?", searchQuery)
}

func TestProcessUnknownConversationContinuesWithoutHistory(t *testing.T) {
	p, m := newTestPipeline(t)

	unknown := uuid.New()
	m.conversations.existsFunc = func(context.Context, uuid.UUID) (bool, error) {
		return false, nil
	}
	m.conversations.historyFunc = func(context.Context, uuid.UUID, int) ([]conversation.Message, error) {
		t.Error("history should not load for an unknown conversation")
		return nil, nil
	}

	resp, err := p.Process(context.Background(), QueryRequest{
		Query:          "What is the standard deduction?",
		UserID:         "user-1",
		ConversationID: &unknown,
	})
	require.NoError(t, err)

	assert.Equal(t, unknown, resp.ConversationID)
}

func TestProcessConversationCreateFailureStillAnswers(t *testing.T) {
	p, m := newTestPipeline(t)
	m.conversations.createFunc = func(context.Context, string) (uuid.UUID, error) {
		return uuid.Nil, errors.New("database unavailable")
	}

	resp, err := p.Process(context.Background(), QueryRequest{
		Query:  "What is the standard deduction?",
		UserID: "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, uuid.Nil, resp.ConversationID)
	assert.NotEmpty(t, resp.ResponseText)

	select {
	case msg := <-m.conversations.appended:
		t.Errorf("unexpected persisted message: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestProcessNoExpertAvailable(t *testing.T) {
	p, m := newTestPipeline(t)
	m.matcher.matchFunc = func(context.Context, string, []float32, bool) (expert.MatchResult, error) {
		return expert.MatchResult{}, expert.ErrNoExperts
	}

	resp, err := p.Process(context.Background(), QueryRequest{
		Query:  "How should I report my crypto staking rewards",
		UserID: "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, route.DecisionHuman, resp.RouteDecision)
	assert.Nil(t, resp.Expert)
	assert.Contains(t, resp.Reasoning, "without an assigned specialist")
}

func TestProcessIsDeterministicAcrossRuns(t *testing.T) {
	p, _ := newTestPipeline(t)
	req := QueryRequest{Query: "How should I report my crypto staking rewards", UserID: "user-1"}

	first, err := p.Process(context.Background(), req)
	require.NoError(t, err)

	for range 3 {
		resp, err := p.Process(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, first.Intent, resp.Intent)
		assert.Equal(t, first.ComplexityScore, resp.ComplexityScore)
		assert.Equal(t, first.RouteDecision, resp.RouteDecision)
		assert.Equal(t, first.Confidence, resp.Confidence)
	}
}
