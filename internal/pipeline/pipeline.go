// Package pipeline orchestrates the query-routing flow: classify, retrieve,
// rerank, assemble, generate, score confidence, and decide between an AI
// answer and escalation to a human specialist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/taxline/taxline/internal/classify"
	"github.com/taxline/taxline/internal/config"
	"github.com/taxline/taxline/internal/conversation"
	"github.com/taxline/taxline/internal/expert"
	"github.com/taxline/taxline/internal/llm"
	"github.com/taxline/taxline/internal/log"
	"github.com/taxline/taxline/internal/rerank"
	"github.com/taxline/taxline/internal/retrieval"
	"github.com/taxline/taxline/internal/route"
)

// Canned responses for degraded paths.
const (
	insufficientGroundingAnswer = "I don't have enough information in my knowledge base to answer this question confidently. Let me connect you with an expert who can provide personalized guidance."
	generationFailureAnswer     = "I encountered an issue generating a response. Let me connect you with an expert who can help."

	// Fixed confidence values for the degraded paths. Both sit below the
	// routing threshold so these responses always escalate.
	insufficientGroundingConfidence = 0.3
	generationFailureConfidence     = 0.2
)

// Retriever produces scored candidates and the query embedding.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]retrieval.Candidate, []float32, error)
}

// Assembler builds the citation-tagged context block.
type Assembler interface {
	Assemble(ctx context.Context, candidates []retrieval.RankedCandidate) retrieval.Context
}

// ConversationStore is the slice of the conversation store the pipeline
// uses.
type ConversationStore interface {
	Create(ctx context.Context, userID string) (uuid.UUID, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	AppendMessage(ctx context.Context, conversationID uuid.UUID, msg conversation.Message) error
	History(ctx context.Context, conversationID uuid.UUID, limit int) ([]conversation.Message, error)
}

// ExpertMatcher selects a specialist for escalated queries.
type ExpertMatcher interface {
	Match(ctx context.Context, category string, queryEmbedding []float32, urgent bool) (expert.MatchResult, error)
}

// Pipeline is the query-routing orchestrator. All dependencies are
// long-lived singletons injected at construction; Pipeline itself holds no
// per-request state and is safe for concurrent use.
type Pipeline struct {
	retriever      Retriever
	assembler      Assembler
	reranker       rerank.Reranker // nil disables reranking
	generator      llm.Client
	contextualizer *Contextualizer
	conversations  ConversationStore
	matcher        ExpertMatcher
	confidence     confidenceCalculator
	cfg            *config.Config
	logger         log.Logger
}

// New creates a Pipeline. A nil reranker disables the rerank stage, the
// retrieval ordering is used directly.
func New(
	retriever Retriever,
	assembler Assembler,
	reranker rerank.Reranker,
	generator llm.Client,
	contextualizer *Contextualizer,
	conversations ConversationStore,
	matcher ExpertMatcher,
	cfg *config.Config,
	logger log.Logger,
) *Pipeline {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Pipeline{
		retriever:      retriever,
		assembler:      assembler,
		reranker:       reranker,
		generator:      generator,
		contextualizer: contextualizer,
		conversations:  conversations,
		matcher:        matcher,
		confidence:     confidenceCalculator{cfg: cfg.Confidence},
		cfg:            cfg,
		logger:         logger,
	}
}

// Process answers one query end to end. Only invalid input and a total
// failure of every degraded path return an error; documented fallbacks keep
// everything else a best-effort response.
func (p *Pipeline) Process(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	query, err := validateQuery(req.Query)
	if err != nil {
		return nil, err
	}

	if timeout := p.cfg.Timeouts.Pipeline(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	conversationID, history := p.loadConversation(ctx, req)

	// Classification is pure and independent of retrieval, so it runs
	// alongside the contextualize-retrieve-rerank chain.
	var (
		intent     classify.Classification
		complexity classify.Complexity

		candidates []retrieval.RankedCandidate
		embedding  []float32
		assembled  retrieval.Context
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		intent = classify.ClassifyIntent(query)
		complexity = classify.ScoreComplexity(query, intent.Intent)
		return nil
	})
	g.Go(func() error {
		searchQuery := p.contextualizer.Contextualize(gctx, query, history)

		raw, emb, retrieveErr := p.retriever.Retrieve(gctx, searchQuery)
		if retrieveErr != nil {
			return retrieveErr
		}
		embedding = emb
		candidates = p.rerankCandidates(gctx, searchQuery, raw)
		assembled = p.assembler.Assemble(gctx, candidates)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	resp := &QueryResponse{
		ConversationID:   conversationID,
		Intent:           intent.Intent,
		IntentConfidence: intent.Confidence,
		ComplexityScore:  complexity.Score,
		Sources:          assembled.Sources,
		Reasoning:        complexity.Reasoning,
	}

	switch {
	case len(candidates) == 0:
		// Nothing cleared the similarity floor: answer with the explicit
		// disclaimer and bias routing toward escalation.
		resp.ResponseText = insufficientGroundingAnswer
		resp.Confidence = insufficientGroundingConfidence

	default:
		answer, genErr := p.generator.Complete(ctx, buildAnswerRequest(query, assembled.Text, history))
		if genErr != nil {
			p.logger.Error("answer generation failed on all providers", "error", genErr)
			resp.ResponseText = generationFailureAnswer
			resp.Confidence = generationFailureConfidence
		} else {
			resp.ResponseText = normalizeCitations(answer)
			resp.Confidence = p.confidence.compute(candidates, resp.ResponseText)
		}
	}

	resp.RouteDecision = route.Decide(
		route.Signals{
			Complexity: complexity.Score,
			Confidence: resp.Confidence,
			Urgent:     complexity.Urgent,
		},
		route.Thresholds{
			Complexity: p.cfg.Routing.ComplexityThreshold,
			Confidence: p.cfg.Routing.ConfidenceThreshold,
		},
	)

	if resp.RouteDecision == route.DecisionHuman {
		p.attachExpert(ctx, resp, embedding, complexity.Urgent)
	}

	p.persistExchange(ctx, conversationID, query, resp.ResponseText)

	p.logger.Info("query processed",
		"conversation_id", conversationID,
		"intent", resp.Intent,
		"complexity", resp.ComplexityScore,
		"route", resp.RouteDecision,
		"confidence", resp.Confidence,
		"sources", len(resp.Sources),
		"elapsed", time.Since(start),
	)
	return resp, nil
}

// loadConversation resolves the conversation id and reads the bounded
// history suffix. Store failures degrade to a fresh, history-less exchange
// rather than failing the query.
func (p *Pipeline) loadConversation(ctx context.Context, req QueryRequest) (uuid.UUID, []conversation.Message) {
	if req.ConversationID != nil {
		id := *req.ConversationID
		exists, err := p.conversations.Exists(ctx, id)
		if err != nil {
			p.logger.Warn("conversation lookup failed, continuing without history", "id", id, "error", err)
			return id, nil
		}
		if !exists {
			p.logger.Warn("unknown conversation id, continuing without history", "id", id)
			return id, nil
		}

		// Two messages per turn.
		history, err := p.conversations.History(ctx, id, p.cfg.MaxHistoryTurns*2)
		if err != nil {
			p.logger.Warn("history load failed, continuing without history", "id", id, "error", err)
			return id, nil
		}
		return id, history
	}

	id, err := p.conversations.Create(ctx, req.UserID)
	if err != nil {
		p.logger.Warn("conversation create failed, exchange will not persist", "error", err)
		return uuid.Nil, nil
	}
	return id, nil
}

// rerankCandidates reorders candidates with the cross-encoder and truncates
// to the final count. Rerank failure falls back to retrieval order, the
// pipeline degrades rather than failing the request.
func (p *Pipeline) rerankCandidates(ctx context.Context, query string, raw []retrieval.Candidate) []retrieval.RankedCandidate {
	finalCount := min(p.cfg.Retrieval.FinalCount, len(raw))
	if finalCount == 0 {
		return nil
	}

	if p.reranker != nil {
		rerankCtx := ctx
		if timeout := p.cfg.Timeouts.Rerank(); timeout > 0 {
			var cancel context.CancelFunc
			rerankCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		docs := make([]string, len(raw))
		for i, c := range raw {
			docs[i] = c.Content
		}

		results, err := p.reranker.Rerank(rerankCtx, query, docs, finalCount)
		if err == nil && len(results) > 0 {
			ranked := make([]retrieval.RankedCandidate, 0, len(results))
			for i, r := range results {
				ranked = append(ranked, retrieval.RankedCandidate{
					Candidate:      raw[r.Index],
					RelevanceScore: r.RelevanceScore,
					Rank:           i + 1,
				})
			}
			return ranked
		}
		if err != nil {
			p.logger.Warn("rerank failed, falling back to retrieval order", "error", err)
		}
	}

	ranked := make([]retrieval.RankedCandidate, 0, finalCount)
	for i, c := range raw[:finalCount] {
		ranked = append(ranked, retrieval.RankedCandidate{Candidate: c, Rank: i + 1})
	}
	return ranked
}

// attachExpert matches a specialist for an escalated query. No expert being
// available is not a failure, the escalation simply goes unassigned.
func (p *Pipeline) attachExpert(ctx context.Context, resp *QueryResponse, embedding []float32, urgent bool) {
	result, err := p.matcher.Match(ctx, string(resp.Intent), embedding, urgent)
	if err != nil {
		if errors.Is(err, expert.ErrNoExperts) {
			p.logger.Warn("no experts available for escalation", "intent", resp.Intent)
		} else {
			p.logger.Error("expert matching failed", "error", err)
		}
		resp.Reasoning += "; escalated without an assigned specialist"
		return
	}

	resp.Expert = &result
	resp.Reasoning += fmt.Sprintf("; escalated to %s", result.Expert.Name)
	resp.ResponseText += "\n\n" + expertIntroduction(result.Expert)
}

// expertIntroduction builds the handoff sentence naming the matched
// specialist and their top specialties.
func expertIntroduction(e expert.Profile) string {
	specialties := e.Specialties
	if len(specialties) > 2 {
		specialties = specialties[:2]
	}
	if len(specialties) == 0 {
		return fmt.Sprintf("I'll connect you with %s. They'll be with you shortly.", e.Name)
	}
	return fmt.Sprintf("I'll connect you with %s, who specializes in %s. They'll be with you shortly.",
		e.Name, strings.Join(specialties, ", "))
}

// persistExchange appends the user and assistant turns in the background so
// persistence never adds to user-visible latency.
func (p *Pipeline) persistExchange(ctx context.Context, conversationID uuid.UUID, query, answer string) {
	if conversationID == uuid.Nil {
		return
	}

	// Detach from the request's cancellation but bound the work.
	bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	go func() {
		defer cancel()

		if err := p.conversations.AppendMessage(bgCtx, conversationID, conversation.Message{
			Role: conversation.RoleUser, Content: query,
		}); err != nil {
			p.logger.Error("persisting user message failed", "conversation_id", conversationID, "error", err)
			return
		}
		if err := p.conversations.AppendMessage(bgCtx, conversationID, conversation.Message{
			Role: conversation.RoleAssistant, Content: answer,
		}); err != nil {
			p.logger.Error("persisting assistant message failed", "conversation_id", conversationID, "error", err)
		}
	}()
}
