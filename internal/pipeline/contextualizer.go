package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/taxline/taxline/internal/conversation"
	"github.com/taxline/taxline/internal/llm"
	"github.com/taxline/taxline/internal/log"
)

// Contextualizer rewrites follow-up questions into standalone queries so
// retrieval sees the full subject, not just the latest fragment.
type Contextualizer struct {
	client  llm.Client
	timeout time.Duration
	logger  log.Logger
}

// NewContextualizer creates a Contextualizer.
func NewContextualizer(client llm.Client, timeout time.Duration, logger log.Logger) *Contextualizer {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Contextualizer{client: client, timeout: timeout, logger: logger}
}

// Contextualize returns a standalone reformulation of query given the
// conversation history. With empty history the query is returned unchanged.
// This step is best-effort: on any model failure or empty rewrite, the
// original query is returned so the pipeline never blocks on it.
func (c *Contextualizer) Contextualize(ctx context.Context, query string, history []conversation.Message) string {
	if len(history) == 0 {
		return query
	}

	rewriteCtx := ctx
	var cancel context.CancelFunc
	if c.timeout > 0 {
		rewriteCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	rewritten, err := c.client.Complete(rewriteCtx, buildContextualizeRequest(query, history))
	if err != nil {
		c.logger.Warn("query contextualization failed, using original query", "error", err)
		return query
	}

	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return query
	}

	c.logger.Debug("query contextualized",
		"original_len", len(query), "rewritten_len", len(rewritten))
	return rewritten
}
