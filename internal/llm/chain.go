package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/taxline/taxline/internal/log"
)

// Chain tries an ordered list of clients until one succeeds. Each client
// gets its own timeout so one hanging provider cannot consume the whole
// request budget.
type Chain struct {
	clients    []Client
	perTimeout time.Duration
	logger     log.Logger
}

// NewChain creates a fallback chain. Clients are tried in the given order.
func NewChain(clients []Client, perClientTimeout time.Duration, logger log.Logger) (*Chain, error) {
	if len(clients) == 0 {
		return nil, errors.New("fallback chain needs at least one client")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Chain{clients: clients, perTimeout: perClientTimeout, logger: logger}, nil
}

// Name identifies the chain by its primary client.
func (c *Chain) Name() string {
	return "chain:" + c.clients[0].Name()
}

// Complete tries each client in order. An ErrInvalidRequest stops the chain
// immediately since every provider would reject the same request; any other
// failure moves on to the next client. When all clients fail, the returned
// error wraps ErrAllProvidersFailed and the last client's error.
func (c *Chain) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	var lastErr error

	for i, client := range c.clients {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("fallback chain canceled: %w", err)
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if c.perTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, c.perTimeout)
		}

		text, err := client.Complete(attemptCtx, req)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback provider answered", "provider", client.Name(), "position", i)
			}
			return text, nil
		}

		lastErr = err
		if errors.Is(err, ErrInvalidRequest) {
			return "", fmt.Errorf("provider %s rejected request: %w", client.Name(), err)
		}
		c.logger.Warn("provider failed, trying next", "provider", client.Name(), "error", err)
	}

	return "", fmt.Errorf("%w (%d tried): %w", ErrAllProvidersFailed, len(c.clients), lastErr)
}
