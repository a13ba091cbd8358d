package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/taxline/taxline/internal/log"
)

// RetryConfig configures retry behavior for model calls.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns sensible defaults for LLM API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// GenerationConfig bounds sampling for a model client. The zero value
// leaves generation parameters to the provider's defaults.
type GenerationConfig struct {
	Temperature float32
	MaxTokens   int
}

// GenkitClient completes requests through a single Genkit model, with
// rate limiting and exponential backoff on transient failures.
type GenkitClient struct {
	g           *genkit.Genkit
	modelName   string
	genConfig   GenerationConfig
	retryConfig RetryConfig
	rateLimiter *rate.Limiter
	logger      log.Logger
}

// NewGenkitClient creates a client for one model. A nil rate limiter
// disables client-side rate limiting.
func NewGenkitClient(g *genkit.Genkit, modelName string, genConfig GenerationConfig, retryConfig RetryConfig, rateLimiter *rate.Limiter, logger log.Logger) *GenkitClient {
	if logger == nil {
		logger = log.NewNop()
	}
	return &GenkitClient{
		g:           g,
		modelName:   modelName,
		genConfig:   genConfig,
		retryConfig: retryConfig,
		rateLimiter: rateLimiter,
		logger:      logger,
	}
}

// Name returns the model name this client generates with.
func (c *GenkitClient) Name() string { return c.modelName }

// generateOptions translates a completion request into genkit generate
// options, including the client's sampling bounds when configured.
func (c *GenkitClient) generateOptions(req CompletionRequest) []ai.GenerateOption {
	messages := make([]*ai.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			messages = append(messages, ai.NewModelTextMessage(m.Content))
		case RoleSystem:
			messages = append(messages, ai.NewSystemTextMessage(m.Content))
		default:
			messages = append(messages, ai.NewUserTextMessage(m.Content))
		}
	}

	opts := []ai.GenerateOption{
		ai.WithModelName(c.modelName),
		ai.WithMessages(messages...),
	}
	if req.System != "" {
		opts = append(opts, ai.WithSystem(req.System))
	}
	if c.genConfig != (GenerationConfig{}) {
		opts = append(opts, ai.WithConfig(&genai.GenerateContentConfig{
			Temperature:     genai.Ptr(c.genConfig.Temperature),
			MaxOutputTokens: int32(c.genConfig.MaxTokens),
		}))
	}
	return opts
}

// Complete generates the assistant's next message, retrying transient
// failures with exponential backoff. Each attempt is rate limited.
func (c *GenkitClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	opts := c.generateOptions(req)

	var lastErr error
	delay := c.retryConfig.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if c.rateLimiter != nil {
			if err := c.rateLimiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := genkit.Generate(ctx, c.g, opts...)
		if err == nil {
			c.logger.Debug("generation complete",
				"model", c.modelName,
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return resp.Text(), nil
		}

		lastErr = classify(err)

		if !retryable(lastErr) {
			return "", fmt.Errorf("generate with %s: %w", c.modelName, lastErr)
		}
		if attempt == c.retryConfig.MaxRetries {
			break
		}

		c.logger.Debug("retrying after error",
			"model", c.modelName,
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, c.retryConfig.MaxInterval)
		}
	}

	return "", fmt.Errorf("generate with %s after %d retries (elapsed %v): %w",
		c.modelName, c.retryConfig.MaxRetries, time.Since(start), lastErr)
}
