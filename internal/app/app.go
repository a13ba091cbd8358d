// Package app assembles the service: configuration, tracing, database pool,
// Genkit, stores, and the query pipeline. Construction is explicit and
// ordered; every component receives its dependencies through its
// constructor.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/taxline/taxline/db"
	"github.com/taxline/taxline/internal/config"
	"github.com/taxline/taxline/internal/conversation"
	"github.com/taxline/taxline/internal/embed"
	"github.com/taxline/taxline/internal/expert"
	"github.com/taxline/taxline/internal/knowledge"
	"github.com/taxline/taxline/internal/llm"
	"github.com/taxline/taxline/internal/log"
	"github.com/taxline/taxline/internal/observability"
	"github.com/taxline/taxline/internal/pipeline"
	"github.com/taxline/taxline/internal/rerank"
	"github.com/taxline/taxline/internal/retrieval"
)

// Generation requests across all models share one client-side limiter so a
// burst of traffic cannot exhaust the provider quota.
const (
	generateRequestsPerSecond = 5
	generateBurst             = 10
)

// App is the assembled service.
type App struct {
	Config        *config.Config
	Genkit        *genkit.Genkit
	DBPool        *pgxpool.Pool
	Knowledge     *knowledge.Store
	Embedder      *embed.Service
	Experts       *expert.Registry
	Conversations *conversation.Store
	Pipeline      *pipeline.Pipeline

	logger       log.Logger
	otelShutdown func(context.Context) error
}

// Setup builds the full service from configuration. It runs migrations,
// opens the database pool, initializes Genkit, and wires the pipeline.
// On error everything already opened is closed before returning.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	var otelShutdown func(context.Context) error
	if cfg.Datadog.Enabled {
		shutdown, err := observability.SetupDatadog(ctx, observability.Config{
			AgentHost:   cfg.Datadog.AgentHost,
			Environment: cfg.Datadog.Environment,
			ServiceName: cfg.Datadog.ServiceName,
		}, logger.With("component", "observability"))
		if err != nil {
			return nil, fmt.Errorf("setting up tracing: %w", err)
		}
		otelShutdown = shutdown
	}

	if err := db.Migrate(cfg.PostgresURL(), logger.With("component", "migrations")); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := newDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		pool.Close()
		return nil, fmt.Errorf("initializing genkit")
	}

	embedder := embed.New(googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel))

	knowledgeStore := knowledge.New(pool, logger.With("component", "knowledge"))
	conversations := conversation.New(pool, logger.With("component", "conversations"))
	experts := expert.NewRegistry(pool, logger.With("component", "experts"))
	matcher := expert.NewMatcher(experts, logger.With("component", "matcher"))

	retriever := retrieval.NewRetriever(knowledgeStore, embedder, cfg.Retrieval, cfg.Timeouts,
		logger.With("component", "retriever"))
	assembler := retrieval.NewAssembler(knowledgeStore, cfg.Retrieval,
		logger.With("component", "assembler"))

	var reranker rerank.Reranker
	if cfg.Rerank.Enabled {
		client, err := rerank.NewClient(cfg.Rerank.BaseURL, cfg.Rerank.APIKey, cfg.Rerank.Model,
			cfg.Timeouts.Rerank(), logger.With("component", "reranker"))
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("creating rerank client: %w", err)
		}
		reranker = client
	}

	generator, err := newGeneratorChain(g, cfg, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	contextualizer := pipeline.NewContextualizer(generator, cfg.Timeouts.Contextualize(),
		logger.With("component", "contextualizer"))

	pipe := pipeline.New(
		retriever,
		assembler,
		reranker,
		generator,
		contextualizer,
		conversations,
		matcher,
		cfg,
		logger.With("component", "pipeline"),
	)

	return &App{
		Config:        cfg,
		Genkit:        g,
		DBPool:        pool,
		Knowledge:     knowledgeStore,
		Embedder:      embedder,
		Experts:       experts,
		Conversations: conversations,
		Pipeline:      pipe,
		logger:        logger,
		otelShutdown:  otelShutdown,
	}, nil
}

// Close releases the pool and flushes pending trace spans.
func (a *App) Close() error {
	a.logger.Info("shutting down")

	if a.DBPool != nil {
		a.DBPool.Close()
		a.logger.Info("database pool closed")
	}

	if a.otelShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otelShutdown(shutdownCtx); err != nil {
			a.logger.Warn("tracer shutdown failed", "error", err)
		}
	}

	return nil
}

func newDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Fail fast if the database is unreachable.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// newGeneratorChain builds the ordered provider chain: the primary model
// first, then each configured fallback. All clients share one rate limiter.
func newGeneratorChain(g *genkit.Genkit, cfg *config.Config, logger log.Logger) (llm.Client, error) {
	limiter := rate.NewLimiter(rate.Limit(generateRequestsPerSecond), generateBurst)

	genConfig := llm.GenerationConfig{
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}

	models := append([]string{cfg.ModelName}, cfg.FallbackModels...)
	clients := make([]llm.Client, 0, len(models))
	for _, model := range models {
		clients = append(clients, llm.NewGenkitClient(
			g, model, genConfig, llm.DefaultRetryConfig(), limiter,
			logger.With("component", "llm", "model", model),
		))
	}

	chain, err := llm.NewChain(clients, cfg.Timeouts.Generate(), logger.With("component", "llm_chain"))
	if err != nil {
		return nil, fmt.Errorf("creating provider chain: %w", err)
	}
	return chain, nil
}
