package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arealhq/arealbot/db"
	"github.com/arealhq/arealbot/internal/agent"
	"github.com/arealhq/arealbot/internal/checkpoint"
	"github.com/arealhq/arealbot/internal/config"
	"github.com/arealhq/arealbot/internal/crm"
	"github.com/arealhq/arealbot/internal/feedback"
	"github.com/arealhq/arealbot/internal/generate"
	"github.com/arealhq/arealbot/internal/knowledge"
	"github.com/arealhq/arealbot/internal/log"
	"github.com/arealhq/arealbot/internal/observability"
	"github.com/arealhq/arealbot/internal/tool"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	a := &App{Config: cfg}
	a.Logger = provideLogger(cfg)

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				a.Logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	shutdown, err := provideTracing(ctx, cfg, a.Logger)
	if err != nil {
		return nil, err
	}
	a.traceShutdown = shutdown

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	g, err := provideGenkit(ctx, cfg, a.Logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	a.Knowledge = knowledge.NewStore(knowledge.NewPgxQuerier(pool), embedder,
		a.Logger.With("component", "knowledge"))
	a.Retriever = knowledge.NewRetriever(a.Knowledge, cfg.TopK, cfg.ScoreThreshold,
		a.Logger.With("component", "retriever"))

	a.Checkpoints = checkpoint.NewStore(checkpoint.NewPgxQuerier(pool), pool,
		a.Logger.With("component", "checkpoint"))

	registry, err := provideTools(cfg, a.Logger)
	if err != nil {
		return nil, err
	}
	a.Tools = registry

	oracle, err := generate.New(generate.Config{
		Genkit:          g,
		ModelName:       cfg.Provider + "/" + cfg.ModelName,
		FallbackContact: cfg.FallbackContact,
		Tools:           registry.Descriptors(),
		Logger:          a.Logger.With("component", "generate"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating oracle: %w", err)
	}

	orch, err := agent.New(agent.Config{
		Oracle:          oracle,
		Retriever:       a.Retriever,
		Tools:           registry,
		Checkpoints:     a.Checkpoints,
		RateLimit:       cfg.RateLimit,
		HistoryMessages: cfg.MaxHistoryMessages,
		Logger:          a.Logger.With("component", "orchestrator"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}
	a.Orchestrator = orch

	a.Feedback = feedback.NewStore(feedback.NewPgxQuerier(pool),
		a.Logger.With("component", "feedback"))

	return a, nil
}

// provideLogger builds the root logger from the configured level and format.
func provideLogger(cfg *config.Config) log.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return log.New(log.Config{Level: level, JSON: cfg.LogJSON})
}

// provideTracing wires the OTLP exporter before genkit initialization so
// the tracer provider is ready when spans start. An empty endpoint leaves
// tracing disabled.
func provideTracing(ctx context.Context, cfg *config.Config, logger log.Logger) (func(context.Context) error, error) {
	if cfg.OTLPEndpoint == "" {
		return nil, nil
	}
	return observability.Setup(ctx, observability.Config{
		CollectorHost: cfg.OTLPEndpoint,
		ServiceName:   cfg.ServiceName,
	}, logger)
}

// provideDBPool runs migrations and creates a PostgreSQL connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

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

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideGenkit initializes genkit with the configured AI provider plugin.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
	default: // googleai
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with googleai provider")
		}
	}

	logger.Info("initialized genkit", "provider", cfg.Provider, "model", cfg.ModelName)
	return g, nil
}

// provideEmbedder looks up the embedder registered by the provider plugin.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideTools builds the tool registry. Without a CRM base URL the
// registry is empty and the model cannot request CRM actions.
func provideTools(cfg *config.Config, logger log.Logger) (*tool.Registry, error) {
	if cfg.CRMBaseURL == "" {
		logger.Info("CRM not configured, tool registry is empty")
		return tool.NewRegistry(logger.With("component", "tools"))
	}

	client, err := crm.NewHTTPClient(cfg.CRMBaseURL, cfg.CRMToken,
		logger.With("component", "crm"))
	if err != nil {
		return nil, fmt.Errorf("creating CRM client: %w", err)
	}

	toolset, err := crm.NewToolset(client, logger.With("component", "crm"))
	if err != nil {
		return nil, fmt.Errorf("creating CRM toolset: %w", err)
	}

	descriptors, err := toolset.Descriptors()
	if err != nil {
		return nil, fmt.Errorf("building CRM tool descriptors: %w", err)
	}

	return tool.NewRegistry(logger.With("component", "tools"), descriptors...)
}
