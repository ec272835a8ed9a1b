// Package app builds the application object graph.
//
// Setup wires configuration, storage, the genkit runtime, the knowledge
// base, CRM tools, and the orchestrator into one container. Entry points
// (serve, ask, ingest) call Setup and use only the pieces they need.
package app

import (
	"context"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arealhq/arealbot/internal/agent"
	"github.com/arealhq/arealbot/internal/checkpoint"
	"github.com/arealhq/arealbot/internal/config"
	"github.com/arealhq/arealbot/internal/feedback"
	"github.com/arealhq/arealbot/internal/knowledge"
	"github.com/arealhq/arealbot/internal/log"
	"github.com/arealhq/arealbot/internal/tool"
)

// App is the application container. Fields are populated by Setup and
// released by Close.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Pool     *pgxpool.Pool

	Knowledge    *knowledge.Store
	Retriever    *knowledge.Retriever
	Checkpoints  *checkpoint.Store
	Tools        *tool.Registry
	Orchestrator *agent.Orchestrator
	Feedback     *feedback.Store

	traceShutdown func(context.Context) error
}

// Close releases all resources in reverse initialization order.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.traceShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.traceShutdown(ctx); err != nil && a.Logger != nil {
			a.Logger.Warn("shutting down tracer provider", "error", err)
		}
	}

	if a.Pool != nil {
		a.Pool.Close()
		if a.Logger != nil {
			a.Logger.Info("database pool closed")
		}
	}

	return nil
}
