// Package generate adapts a genkit model into the orchestrator's oracle.
//
// Tool descriptors are registered with genkit only so the model can emit
// structured tool requests; execution always happens in the tool registry,
// never inside genkit (WithReturnToolRequests, max one model turn).
package generate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/jsonschema-go/jsonschema"
	invopop "github.com/invopop/jsonschema"

	"github.com/arealhq/arealbot/internal/agent"
	"github.com/arealhq/arealbot/internal/log"
	"github.com/arealhq/arealbot/internal/tool"
)

// Config assembles an Oracle.
type Config struct {
	Genkit          *genkit.Genkit
	ModelName       string // provider/model, e.g. "googleai/gemini-2.5-flash"
	FallbackContact string
	Tools           []tool.Descriptor
	Logger          log.Logger
}

// Oracle implements agent.Oracle on a genkit model.
type Oracle struct {
	g               *genkit.Genkit
	modelName       string
	fallbackContact string
	toolRefs        []ai.ToolRef
	logger          log.Logger
}

var _ agent.Oracle = (*Oracle)(nil)

// New creates an Oracle and registers the tool descriptors with genkit.
func New(cfg Config) (*Oracle, error) {
	if cfg.Genkit == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if cfg.FallbackContact == "" {
		return nil, fmt.Errorf("fallback contact is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}

	toolRefs := make([]ai.ToolRef, 0, len(cfg.Tools))
	for _, d := range cfg.Tools {
		schema, err := convertSchema(d.Schema)
		if err != nil {
			return nil, fmt.Errorf("schema for tool %s: %w", d.Name, err)
		}
		raw, err := json.Marshal(schema)
		if err != nil {
			return nil, fmt.Errorf("schema for tool %s: %w", d.Name, err)
		}
		var schemaMap map[string]any
		if err := json.Unmarshal(raw, &schemaMap); err != nil {
			return nil, fmt.Errorf("schema for tool %s: %w", d.Name, err)
		}
		name := d.Name
		t := genkit.DefineToolWithInputSchema(cfg.Genkit, name, d.Description, schemaMap,
			func(*ai.ToolContext, any) (any, error) {
				// Never reached: tool requests are returned to the
				// orchestrator, not executed by genkit.
				return nil, fmt.Errorf("tool %s must be dispatched by the registry", name)
			})
		toolRefs = append(toolRefs, t)
	}

	return &Oracle{
		g:               cfg.Genkit,
		modelName:       cfg.ModelName,
		fallbackContact: cfg.FallbackContact,
		toolRefs:        toolRefs,
		logger:          cfg.Logger,
	}, nil
}

// Generate runs one model call. The first call of a turn offers tools; the
// final call (ToolOutcome set) does not, so a turn carries at most one tool
// invocation.
func (o *Oracle) Generate(ctx context.Context, req agent.Request) (*agent.Reply, error) {
	msgs := historyMessages(req.History, req.ToolOutcome)

	opts := []ai.GenerateOption{
		ai.WithModelName(o.modelName),
		ai.WithSystem(o.systemPrompt(req.Role, req.Retrieved)),
		ai.WithMessages(msgs...),
		ai.WithMaxTurns(1),
	}
	if len(o.toolRefs) > 0 && req.ToolOutcome == "" {
		opts = append(opts,
			ai.WithTools(o.toolRefs...),
			ai.WithReturnToolRequests(true))
	}

	resp, err := genkit.Generate(ctx, o.g, opts...)
	if err != nil {
		return nil, fmt.Errorf("model generate: %w", err)
	}

	reply := &agent.Reply{Text: resp.Text()}
	if requests := resp.ToolRequests(); len(requests) > 0 {
		first := requests[0]
		args, err := json.Marshal(first.Input)
		if err != nil {
			return nil, fmt.Errorf("encode tool arguments for %s: %w", first.Name, err)
		}
		reply.ToolCall = &agent.ToolCall{Name: first.Name, Args: args}
		if len(requests) > 1 {
			o.logger.Warn("model requested multiple tools, using the first",
				"count", len(requests),
				"tool", first.Name)
		}
	}

	return reply, nil
}

// convertSchema re-encodes a descriptor schema into genkit's schema type.
// Both sides speak standard JSON Schema, so a marshal round trip suffices.
func convertSchema(s *jsonschema.Schema) (*invopop.Schema, error) {
	if s == nil {
		return nil, fmt.Errorf("schema is required")
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	var out invopop.Schema
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	return &out, nil
}
