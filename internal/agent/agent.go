// Package agent sequences one conversation turn: load state, retrieve
// knowledge, call the generation oracle, optionally invoke one tool, and
// persist the outcome.
package agent

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/arealhq/arealbot/internal/checkpoint"
	"github.com/arealhq/arealbot/internal/knowledge"
	"github.com/arealhq/arealbot/internal/rbac"
)

// ErrGeneration indicates the oracle failed after all retries.
var ErrGeneration = errors.New("generation failed")

// ToolCall is a structured tool request emitted by the oracle.
type ToolCall struct {
	Name string
	Args json.RawMessage
}

// Request is one generation call. History ends with the current user turn.
// ToolOutcome is empty on the first call of a turn and carries the tool
// summary (or an honest failure sentence) on the final call.
type Request struct {
	History     []checkpoint.Turn
	Retrieved   []knowledge.Chunk
	ToolOutcome string
	Role        rbac.Role
}

// Reply is the oracle's output: final text, a tool request, or both.
type Reply struct {
	Text     string
	ToolCall *ToolCall
}

// Oracle is the generation backend. It is external, slow, and
// nondeterministic; the orchestrator owns retries and rate limiting.
type Oracle interface {
	Generate(ctx context.Context, req Request) (*Reply, error)
}
