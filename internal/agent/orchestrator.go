package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/arealhq/arealbot/internal/checkpoint"
	"github.com/arealhq/arealbot/internal/knowledge"
	"github.com/arealhq/arealbot/internal/log"
	"github.com/arealhq/arealbot/internal/rbac"
	"github.com/arealhq/arealbot/internal/tool"
)

const (
	// retrievalRetries bounds similarity-search retries before the turn
	// degrades to empty context.
	retrievalRetries = 2

	retrievalRetryDelay = 200 * time.Millisecond
)

// apologyReply is returned when generation is exhausted. The inbound
// message is still recorded; only the answer is missing.
const apologyReply = "Sorry, I cannot answer right now. Please try again in a moment."

// Retriever fetches role-filtered knowledge for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, role rbac.Role, opts ...knowledge.RetrieveOption) ([]knowledge.Chunk, error)
}

// Invoker dispatches validated tool calls.
type Invoker interface {
	Invoke(ctx context.Context, name string, args json.RawMessage) (*tool.Result, error)
	Mutating(name string) bool
}

// CheckpointStore persists per-thread conversation state.
type CheckpointStore interface {
	Load(ctx context.Context, threadID string) (checkpoint.State, error)
	Save(ctx context.Context, state checkpoint.State) error
}

// TurnResult is the outcome of one processed message. Persisted reports
// whether the turn reached durable storage; false means the reply was
// delivered best-effort and operators should be alerted.
type TurnResult struct {
	Reply     string
	Persisted bool
}

// Config assembles an Orchestrator.
type Config struct {
	Oracle      Oracle
	Retriever   Retriever
	Tools       Invoker
	Checkpoints CheckpointStore

	// Retry overrides the oracle retry policy. Zero value uses defaults.
	Retry RetryConfig

	// RateLimit caps oracle calls per second. Zero disables limiting.
	RateLimit float64

	// HistoryTokens is the history window token budget. Zero uses the
	// default.
	HistoryTokens int

	// HistoryMessages caps the history window by turn count, applied
	// before the token budget. Zero disables the cap.
	HistoryMessages int

	Logger log.Logger
}

// Orchestrator runs the per-turn state machine. Safe for concurrent use;
// turns on the same thread serialize on the thread lock.
type Orchestrator struct {
	oracle      Oracle
	retriever   Retriever
	tools       Invoker
	checkpoints CheckpointStore
	locks       *checkpoint.ThreadLocks
	limiter     *rate.Limiter
	retry       RetryConfig
	tokenBudget int
	msgBudget   int
	logger      log.Logger
}

// New creates an Orchestrator from cfg.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Oracle == nil {
		return nil, fmt.Errorf("oracle is required")
	}
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if cfg.Tools == nil {
		return nil, fmt.Errorf("tool invoker is required")
	}
	if cfg.Checkpoints == nil {
		return nil, fmt.Errorf("checkpoint store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}

	retryCfg := cfg.Retry
	if retryCfg.MaxRetries == 0 && retryCfg.InitialInterval == 0 {
		retryCfg = DefaultRetryConfig()
	}

	budget := cfg.HistoryTokens
	if budget == 0 {
		budget = defaultHistoryTokens
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &Orchestrator{
		oracle:      cfg.Oracle,
		retriever:   cfg.Retriever,
		tools:       cfg.Tools,
		checkpoints: cfg.Checkpoints,
		locks:       checkpoint.NewThreadLocks(),
		limiter:     limiter,
		retry:       retryCfg,
		tokenBudget: budget,
		msgBudget:   cfg.HistoryMessages,
		logger:      cfg.Logger,
	}, nil
}

// Turn processes one inbound message and returns the reply. A concurrent
// Turn for the same thread queues behind this one; different threads run
// in parallel.
//
// On generation exhaustion the user gets an apology; the inbound message
// (and a tool outcome, when one ran) is still written to the checkpoint so
// the conversation survives, but no fabricated answer ever is.
func (o *Orchestrator) Turn(ctx context.Context, threadID string, role rbac.Role, text string) (*TurnResult, error) {
	if threadID == "" {
		return nil, fmt.Errorf("thread ID is required")
	}
	if text == "" {
		return nil, fmt.Errorf("message text is required")
	}

	release := o.locks.Acquire(threadID)
	defer release()

	state, err := o.checkpoints.Load(ctx, threadID)
	if err != nil {
		// Severe but survivable: answer from an empty state and let the
		// caller see Persisted=false if the save also fails.
		o.logger.Error("checkpoint load failed, continuing with empty state",
			"thread_id", threadID,
			"error", err)
		state = checkpoint.State{ThreadID: threadID}
	}

	userTurn := checkpoint.Turn{
		Speaker: checkpoint.SpeakerUser,
		Text:    text,
		At:      time.Now().UTC(),
	}

	retrieved := o.retrieveBounded(ctx, text, role)
	window := o.truncateHistory(append(state.History, userTurn), o.tokenBudget)

	reply, err := o.generateWithRetry(ctx, Request{
		History:   window,
		Retrieved: retrieved,
		Role:      role,
	})
	if err != nil {
		o.logger.Error("generation exhausted",
			"thread_id", threadID,
			"error", err)
		return o.apologize(ctx, state, userTurn), nil
	}

	finalText := reply.Text
	turns := []checkpoint.Turn{userTurn}
	if reply.ToolCall != nil {
		outcome := o.invokeTool(ctx, threadID, reply.ToolCall)
		turns = append(turns, checkpoint.Turn{
			Speaker: checkpoint.SpeakerTool,
			Text:    outcome,
			At:      time.Now().UTC(),
		})

		finalText, err = o.reportOutcome(ctx, threadID, role, window, retrieved, outcome)
		if err != nil {
			o.logger.Error("generation exhausted after tool call",
				"thread_id", threadID,
				"tool", reply.ToolCall.Name,
				"error", err)
			return o.apologize(ctx, state, turns...), nil
		}
	}

	turns = append(turns, checkpoint.Turn{
		Speaker: checkpoint.SpeakerAssistant,
		Text:    finalText,
		At:      time.Now().UTC(),
	})

	persisted := true
	if err := o.checkpoints.Save(ctx, state.Append(turns...)); err != nil {
		persisted = false
		o.logger.Error("checkpoint save failed, reply delivered without durable memory",
			"thread_id", threadID,
			"error", err)
	}

	return &TurnResult{Reply: finalText, Persisted: persisted}, nil
}

// apologize ends a turn whose generation exhausted. The turns produced so
// far (the inbound message, plus the tool outcome when one ran) are still
// written so they survive into the next turn's history; only the fabricated
// answer is withheld.
func (o *Orchestrator) apologize(ctx context.Context, state checkpoint.State, turns ...checkpoint.Turn) *TurnResult {
	persisted := true
	if err := o.checkpoints.Save(ctx, state.Append(turns...)); err != nil {
		persisted = false
		o.logger.Error("checkpoint save failed on apology path",
			"thread_id", state.ThreadID,
			"error", err)
	}
	return &TurnResult{Reply: apologyReply, Persisted: persisted}
}

// invokeTool dispatches one tool request and renders its outcome. Tools
// are invoked at most once per turn: a failed invocation is surfaced as an
// honest sentence, never retried. The invocation key is unique per logical
// request so downstream dedup never conflates distinct user intents.
func (o *Orchestrator) invokeTool(ctx context.Context, threadID string, call *ToolCall) string {
	invokeCtx := tool.WithInvocationKey(ctx,
		fmt.Sprintf("%s:%s", threadID, uuid.NewString()))

	result, err := o.tools.Invoke(invokeCtx, call.Name, call.Args)
	if err != nil {
		o.logger.Warn("tool invocation failed",
			"thread_id", threadID,
			"tool", call.Name,
			"mutating", o.tools.Mutating(call.Name),
			"error", err)
		return fmt.Sprintf("The %s action could not be completed. Tell the user honestly and offer the fallback contact.", call.Name)
	}
	return result.Summary
}

// reportOutcome runs the final generation over a tool outcome. A second
// tool request is ignored in favor of the outcome summary.
func (o *Orchestrator) reportOutcome(
	ctx context.Context,
	threadID string,
	role rbac.Role,
	window []checkpoint.Turn,
	retrieved []knowledge.Chunk,
	outcome string,
) (string, error) {
	final, err := o.generateWithRetry(ctx, Request{
		History:     window,
		Retrieved:   retrieved,
		ToolOutcome: outcome,
		Role:        role,
	})
	if err != nil {
		return "", err
	}
	if final.ToolCall != nil {
		o.logger.Warn("second tool request in one turn ignored",
			"thread_id", threadID,
			"tool", final.ToolCall.Name)
	}
	if final.Text == "" {
		return outcome, nil
	}
	return final.Text, nil
}

// retrieveBounded retries similarity search a bounded number of times and
// degrades to empty context on exhaustion. An empty result set is a valid
// answer and is returned as-is without retrying.
func (o *Orchestrator) retrieveBounded(ctx context.Context, query string, role rbac.Role) []knowledge.Chunk {
	var lastErr error
	for attempt := 0; attempt <= retrievalRetries; attempt++ {
		chunks, err := o.retriever.Retrieve(ctx, query, role)
		if err == nil {
			return chunks
		}
		lastErr = err

		if attempt == retrievalRetries {
			break
		}
		select {
		case <-ctx.Done():
			o.logger.Warn("retrieval canceled", "error", ctx.Err())
			return nil
		case <-time.After(retrievalRetryDelay):
		}
	}

	o.logger.Warn("retrieval failed, answering with empty context",
		"error", lastErr)
	return nil
}
