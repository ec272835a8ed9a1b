// Package tool provides the process-wide registry of external actions the
// generation model may request.
//
// The registry is built once at startup from descriptors and is read-only for
// the process lifetime. Arguments are validated against each descriptor's
// JSON schema before the handler runs; invalid arguments never reach the
// external system.
package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// ErrorKind classifies tool invocation failures.
type ErrorKind int

const (
	// UnknownTool means the requested tool name is not registered.
	UnknownTool ErrorKind = iota
	// InvalidArguments means the arguments failed schema validation.
	// The external handler was never called.
	InvalidArguments
	// ExternalFailure means the handler ran and the external action failed.
	ExternalFailure
)

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case UnknownTool:
		return "unknown tool"
	case InvalidArguments:
		return "invalid arguments"
	case ExternalFailure:
		return "external failure"
	default:
		return "unknown kind"
	}
}

// Error is a typed tool invocation failure.
type Error struct {
	Kind   ErrorKind
	Tool   string
	Detail string
	Err    error // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("tool %q: %s: %s", e.Tool, e.Kind, e.Detail)
	}
	return fmt.Sprintf("tool %q: %s", e.Tool, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// AsError extracts a *Error from err, if present.
func AsError(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// Handler invokes the external action with schema-valid raw arguments and
// returns a compact, user-presentable summary of the outcome.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// Descriptor declares one invocable tool.
type Descriptor struct {
	// Name is the unique registry key, as the model knows the tool.
	Name string

	// Description tells the model when to use the tool.
	Description string

	// Schema validates the raw arguments before Handler runs.
	Schema *jsonschema.Schema

	// Mutating marks tools with external side effects (record creation).
	// The orchestrator never re-invokes a mutating tool automatically.
	Mutating bool

	// Handler performs the external action.
	Handler Handler
}

// Result is the outcome of a successful tool invocation.
type Result struct {
	Tool    string // tool name, for history bookkeeping
	Summary string // compact, user-presentable text
}
