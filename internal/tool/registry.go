package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
)

// entry pairs a descriptor with its resolved schema.
type entry struct {
	desc     Descriptor
	resolved *jsonschema.Resolved
}

// Registry maps tool names to validated handlers.
// Built once at startup via NewRegistry; immutable afterwards and therefore
// safe for concurrent use without locking.
type Registry struct {
	entries map[string]entry
	logger  *slog.Logger
}

// NewRegistry builds a registry from descriptors.
// Duplicate names, nil handlers and unresolvable schemas are construction
// errors: a broken tool table should fail startup, not a user turn.
func NewRegistry(logger *slog.Logger, descriptors ...Descriptor) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	entries := make(map[string]entry, len(descriptors))
	for _, d := range descriptors {
		if d.Name == "" {
			return nil, fmt.Errorf("tool descriptor with empty name")
		}
		if _, exists := entries[d.Name]; exists {
			return nil, fmt.Errorf("duplicate tool %q", d.Name)
		}
		if d.Handler == nil {
			return nil, fmt.Errorf("tool %q has nil handler", d.Name)
		}
		if d.Schema == nil {
			return nil, fmt.Errorf("tool %q has nil schema", d.Name)
		}

		resolved, err := d.Schema.Resolve(nil)
		if err != nil {
			return nil, fmt.Errorf("resolving schema for tool %q: %w", d.Name, err)
		}

		entries[d.Name] = entry{desc: d, resolved: resolved}
	}

	logger.Info("tool registry built", "tools", len(entries))
	return &Registry{entries: entries, logger: logger}, nil
}

// Names returns the registered tool names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}

// Descriptors returns the registered descriptors.
// The returned slice is a copy; the registry stays immutable.
func (r *Registry) Descriptors() []Descriptor {
	descs := make([]Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		descs = append(descs, e.desc)
	}
	return descs
}

// Mutating reports whether the named tool has external side effects.
// Unknown names report true: when in doubt, never auto-retry.
func (r *Registry) Mutating(name string) bool {
	e, ok := r.entries[name]
	if !ok {
		return true
	}
	return e.desc.Mutating
}

// Invoke validates raw arguments against the tool's schema and runs its
// handler. Failures are returned as *Error with the appropriate kind;
// the handler is never called for unknown tools or invalid arguments.
func (r *Registry) Invoke(ctx context.Context, name string, raw json.RawMessage) (*Result, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, &Error{Kind: UnknownTool, Tool: name}
	}

	// Validate against the schema before anything external happens.
	var instance any
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, &instance); err != nil {
		return nil, &Error{Kind: InvalidArguments, Tool: name, Detail: "arguments are not valid JSON", Err: err}
	}
	if err := e.resolved.Validate(instance); err != nil {
		return nil, &Error{Kind: InvalidArguments, Tool: name, Detail: err.Error(), Err: err}
	}

	summary, err := e.desc.Handler(ctx, raw)
	if err != nil {
		// Handlers may already return a typed error (e.g. to carry detail);
		// wrap everything else as an external failure.
		if te, ok := AsError(err); ok {
			return nil, te
		}
		return nil, &Error{Kind: ExternalFailure, Tool: name, Detail: err.Error(), Err: err}
	}

	r.logger.Debug("tool invoked", "tool", name)
	return &Result{Tool: name, Summary: summary}, nil
}
