package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/voyago/voyago/internal/log"
)

// ErrorPayload is returned to the conversation instead of a Go error:
// validation and domain failures are data the model reacts to, never
// reasons to abort the turn.
type ErrorPayload struct {
	Error string `json:"error"`
}

// Registry holds the registered tools and executes them by name.
// Stateless after construction; safe for concurrent use.
type Registry struct {
	g       *genkit.Genkit
	entries map[Name]*Tool
	order   []Name
	logger  log.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(g *genkit.Genkit, logger log.Logger) *Registry {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Registry{
		g:       g,
		entries: make(map[Name]*Tool),
		logger:  logger.With("component", "tools"),
	}
}

// Add registers a tool with the registry and with Genkit. Duplicate names
// are a programming error.
func (r *Registry) Add(tool *Tool) error {
	if _, exists := r.entries[tool.name]; exists {
		return fmt.Errorf("tool %s already registered", tool.name)
	}
	tool.define(r.g)
	r.entries[tool.name] = tool
	r.order = append(r.order, tool.name)
	return nil
}

// Refs returns the Genkit tool references for every registered tool, in
// registration order, for advertising to Generate.
func (r *Registry) Refs() []ai.ToolRef {
	refs := make([]ai.ToolRef, 0, len(r.order))
	for _, name := range r.order {
		if tool := genkit.LookupTool(r.g, string(name)); tool != nil {
			refs = append(refs, tool)
		}
	}
	return refs
}

// Execute runs one tool request and always produces a payload the
// conversation can consume:
//
//   - unknown tool name: error payload, nothing executes
//   - schema validation failure: error payload, the executor never runs
//   - executor error: error payload carrying the message
//
// The returned value is the executor output (or an ErrorPayload), ready to
// be wrapped in a tool-response message.
func (r *Registry) Execute(ctx context.Context, name Name, raw json.RawMessage) any {
	tool, ok := r.entries[name]
	if !ok {
		r.logger.Warn("unknown tool requested", "tool", name)
		return ErrorPayload{Error: fmt.Sprintf("unknown tool: %s", name)}
	}

	if err := tool.validate(raw); err != nil {
		r.logger.Warn("tool input rejected", "tool", name, "error", err)
		return ErrorPayload{Error: err.Error()}
	}

	out, err := tool.run(ctx, raw)
	if err != nil {
		r.logger.Error("tool execution failed", "tool", name, "error", err)
		return ErrorPayload{Error: err.Error()}
	}

	r.logger.Debug("tool executed", "tool", name)
	return out
}

// Count returns the number of registered tools.
func (r *Registry) Count() int { return len(r.entries) }
