package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/jsonschema-go/jsonschema"
)

// Tool is one registered tool: metadata, an inferred input schema used for
// pre-execution validation, and a type-erased executor.
type Tool struct {
	name        Name
	description string
	schema      *jsonschema.Resolved

	// run is the type-erased executor over raw JSON input.
	run func(ctx context.Context, raw json.RawMessage) (any, error)

	// define registers the tool with Genkit so Generate can advertise it.
	define func(g *genkit.Genkit) ai.Tool
}

// Name returns the tool's identifier.
func (t *Tool) Name() Name { return t.name }

// Description returns the text the model uses to decide when to call the tool.
func (t *Tool) Description() string { return t.description }

// NewTool creates a tool with type-safe input and output handling.
//
// The input schema is inferred from In at construction time and enforced by
// the registry before the handler runs. Type erasure happens internally so
// tools with different shapes share one registry.
func NewTool[In, Out any](name Name, description string, handler func(ctx context.Context, input In) (Out, error)) (*Tool, error) {
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		return nil, fmt.Errorf("infer schema for %s: %w", name, err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve schema for %s: %w", name, err)
	}

	run := func(ctx context.Context, raw json.RawMessage) (any, error) {
		var input In
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &input); err != nil {
				return nil, fmt.Errorf("decode %s input: %w", name, err)
			}
		}
		return handler(ctx, input)
	}

	define := func(g *genkit.Genkit) ai.Tool {
		return genkit.DefineTool(g, string(name), description,
			func(tctx *ai.ToolContext, input In) (Out, error) {
				return handler(tctx, input)
			})
	}

	return &Tool{
		name:        name,
		description: description,
		schema:      resolved,
		run:         run,
		define:      define,
	}, nil
}

// validate checks raw input against the tool's inferred schema.
func (t *Tool) validate(raw json.RawMessage) error {
	var instance any
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("input is not valid JSON: %w", err)
	}
	if err := t.schema.Validate(instance); err != nil {
		return fmt.Errorf("input does not match schema: %w", err)
	}
	return nil
}
