// Package testutil provides deterministic test doubles for the model
// substrate.
package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// MockLLM provides deterministic model responses for testing.
//
// Responses can be scripted in order with Enqueue, which suits the
// orchestrator's multi-round turn loop: the first scripted response may
// request tools, the next one answers after the tool results arrive.
// When the script is empty, the last user message is matched against
// registered patterns; when nothing matches, the fallback text is returned.
//
// Thread-safe for concurrent use.
type MockLLM struct {
	mu        sync.Mutex
	script    []mockReply
	responses []mockRule
	fallback  string
	calls     []MockCall
}

type mockReply struct {
	response string
	tools    []*ai.ToolRequest
}

type mockRule struct {
	pattern string // substring match in user message
	reply   mockReply
}

// MockCall records a single call to the mock model.
type MockCall struct {
	UserMessage string // last user message text
	Response    string // response text returned
	ToolCount   int    // number of tool requests returned
}

// NewMockLLM creates a mock model with the given fallback response.
func NewMockLLM(fallback string) *MockLLM {
	return &MockLLM{fallback: fallback}
}

// Enqueue appends a scripted text response. Scripted responses are consumed
// in order, before any pattern matching.
func (m *MockLLM) Enqueue(response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, mockReply{response: response})
}

// EnqueueToolCalls appends a scripted response that requests tools.
func (m *MockLLM) EnqueueToolCalls(response string, tools ...*ai.ToolRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, mockReply{response: response, tools: tools})
}

// AddResponse registers a pattern-response pair. When a user message contains
// the pattern (case-insensitive), the response is returned. Patterns are
// checked in registration order; first match wins.
func (m *MockLLM) AddResponse(pattern, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockRule{
		pattern: strings.ToLower(pattern),
		reply:   mockReply{response: response},
	})
}

// AddToolResponse registers a pattern that triggers tool calls.
func (m *MockLLM) AddToolResponse(pattern string, tools []*ai.ToolRequest, textResponse string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockRule{
		pattern: strings.ToLower(pattern),
		reply:   mockReply{response: textResponse, tools: tools},
	})
}

// Calls returns a copy of all recorded calls.
func (m *MockLLM) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]MockCall, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// Reset clears the script and recorded calls (keeps registered patterns).
func (m *MockLLM) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = nil
	m.calls = nil
}

// RegisterModel registers the mock as a Genkit model and returns a reference.
// The model name will be "mock/test-model".
func (m *MockLLM) RegisterModel(g *genkit.Genkit) ai.Model {
	return genkit.DefineModel(g, "mock/test-model", &ai.ModelOptions{
		Label: "Mock Test Model",
		Supports: &ai.ModelSupports{
			Multiturn:  true,
			Tools:      true,
			SystemRole: true,
			Media:      false,
		},
	}, m.generate)
}

// generate is the Genkit model function.
func (m *MockLLM) generate(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error) {
	var userText string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == ai.RoleUser {
			userText = req.Messages[i].Text()
			break
		}
	}

	m.mu.Lock()
	var reply mockReply
	switch {
	case len(m.script) > 0:
		reply = m.script[0]
		m.script = m.script[1:]
	default:
		reply = mockReply{response: m.fallback}
		lower := strings.ToLower(userText)
		for i := range m.responses {
			if strings.Contains(lower, m.responses[i].pattern) {
				reply = m.responses[i].reply
				break
			}
		}
	}

	m.calls = append(m.calls, MockCall{
		UserMessage: userText,
		Response:    reply.response,
		ToolCount:   len(reply.tools),
	})
	m.mu.Unlock()

	if cb != nil && reply.response != "" {
		_ = cb(ctx, &ai.ModelResponseChunk{
			Content: []*ai.Part{ai.NewTextPart(reply.response)},
		})
	}

	var parts []*ai.Part
	for _, tr := range reply.tools {
		parts = append(parts, &ai.Part{
			Kind:        ai.PartToolRequest,
			ToolRequest: tr,
		})
	}
	if reply.response != "" || len(parts) == 0 {
		parts = append(parts, ai.NewTextPart(reply.response))
	}

	return &ai.ModelResponse{
		Request: req,
		Message: &ai.Message{
			Role:    ai.RoleModel,
			Content: parts,
		},
	}, nil
}
