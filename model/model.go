// Package model defines the completion-service boundary: a normalized
// request/response shape plus the Model interface provider adapters
// implement. The boundary is synchronous; a dispatch round is never
// interrupted mid-flight, so streaming is a presentation concern handled
// above this layer.
package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/caremesh/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the
// model. Parameters is a minimal JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input produced by the dispatch loop.
type Request struct {
	Instructions string           `json:"instructions"`
	Messages     []core.Message   `json:"messages"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is one complete model turn: either a final text reply or an
// assistant message carrying function call parts.
type Response struct {
	Message      core.Message `json:"message"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface the dispatch loop drives.
type Model interface {
	Generate(ctx context.Context, req Request) (Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is an in-memory Model for tests. Responses are served from a
// scripted FIFO queue, one per Generate call, so a test can choreograph a
// whole multi-round tool exchange up front.
type MockModel struct {
	mu    sync.Mutex
	info  Info
	queue []Response
	calls []Request
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info: Info{Name: name, Provider: "mock", SupportsTools: true},
	}
}

// EnqueueText scripts a final text reply.
func (m *MockModel) EnqueueText(text string) {
	m.enqueue(Response{
		Message:      core.NewAssistantMessage(core.TextPart{Text: text}),
		FinishReason: "stop",
	})
}

// EnqueueToolCalls scripts an assistant turn requesting the given calls.
func (m *MockModel) EnqueueToolCalls(calls ...core.FunctionCall) {
	parts := make([]core.Part, 0, len(calls))
	for _, c := range calls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: c})
	}
	m.enqueue(Response{
		Message:      core.NewAssistantMessage(parts...),
		FinishReason: "tool_calls",
	})
}

// EnqueueResponse scripts a raw response.
func (m *MockModel) EnqueueResponse(resp Response) { m.enqueue(resp) }

func (m *MockModel) enqueue(resp Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, resp)
}

// Requests returns the requests seen so far, in call order.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// Generate pops the next scripted response. An empty queue is a test bug and
// is reported as an error.
func (m *MockModel) Generate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	if len(m.queue) == 0 {
		return Response{}, fmt.Errorf("mock model: no scripted response for call %d", len(m.calls))
	}
	resp := m.queue[0]
	m.queue = m.queue[1:]
	return resp, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
