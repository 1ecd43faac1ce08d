package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"

	"github.com/hupe1980/agentgraph/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// NewToolDefinition builds a function tool definition.
func NewToolDefinition(name, description string, parameters map[string]any) ToolDefinition {
	return ToolDefinition{
		Type: "function",
		Function: FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// Request captures the normalized model input produced by the agent loop.
type Request struct {
	Instructions string           `json:"instructions"` // System instructions for the model
	Messages     []core.Message   `json:"messages"`     // Conversation so far, oldest first
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a complete model reply.
type Response struct {
	ID           string       `json:"id"`
	Message      core.Message `json:"message"`       // Role is always assistant
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by the agent loop to drive generation.
//
// Generate must honour ctx cancellation. Errors should be classified with
// core kinds (see ClassifyStatus) so the step executor can tell transient
// failures from fatal ones.
type Model interface {
	Generate(ctx context.Context, req Request) (Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// ClassifyStatus maps a provider HTTP status to an error kind: 408, 409, 429
// and 5xx are transient, other 4xx are invalid input. status 0 means the
// request never produced a response (network failure) and is transient.
func ClassifyStatus(op string, status int, err error) error {
	switch {
	case status == 0,
		status == http.StatusRequestTimeout,
		status == http.StatusConflict,
		status == http.StatusTooManyRequests,
		status >= http.StatusInternalServerError:
		return core.NewError(core.KindTransient, op, err)
	case status >= http.StatusBadRequest:
		return core.NewError(core.KindInvalidInput, op, err)
	default:
		return core.NewError(core.KindUnclassified, op, err)
	}
}

// ClassifyTransport marks an error that happened before a response status
// was received (dial failures, resets, truncated bodies) as transient.
func ClassifyTransport(op string, err error) error {
	return core.NewError(core.KindTransient, op, err)
}

// ClassifyContext returns a timeout or canceled error when err stems from
// ctx, and nil otherwise.
func ClassifyContext(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return core.NewError(core.KindTimeout, op, err)
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return core.NewError(core.KindCanceled, op, err)
	}

	return nil
}

// MockModel is a lightweight in-memory Model useful for examples. It answers
// with a canned completion keyed by the last user message.
type MockModel struct {
	info      Info
	mu        sync.RWMutex
	responses map[string]string
}

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: false,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	var prompt string

	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == core.RoleUser {
			prompt = req.Messages[i].Content
			break
		}
	}

	if prompt == "" {
		return Response{}, core.Errorf(core.KindInvalidInput, "mock.generate", "no user message provided")
	}

	m.mu.RLock()
	full := m.responses[prompt]
	m.mu.RUnlock()

	if full == "" {
		full = fmt.Sprintf("Mock response to: %s", prompt)
	}

	return Response{Message: core.NewAssistantMessage(full), FinishReason: "stop"}, nil
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

// ScriptedModel replays a fixed sequence of replies, one per Generate call.
// It is safe for concurrent use; each call consumes the next entry. When the
// script is exhausted the final entry is repeated.
type ScriptedModel struct {
	info    Info
	mu      sync.Mutex
	script  []Scripted
	next    int
	calls   int
	history []Request
}

// Scripted is one step of a ScriptedModel: either a reply or an error.
type Scripted struct {
	Message core.Message
	Err     error
}

// Reply scripts a plain assistant answer.
func Reply(content string) Scripted {
	return Scripted{Message: core.NewAssistantMessage(content)}
}

// CallTools scripts an assistant message requesting tool calls.
func CallTools(calls ...core.ToolCall) Scripted {
	return Scripted{Message: core.NewAssistantMessage("", calls...)}
}

// Fail scripts an error.
func Fail(err error) Scripted {
	return Scripted{Err: err}
}

// NewScriptedModel creates a ScriptedModel.
func NewScriptedModel(script ...Scripted) *ScriptedModel {
	return &ScriptedModel{
		info:   Info{Name: "scripted", Provider: "mock", SupportsTools: true},
		script: slices.Clone(script),
	}
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.history = append(m.history, Request{
		Instructions: req.Instructions,
		Messages:     core.CloneMessages(req.Messages),
		Tools:        slices.Clone(req.Tools),
	})

	if len(m.script) == 0 {
		return Response{}, core.Errorf(core.KindInvalidInput, "scripted.generate", "empty script")
	}

	s := m.script[min(m.next, len(m.script)-1)]
	if m.next < len(m.script) {
		m.next++
	}

	if s.Err != nil {
		return Response{}, s.Err
	}

	finish := "stop"
	if s.Message.HasToolCalls() {
		finish = "tool_calls"
	}

	return Response{Message: s.Message.Clone(), FinishReason: finish}, nil
}

// Calls returns how many times Generate was invoked.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls
}

// Requests returns copies of every request received.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.history)
}

// Info implements Model.
func (m *ScriptedModel) Info() Info { return m.info }

// Func adapts a function to the Model interface.
type Func func(ctx context.Context, req Request) (Response, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, req Request) (Response, error) { return f(ctx, req) }

// Info implements Model.
func (f Func) Info() Info { return Info{Name: "func", Provider: "func", SupportsTools: true} }
