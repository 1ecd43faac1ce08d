package core

import (
	"encoding/json"
	"slices"
)

// Role identifies the author of a Message.
type Role string

const (
	// RoleSystem carries instructions for the model.
	RoleSystem Role = "system"
	// RoleUser carries caller input.
	RoleUser Role = "user"
	// RoleAssistant carries model replies, optionally with tool call requests.
	RoleAssistant Role = "assistant"
	// RoleTool carries the result of exactly one tool call.
	RoleTool Role = "tool"
)

// ToolCall is a model request to invoke a named tool. Arguments holds the raw
// JSON object text exactly as produced by the model; parsing happens at
// dispatch time so malformed output can be classified instead of lost.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one entry of a conversation. Messages are treated as immutable
// after construction: constructors copy their slice inputs and AgentState
// never hands out its backing arrays.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	IsError    bool       `json:"is_error,omitempty"`
}

// NewSystemMessage creates a system instruction message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a caller message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates a model reply. The tool call slice is copied.
func NewAssistantMessage(content string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: slices.Clone(calls)}
}

// NewToolMessage creates the result message for the tool call identified by callID.
func NewToolMessage(callID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID}
}

// NewToolErrorMessage creates a tool result that carries an error marker.
// The content is prefixed with "Error: " so models that ignore IsError still
// see the failure.
func NewToolErrorMessage(callID, description string) Message {
	return Message{Role: RoleTool, Content: "Error: " + description, ToolCallID: callID, IsError: true}
}

// HasToolCalls reports whether the message requests at least one tool invocation.
func (m Message) HasToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	m.ToolCalls = slices.Clone(m.ToolCalls)
	return m
}

// ParseArguments decodes the raw JSON arguments of a tool call into a map.
// An empty argument string is treated as an empty object.
func (c ToolCall) ParseArguments() (map[string]any, error) {
	if c.Arguments == "" {
		return map[string]any{}, nil
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(c.Arguments), &args); err != nil {
		return nil, err
	}

	if args == nil { // literal "null"
		args = map[string]any{}
	}

	return args, nil
}

// CloneMessages deep-copies a message slice.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}

	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}

	return out
}
