package testutil

import (
	"fmt"

	"github.com/hupe1980/agentgraph/core"
)

// ConversationBuilder provides a fluent helper for constructing message
// sequences in tests.
// Example:
//
//	msgs := NewConversationBuilder().User("2+2?").CallTool("calculate", `{"expression":"2+2"}`).ToolResult("Result: 4").Assistant("4").Build()
//
// Tool call IDs are generated as call_1, call_2, ... and ToolResult answers
// the oldest unanswered call.
type ConversationBuilder struct {
	messages []core.Message
	nextID   int
	pending  []string
}

// NewConversationBuilder creates an empty builder.
func NewConversationBuilder() *ConversationBuilder { return &ConversationBuilder{} }

// User appends a user message (chainable).
func (b *ConversationBuilder) User(content string) *ConversationBuilder {
	b.messages = append(b.messages, core.NewUserMessage(content))
	return b
}

// System appends a system message (chainable).
func (b *ConversationBuilder) System(content string) *ConversationBuilder {
	b.messages = append(b.messages, core.NewSystemMessage(content))
	return b
}

// Assistant appends a plain assistant answer (chainable).
func (b *ConversationBuilder) Assistant(content string) *ConversationBuilder {
	b.messages = append(b.messages, core.NewAssistantMessage(content))
	return b
}

// CallTool appends an assistant message requesting one tool call (chainable).
func (b *ConversationBuilder) CallTool(name, args string) *ConversationBuilder {
	return b.CallTools(core.ToolCall{Name: name, Arguments: args})
}

// CallTools appends an assistant message requesting several tool calls.
// Calls without an ID get a generated one (chainable).
func (b *ConversationBuilder) CallTools(calls ...core.ToolCall) *ConversationBuilder {
	for i := range calls {
		if calls[i].ID == "" {
			b.nextID++
			calls[i].ID = fmt.Sprintf("call_%d", b.nextID)
		}

		b.pending = append(b.pending, calls[i].ID)
	}

	b.messages = append(b.messages, core.NewAssistantMessage("", calls...))

	return b
}

// ToolResult answers the oldest pending tool call (chainable).
func (b *ConversationBuilder) ToolResult(content string) *ConversationBuilder {
	b.messages = append(b.messages, core.NewToolMessage(b.popPending(), content))
	return b
}

// ToolError answers the oldest pending tool call with an error marker (chainable).
func (b *ConversationBuilder) ToolError(description string) *ConversationBuilder {
	b.messages = append(b.messages, core.NewToolErrorMessage(b.popPending(), description))
	return b
}

func (b *ConversationBuilder) popPending() string {
	if len(b.pending) == 0 {
		return ""
	}

	id := b.pending[0]
	b.pending = b.pending[1:]

	return id
}

// Build returns a copy of the accumulated messages.
func (b *ConversationBuilder) Build() []core.Message {
	return core.CloneMessages(b.messages)
}
