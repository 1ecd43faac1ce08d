package testutil

import (
	"github.com/hupe1980/agentgraph/core"
)

// StateBuilder helps construct agent states with fluent chaining for tests.
// Example:
//
//	st := NewStateBuilder("2+2?").Iterations(2).Aux("is_data_query", true).Build()
type StateBuilder struct {
	state core.AgentState
}

// NewStateBuilder starts from core.NewState(query, 5). An empty query
// starts with no messages.
func NewStateBuilder(query string) *StateBuilder {
	st := core.NewState(query, 5)
	if query == "" {
		st.Messages = nil
	}

	return &StateBuilder{state: st}
}

// Messages appends messages to the conversation (chainable).
func (b *StateBuilder) Messages(msgs ...core.Message) *StateBuilder {
	b.state.Messages = append(b.state.Messages, msgs...)
	return b
}

// Conversation appends everything built by c (chainable).
func (b *StateBuilder) Conversation(c *ConversationBuilder) *StateBuilder {
	return b.Messages(c.Build()...)
}

// Iterations sets the iteration count (chainable).
func (b *StateBuilder) Iterations(n int) *StateBuilder {
	b.state.IterationCount = n
	return b
}

// MaxIterations sets the iteration bound (chainable).
func (b *StateBuilder) MaxIterations(n int) *StateBuilder {
	b.state.MaxIterations = n
	return b
}

// Aux sets or overwrites an auxiliary key (chainable).
func (b *StateBuilder) Aux(key string, val any) *StateBuilder {
	if b.state.Aux == nil {
		b.state.Aux = map[string]any{}
	}

	b.state.Aux[key] = val

	return b
}

// Build returns an independent copy of the state.
func (b *StateBuilder) Build() core.AgentState {
	return b.state.Clone()
}
