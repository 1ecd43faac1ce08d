// Package core provides the foundational domain types shared by every layer
// of agentgraph. It defines:
//
//   - Message / ToolCall (immutable conversation records)
//   - AgentState and StateUpdate (the value threaded through a graph run and
//     the partial update a node returns, merged with an explicit policy)
//   - Error and Kind (classified failures understood by the retry layer)
//   - Event and Observer (the observability hook injected into executors)
//
// The package has no dependencies on concrete models, tools or executors so
// every other package can depend on it without cycles.
package core
