// Package agent builds the agent-tool loop on top of the graph engine.
//
// The standard loop has three nodes:
//
//	agent    -> asks the model for the next message (may request tool calls)
//	tools    -> executes every requested call in order, one result message each
//	finalize -> copies the last assistant answer into FinalAnswer
//
// Routing after agent uses the closed label set {"tools", "end"}. The
// iteration bound carried in core.AgentState.MaxIterations is checked before
// tool calls, so a loop never performs more than MaxIterations model calls.
// Reaching the bound while the model still wants tools marks the state
// incomplete with stop reason "max_iterations".
//
// NewDataAnalysisGraph shows how the same nodes compose into a specialised
// workflow with a validation gate and auxiliary routing hints.
//
// Graphs returned here are immutable and safe to share across concurrent
// runs; the model and registry must be safe for concurrent use as well.
package agent
