// Package graph implements the execution engine that drives an AgentState
// through a directed graph of named nodes.
//
// A graph is declared with a Builder and validated once by Compile:
//
//	g, err := graph.NewBuilder().
//		AddNode("agent", agentNode).
//		AddNode("tools", toolsNode).
//		SetEntry("agent").
//		AddConditionalEdges("agent", route, map[string]string{"tools": "tools", "end": graph.End}).
//		AddEdge("tools", "agent").
//		Compile()
//
// Every node has exactly one outgoing decision: a static edge or a router
// with a closed label set. Structural mistakes (unknown targets, missing
// decisions, an unreachable End) are reported by Compile, never at run time.
//
// Run walks the graph: invoke the current node, merge its StateUpdate into
// the state (messages append, other fields replace), resolve the next node on
// the merged state, and stop at End. A compiled Graph is immutable and safe
// to share between concurrent runs.
package graph
