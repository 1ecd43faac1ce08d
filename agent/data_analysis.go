package agent

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/graph"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/model"
	"github.com/hupe1980/agentgraph/tool"
)

// Additional nodes and labels of the data analysis graph.
const (
	NodeValidate  = "validate"
	NodeSummarize = "summarize"
	NodeReject    = "reject"

	RouteAgent  = "agent"
	RouteReject = "reject"
)

// Aux keys written by the data analysis graph.
const (
	AuxIsDataQuery = "is_data_query"
	AuxToolsUsed   = "tools_used"
	AuxSummary     = "summary"
)

// RejectionMessage is the answer given to queries that are not about data.
const RejectionMessage = "I'm a data analysis assistant and can only help with calculations, statistics and numeric data. Please rephrase your question as a data analysis task."

var dataKeywords = []string{
	"analy", "average", "calculat", "compute", "count", "data",
	"mean", "median", "number", "percent", "statistic", "std", "sum", "total",
}

// IsDataQuery reports whether query looks like a calculation or data
// analysis request: it mentions a data keyword or contains a digit.
func IsDataQuery(query string) bool {
	q := strings.ToLower(query)

	for _, kw := range dataKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}

	return strings.IndexFunc(q, unicode.IsDigit) >= 0
}

// NewDataAnalysisGraph compiles a specialised loop that only serves data
// questions:
//
//	validate --agent--> agent <-> tools
//	         \              \--end--> summarize --> End
//	          \--reject--> reject --> End
func NewDataAnalysisGraph(m model.Model, reg *tool.Registry, optFns ...func(o *Options)) (*graph.Graph, error) {
	opts := DefaultOptions()
	opts.Name = "data_analysis"
	opts.Instruction = NewInstructionFromText("You are a data analysis assistant. Use the calculate and analyze_data tools for numeric work and state the key numbers clearly.")

	for _, fn := range optFns {
		fn(&opts)
	}

	logger := logging.OrNoOp(opts.Logger)

	return graph.NewBuilder().
		AddNode(NodeValidate, ValidateNode).
		AddNode(NodeAgent, AgentNode(m, reg, opts.Instruction, logger)).
		AddNode(NodeTools, ToolsNode(reg, opts.LenientArguments, logger)).
		AddNode(NodeSummarize, SummarizeNode).
		AddNode(NodeReject, RejectNode).
		SetEntry(NodeValidate).
		AddConditionalEdges(NodeValidate, RouteAfterValidate, map[string]string{
			RouteAgent:  NodeAgent,
			RouteReject: NodeReject,
		}).
		AddConditionalEdges(NodeAgent, RouteAfterAgent, map[string]string{
			RouteTools: NodeTools,
			RouteEnd:   NodeSummarize,
		}).
		AddEdge(NodeTools, NodeAgent).
		AddEdge(NodeSummarize, graph.End).
		AddEdge(NodeReject, graph.End).
		Compile(func(o *graph.Options) {
			o.Name = opts.Name
			o.MaxSteps = opts.MaxSteps
			o.Logger = logger
		})
}

// ValidateNode classifies the first user message and records the result in
// Aux[AuxIsDataQuery].
func ValidateNode(_ context.Context, state core.AgentState) (core.StateUpdate, error) {
	var query string

	for _, m := range state.Messages {
		if m.Role == core.RoleUser {
			query = m.Content
			break
		}
	}

	return core.StateUpdate{Aux: map[string]any{AuxIsDataQuery: IsDataQuery(query)}}, nil
}

// RouteAfterValidate routes on Aux[AuxIsDataQuery].
func RouteAfterValidate(state core.AgentState) string {
	if state.AuxBool(AuxIsDataQuery) {
		return RouteAgent
	}

	return RouteReject
}

// SummarizeNode formats the final answer together with the tools that were used.
func SummarizeNode(_ context.Context, state core.AgentState) (core.StateUpdate, error) {
	answer := finalAnswer(state)
	used := ToolsUsed(state)

	var b strings.Builder

	b.WriteString("Data Analysis Summary\n")

	if len(used) > 0 {
		fmt.Fprintf(&b, "Tools used: %s\n", strings.Join(used, ", "))
	} else {
		b.WriteString("Tools used: none\n")
	}

	fmt.Fprintf(&b, "Iterations: %d\n\n%s", state.IterationCount, answer)

	summary := b.String()

	return core.StateUpdate{
		FinalAnswer: core.Ptr(summary),
		Aux: map[string]any{
			AuxToolsUsed: used,
			AuxSummary:   summary,
		},
	}, nil
}

// RejectNode answers non-data queries with RejectionMessage.
func RejectNode(_ context.Context, _ core.AgentState) (core.StateUpdate, error) {
	return core.StateUpdate{
		Messages:    []core.Message{core.NewAssistantMessage(RejectionMessage)},
		FinalAnswer: core.Ptr(RejectionMessage),
	}, nil
}

// ToolsUsed lists the distinct tool names requested by the model, in first
// use order.
func ToolsUsed(state core.AgentState) []string {
	var used []string

	for _, m := range state.Messages {
		if m.Role != core.RoleAssistant {
			continue
		}

		for _, c := range m.ToolCalls {
			if !slices.Contains(used, c.Name) {
				used = append(used, c.Name)
			}
		}
	}

	return used
}
