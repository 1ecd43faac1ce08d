package agent

import (
	"context"
	"time"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/graph"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/model"
	"github.com/hupe1980/agentgraph/tool"
)

// Node names and route labels of the tool loop.
const (
	NodeAgent    = "agent"
	NodeTools    = "tools"
	NodeFinalize = "finalize"

	RouteTools = "tools"
	RouteEnd   = "end"
)

// DefaultMaxIterations is used when a state carries no positive bound.
const DefaultMaxIterations = 5

// NoResponse is the final answer when the run ends without assistant text.
const NoResponse = "No response generated"

// Options configures the tool loop graph.
type Options struct {
	// Name identifies the graph in logs.
	Name string
	// Instruction is sent to the model as system instructions on every call.
	Instruction Instruction
	// MaxSteps is the graph engine's node visit bound.
	MaxSteps int
	// LenientArguments reports malformed tool arguments back to the model as
	// error results instead of failing the tools step.
	LenientArguments bool
	// Logger receives agent.* and tool.* events.
	Logger logging.Logger
}

// DefaultOptions returns the defaults used by NewToolLoopGraph.
func DefaultOptions() Options {
	return Options{
		Name:        "tool_loop",
		Instruction: NewInstructionFromText("You are a helpful AI assistant. Use the available tools when they help answer the question."),
		MaxSteps:    graph.DefaultMaxSteps,
	}
}

// NewToolLoopGraph compiles the agent/tools/finalize loop for m and reg.
//
//	agent --tools--> tools --> agent
//	agent --end----> finalize --> End
func NewToolLoopGraph(m model.Model, reg *tool.Registry, optFns ...func(o *Options)) (*graph.Graph, error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := logging.OrNoOp(opts.Logger)

	return graph.NewBuilder().
		AddNode(NodeAgent, AgentNode(m, reg, opts.Instruction, logger)).
		AddNode(NodeTools, ToolsNode(reg, opts.LenientArguments, logger)).
		AddNode(NodeFinalize, FinalizeNode).
		SetEntry(NodeAgent).
		AddConditionalEdges(NodeAgent, RouteAfterAgent, map[string]string{
			RouteTools: NodeTools,
			RouteEnd:   NodeFinalize,
		}).
		AddEdge(NodeTools, NodeAgent).
		AddEdge(NodeFinalize, graph.End).
		Compile(func(o *graph.Options) {
			o.Name = opts.Name
			o.MaxSteps = opts.MaxSteps
			o.Logger = logger
		})
}

// MaxIterations returns the iteration bound of state.
func MaxIterations(state core.AgentState) int {
	if state.MaxIterations > 0 {
		return state.MaxIterations
	}

	return DefaultMaxIterations
}

// StepsFor returns the node visits a tool loop needs to finish maxIterations
// iterations: an agent and a tools visit per iteration plus finalize.
func StepsFor(maxIterations int) int {
	return 2*maxIterations + 1
}

// Definitions returns the tool definitions exposed to the model.
func Definitions(reg *tool.Registry) []model.ToolDefinition {
	if reg == nil || reg.Len() == 0 {
		return nil
	}

	tools := reg.Tools()
	defs := make([]model.ToolDefinition, 0, len(tools))

	for _, t := range tools {
		defs = append(defs, model.NewToolDefinition(t.Name(), t.Description(), t.Parameters()))
	}

	return defs
}

// AgentNode returns the node that consults the model once, appends its reply
// and increments the iteration count.
func AgentNode(m model.Model, reg *tool.Registry, inst Instruction, logger logging.Logger) graph.NodeFunc {
	logger = logging.OrNoOp(logger)
	defs := Definitions(reg)

	return func(ctx context.Context, state core.AgentState) (core.StateUpdate, error) {
		text, err := inst.Resolve(state)
		if err != nil {
			return core.StateUpdate{}, core.NewError(core.KindInvalidInput, "agent.instruction", err)
		}

		start := time.Now()

		resp, err := m.Generate(ctx, model.Request{
			Instructions: text,
			Messages:     state.Messages,
			Tools:        defs,
		})
		if err != nil {
			logging.LogModelCall(logger, m.Info().Name, 0, time.Since(start), false, err)
			return core.StateUpdate{}, err
		}

		var tokens int
		if resp.Usage != nil {
			tokens = resp.Usage.TotalTokens
		}

		logging.LogModelCall(logger, m.Info().Name, tokens, time.Since(start), true, nil)

		iteration := state.IterationCount + 1
		reply := resp.Message
		reply.Role = core.RoleAssistant

		update := core.StateUpdate{
			Messages:       []core.Message{reply},
			IterationCount: core.Ptr(iteration),
		}

		if iteration >= MaxIterations(state) && reply.HasToolCalls() {
			logger.Warn("agent.iterations.exhausted", "iteration", iteration, "pending_tool_calls", len(reply.ToolCalls))

			update.Incomplete = core.Ptr(true)
			update.StopReason = core.Ptr(core.StopReasonMaxIterations)
		}

		return update, nil
	}
}

// RouteAfterAgent picks "end" once the bound is reached, "tools" when the
// newest message requests tool calls and "end" otherwise.
func RouteAfterAgent(state core.AgentState) string {
	if state.IterationCount >= MaxIterations(state) {
		return RouteEnd
	}

	if last, ok := state.LastMessage(); ok && last.Role == core.RoleAssistant && last.HasToolCalls() {
		return RouteTools
	}

	return RouteEnd
}

type retryToolErrorsKey struct{}

// WithToolErrorRetry marks ctx as belonging to an attempt that a retry layer
// will repeat. Tools nodes running under it surface retriable tool errors
// instead of reporting them to the model.
func WithToolErrorRetry(ctx context.Context) context.Context {
	return context.WithValue(ctx, retryToolErrorsKey{}, true)
}

func toolErrorRetry(ctx context.Context) bool {
	retry, _ := ctx.Value(retryToolErrorsKey{}).(bool)
	return retry
}

// ToolsNode returns the node that executes the tool calls of the newest
// assistant message and appends one result message per call, in order.
//
// Unknown tools fail the node, as do malformed arguments unless lenient is
// set, and so does a done context. Retriable tool errors fail the node only
// under WithToolErrorRetry. Every other tool failure (including panics) is
// reported to the model as an error result.
func ToolsNode(reg *tool.Registry, lenient bool, logger logging.Logger) graph.NodeFunc {
	logger = logging.OrNoOp(logger)

	return func(ctx context.Context, state core.AgentState) (core.StateUpdate, error) {
		last, ok := state.LastMessage()
		if !ok || last.Role != core.RoleAssistant || !last.HasToolCalls() {
			return core.StateUpdate{}, nil
		}

		if reg == nil {
			return core.StateUpdate{}, core.Errorf(core.KindUnknownTool, "agent.tools", "%w: no tools registered", core.ErrUnknownTool)
		}

		results := make([]core.Message, 0, len(last.ToolCalls))

		for _, call := range last.ToolCalls {
			if err := ctx.Err(); err != nil {
				return core.StateUpdate{}, err
			}

			out, err := reg.Invoke(ctx, call)
			if err == nil {
				results = append(results, core.NewToolMessage(call.ID, out))
				continue
			}

			if ctx.Err() != nil {
				return core.StateUpdate{}, err
			}

			switch kind := core.KindOf(err); kind {
			case core.KindUnknownTool:
				return core.StateUpdate{}, err
			case core.KindMalformedArguments:
				if !lenient {
					return core.StateUpdate{}, err
				}
			default:
				if core.IsRetriable(err) && toolErrorRetry(ctx) {
					return core.StateUpdate{}, err
				}
			}

			logger.Debug("agent.tool.error_result", "tool", call.Name, "call_id", call.ID, "error", err.Error())

			results = append(results, core.NewToolErrorMessage(call.ID, tool.ErrorDescription(err)))
		}

		return core.StateUpdate{Messages: results}, nil
	}
}

// FinalizeNode copies the newest assistant text into FinalAnswer.
func FinalizeNode(_ context.Context, state core.AgentState) (core.StateUpdate, error) {
	return core.StateUpdate{FinalAnswer: core.Ptr(finalAnswer(state))}, nil
}

func finalAnswer(state core.AgentState) string {
	last, ok := state.LastMessage()
	if !ok || last.Role != core.RoleAssistant || last.Content == "" {
		return NoResponse
	}

	return last.Content
}
