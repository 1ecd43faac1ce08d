package graph

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/logging"
)

// DefaultMaxSteps bounds the number of node visits per run.
const DefaultMaxSteps = 25

// Options configures a compiled Graph.
type Options struct {
	// Name identifies the graph in logs.
	Name string
	// MaxSteps is the safety bound on node visits per run. When a run would
	// exceed it the engine stops and marks the state incomplete.
	MaxSteps int
	// Logger receives graph.* debug events. Defaults to a no-op logger.
	Logger logging.Logger
}

// DefaultOptions returns the options used when Compile is called without overrides.
func DefaultOptions() Options {
	return Options{Name: "graph", MaxSteps: DefaultMaxSteps}
}

// Interceptor wraps every node invocation of a run. It must call next (at
// most once per attempt) and return the update to merge. The flow layer uses
// it to apply retries and per-attempt timeouts.
type Interceptor func(ctx context.Context, node string, state core.AgentState, next NodeFunc) (core.StateUpdate, error)

// RunOptions configures a single run.
type RunOptions struct {
	// MaxSteps overrides the graph's bound for this run when positive.
	MaxSteps int
	// Interceptor wraps node invocations.
	Interceptor Interceptor
}

// Graph is a compiled, immutable graph. It is safe for concurrent use.
type Graph struct {
	name     string
	entry    string
	nodes    map[string]NodeFunc
	order    []string
	edges    map[string]string
	conds    map[string]conditional
	maxSteps int
	logger   logging.Logger
}

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// Entry returns the entry node.
func (g *Graph) Entry() string { return g.entry }

// Nodes returns node names in declaration order.
func (g *Graph) Nodes() []string { return slices.Clone(g.order) }

// MaxSteps returns the default step bound.
func (g *Graph) MaxSteps() int { return g.maxSteps }

// Labels returns the declared route labels of a conditional node, sorted.
// It returns nil for nodes with a static edge.
func (g *Graph) Labels(node string) []string {
	c, ok := g.conds[node]
	if !ok {
		return nil
	}

	return sortedKeys(c.routes)
}

// Run walks the graph from its entry node starting at initial and returns
// the final state.
//
// The walk stops when a route resolves to End. If the step bound is hit
// first, the state is returned with Incomplete set and StopReason
// "step_limit" and a nil error. On failure the returned state is the last
// successfully merged snapshot and the error is an *ExecutionError.
func (g *Graph) Run(ctx context.Context, initial core.AgentState, optFns ...func(o *RunOptions)) (core.AgentState, error) {
	if g == nil || g.entry == "" {
		return initial, &ExecutionError{Err: core.NewError(core.KindGraphExecution, "graph.run", ErrNoEntry)}
	}

	opts := RunOptions{MaxSteps: g.maxSteps}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxSteps <= 0 {
		opts.MaxSteps = g.maxSteps
	}

	logger := logging.OrNoOp(g.logger)
	state := initial.Clone()
	current := g.entry

	for step := 1; ; step++ {
		if err := ctx.Err(); err != nil {
			return state, &ExecutionError{Node: current, Step: step, Err: core.NewError(core.KindOf(err), "graph.run", err)}
		}

		if step > opts.MaxSteps {
			logger.Warn("graph.run.step_limit", "graph", g.name, "node", current, "max_steps", opts.MaxSteps)

			state.Incomplete = true
			state.StopReason = core.StopReasonStepLimit

			return state, nil
		}

		fn, ok := g.nodes[current]
		if !ok {
			return state, &ExecutionError{Node: current, Step: step, Err: core.NewError(core.KindGraphExecution, "graph.run", fmt.Errorf("%w: %q", ErrNodeNotFound, current))}
		}

		logger.Debug("graph.node.start", "graph", g.name, "node", current, "step", step)

		update, err := g.invoke(ctx, current, state, fn, opts.Interceptor)
		if err != nil {
			logger.Debug("graph.node.error", "graph", g.name, "node", current, "step", step, "error", err.Error())
			return state, &ExecutionError{Node: current, Step: step, Err: err}
		}

		state = state.Merge(update)

		next, err := g.resolve(current, state)
		if err != nil {
			return state, &ExecutionError{Node: current, Step: step, Err: err}
		}

		logger.Debug("graph.node.end", "graph", g.name, "node", current, "step", step, "next", next)

		if next == End {
			return state, nil
		}

		current = next
	}
}

func (g *Graph) invoke(ctx context.Context, name string, state core.AgentState, fn NodeFunc, ic Interceptor) (update core.StateUpdate, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = core.Errorf(core.KindInternal, "node."+name, "panic: %v\n%s", rec, debug.Stack())
		}
	}()

	if ic != nil {
		return ic(ctx, name, state.Clone(), fn)
	}

	return fn(ctx, state.Clone())
}

func (g *Graph) resolve(from string, state core.AgentState) (next string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = core.Errorf(core.KindInternal, "route."+from, "panic: %v", rec)
		}
	}()

	if to, ok := g.edges[from]; ok {
		return to, nil
	}

	c, ok := g.conds[from]
	if !ok {
		return "", core.NewError(core.KindGraphExecution, "graph.route", fmt.Errorf("%w: %q", ErrNoRoute, from))
	}

	label := c.router(state.Clone())

	to, ok := c.routes[label]
	if !ok {
		return "", core.NewError(core.KindGraphExecution, "graph.route", fmt.Errorf("%w: node %q returned %q (declared %v)", ErrUnknownLabel, from, label, sortedKeys(c.routes)))
	}

	return to, nil
}
