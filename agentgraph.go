// Package agentgraph provides a high-level façade over the flow orchestrator
// and the batch coordinator. Most applications interact with this package by:
//  1. Creating an AgentGraph via New() with a model (tools default to the builtins)
//  2. Running a single query (RunQuery) or many queries concurrently (RunBatch)
//
// Every run returns a flow.Result value; failures are reported inside the
// result rather than as a separate error so batch callers can keep going.
package agentgraph

import (
	"context"

	"github.com/hupe1980/agentgraph/agent"
	"github.com/hupe1980/agentgraph/batch"
	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/flow"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/model"
	"github.com/hupe1980/agentgraph/task"
	"github.com/hupe1980/agentgraph/tool"
	"github.com/hupe1980/agentgraph/tool/builtin"
)

// Options configures the AgentGraph instance.
type Options struct {
	// Tools are registered with the agent. Nil registers builtin.All().
	Tools []tool.Tool

	// AgentOptions configure the tool loop graph (instructions, lenient
	// argument handling).
	AgentOptions []func(o *agent.Options)

	// MaxIterations bounds the agent/tool cycles of every run.
	MaxIterations int

	// Policy is the retry policy applied to every stage and node.
	Policy task.Policy

	// MaxConcurrency bounds the runs in flight during RunBatch.
	MaxConcurrency int

	// Observer receives run, stage, attempt and batch events.
	Observer core.Observer

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// AgentGraph aggregates an orchestrator and a batch coordinator sharing one
// model and tool registry.
type AgentGraph struct {
	orchestrator *flow.Orchestrator
	coordinator  *batch.Coordinator
}

// New creates a new AgentGraph for m.
func New(m model.Model, optFns ...func(o *Options)) (*AgentGraph, error) {
	opts := Options{
		MaxIterations:  agent.DefaultMaxIterations,
		Policy:         task.DefaultPolicy(),
		MaxConcurrency: batch.DefaultMaxConcurrency,
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	tools := opts.Tools
	if tools == nil {
		tools = builtin.All()
	}

	reg, err := tool.NewRegistry(tools, func(o *tool.RegistryOptions) { o.Logger = opts.Logger })
	if err != nil {
		return nil, err
	}

	orch, err := flow.New(m, reg, func(o *flow.Options) {
		o.AgentOptions = opts.AgentOptions
		o.MaxIterations = opts.MaxIterations
		o.Policy = opts.Policy
		o.Observer = opts.Observer
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, err
	}

	coord := batch.New(orch, func(o *batch.Options) {
		o.MaxConcurrency = opts.MaxConcurrency
		o.Observer = opts.Observer
		o.Logger = opts.Logger
	})

	return &AgentGraph{orchestrator: orch, coordinator: coord}, nil
}

// Orchestrator exposes the underlying single-query orchestrator.
func (a *AgentGraph) Orchestrator() *flow.Orchestrator { return a.orchestrator }

// RunQuery runs one query to completion.
func (a *AgentGraph) RunQuery(ctx context.Context, query string, optFns ...func(o *flow.RunOptions)) flow.Result {
	return a.orchestrator.RunQuery(ctx, query, optFns...)
}

// RunBatch runs queries concurrently and returns per-query results in input
// order together with aggregate statistics.
func (a *AgentGraph) RunBatch(ctx context.Context, queries []string, optFns ...func(o *batch.Options)) batch.Result {
	return a.coordinator.RunBatch(ctx, queries, optFns...)
}
