package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hupe1980/agentgraph/agent"
	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/graph"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/model"
	"github.com/hupe1980/agentgraph/task"
	"github.com/hupe1980/agentgraph/tool"
)

// Options configures an Orchestrator.
type Options struct {
	// Graph replaces the default tool loop graph.
	Graph *graph.Graph
	// AgentOptions configure the default tool loop graph. Ignored when Graph is set.
	AgentOptions []func(o *agent.Options)
	// MaxIterations is the default iteration bound per run.
	MaxIterations int
	// Policy is the default retry policy applied to every stage and node.
	Policy task.Policy
	// Observer receives run, stage and attempt events.
	Observer core.Observer
	// Logger receives flow.* and task.* events.
	Logger logging.Logger
	// Sleep overrides the wait between attempts (tests use it to skip backoff).
	Sleep func(ctx context.Context, d time.Duration) error
}

// RunOptions configures a single RunQuery call. They start from the
// orchestrator defaults.
type RunOptions struct {
	MaxIterations int
	Policy        task.Policy
	// RunID overrides the generated run identifier.
	RunID string
}

// WithMaxIterations sets the iteration bound of a run.
func WithMaxIterations(n int) func(o *RunOptions) {
	return func(o *RunOptions) { o.MaxIterations = n }
}

// WithMaxRetries sets the retries per stage and node.
func WithMaxRetries(n int) func(o *RunOptions) {
	return func(o *RunOptions) { o.Policy.MaxRetries = n }
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) func(o *RunOptions) {
	return func(o *RunOptions) { o.Policy.Timeout = d }
}

// WithBackoff sets the wait strategy between attempts.
func WithBackoff(b task.Backoff) func(o *RunOptions) {
	return func(o *RunOptions) { o.Policy.Backoff = b }
}

// Orchestrator runs queries through an agent graph. It holds no per-run
// state and is safe for concurrent use.
type Orchestrator struct {
	graph *graph.Graph
	opts  Options
}

// New creates an Orchestrator. Without a Graph option it compiles the
// standard tool loop for m and reg.
func New(m model.Model, reg *tool.Registry, optFns ...func(o *Options)) (*Orchestrator, error) {
	opts := Options{
		MaxIterations: agent.DefaultMaxIterations,
		Policy:        task.DefaultPolicy(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	opts.Observer = core.ObserverOrNoOp(opts.Observer)
	opts.Logger = logging.OrNoOp(opts.Logger)

	if opts.MaxIterations <= 0 {
		return nil, core.Errorf(core.KindInvalidInput, "flow.new", "max iterations must be positive, got %d", opts.MaxIterations)
	}

	g := opts.Graph
	if g == nil {
		if m == nil {
			return nil, core.Errorf(core.KindInvalidInput, "flow.new", "a model is required")
		}

		agentOpts := append([]func(o *agent.Options){func(o *agent.Options) { o.Logger = opts.Logger }}, opts.AgentOptions...)

		var err error
		if g, err = agent.NewToolLoopGraph(m, reg, agentOpts...); err != nil {
			return nil, fmt.Errorf("flow: build agent graph: %w", err)
		}
	}

	return &Orchestrator{graph: g, opts: opts}, nil
}

// Graph returns the graph runs are executed on.
func (o *Orchestrator) Graph() *graph.Graph { return o.graph }

// run carries the per-call collaborators.
type run struct {
	id     string
	opts   RunOptions
	exec   *task.Executor
	logger logging.Logger
}

// RunQuery answers query. It always returns a Result; failures are reported
// through Result.Status and Result.Error.
func (o *Orchestrator) RunQuery(ctx context.Context, query string, optFns ...func(o *RunOptions)) Result {
	ropts := RunOptions{MaxIterations: o.opts.MaxIterations, Policy: o.opts.Policy}
	for _, fn := range optFns {
		fn(&ropts)
	}

	if ropts.RunID == "" {
		ropts.RunID = core.NewID()
	}

	ctx = core.WithRunID(ctx, ropts.RunID)
	logger := logging.WithRun(o.opts.Logger, ropts.RunID, core.BatchIDFromContext(ctx))

	r := &run{
		id:     ropts.RunID,
		opts:   ropts,
		logger: logger,
		exec: task.New(func(to *task.Options) {
			to.Policy = ropts.Policy
			to.Observer = o.opts.Observer
			to.Logger = logger
			to.Sleep = o.opts.Sleep
		}),
	}

	start := time.Now()
	res := Result{RunID: r.id, Query: query, StartedAt: start.UTC()}

	core.Emit(ctx, o.opts.Observer, core.Event{Type: core.EventRunStart, Attrs: map[string]any{"query": query}})
	logger.Info("flow.run.start", "graph", o.graph.Name(), "max_iterations", ropts.MaxIterations, "max_retries", ropts.Policy.MaxRetries)

	res = o.execute(ctx, r, res)
	res.Duration = time.Since(start)

	logging.LogFlowExecution(logger, string(res.Status), res.Iterations, res.Duration, res.Err())

	end := core.Event{Type: core.EventRunEnd, Duration: res.Duration, Attrs: map[string]any{"status": string(res.Status), "iterations": res.Iterations}}
	if res.Error != nil {
		end.Kind = res.Error.Kind
		end.Err = res.Error
	}

	core.Emit(ctx, o.opts.Observer, end)

	return res
}

func (o *Orchestrator) execute(ctx context.Context, r *run, res Result) Result {
	state, err := runStage(ctx, o, r, StageInitialize, func(context.Context) (core.AgentState, error) {
		return initialState(res.Query, r.opts.MaxIterations)
	})
	if err != nil {
		return failed(res, StageInitialize, err, state)
	}

	// The execute stage is not retried as a whole; its nodes carry their
	// own retries through the interceptor.
	o.stageStart(ctx, r, StageExecute)

	start := time.Now()
	state, err = o.graph.Run(ctx, state, func(ro *graph.RunOptions) {
		ro.MaxSteps = max(o.graph.MaxSteps(), agent.StepsFor(r.opts.MaxIterations))
		ro.Interceptor = r.intercept
	})

	o.stageEnd(ctx, r, StageExecute, 1, time.Since(start), err)

	if err != nil {
		return failed(res, StageExecute, err, state)
	}

	final, err := runStage(ctx, o, r, StageFinalize, func(context.Context) (Result, error) {
		return finalize(res, state), nil
	})
	if err != nil {
		return failed(res, StageFinalize, err, state)
	}

	return final
}

// runStage runs fn as a retryable step bracketed by stage events.
func runStage[O any](ctx context.Context, o *Orchestrator, r *run, name string, fn func(ctx context.Context) (O, error)) (O, error) {
	o.stageStart(ctx, r, name)

	res := task.Execute(ctx, r.exec, task.Step[struct{}, O]{
		Name: name,
		Run: func(ctx context.Context, _ struct{}) (O, error) {
			return fn(ctx)
		},
	}, struct{}{})

	o.stageEnd(ctx, r, name, res.Attempts, res.Duration, res.Err)

	return res.Value, res.Err
}

func (o *Orchestrator) stageStart(ctx context.Context, r *run, name string) {
	core.Emit(ctx, o.opts.Observer, core.Event{Type: core.EventStageStart, Step: name})
	r.logger.Debug("flow.stage.start", "stage", name)
}

func (o *Orchestrator) stageEnd(ctx context.Context, r *run, name string, attempts int, dur time.Duration, err error) {
	end := core.Event{Type: core.EventStageEnd, Step: name, Attempt: attempts, Duration: dur}

	if err != nil {
		end.Kind = core.KindOf(err)
		end.Err = err
		r.logger.Warn("flow.stage.failed", "stage", name, "kind", string(end.Kind), "error", err.Error())
	} else {
		r.logger.Debug("flow.stage.end", "stage", name, "duration_ms", dur.Milliseconds())
	}

	core.Emit(ctx, o.opts.Observer, end)
}

// intercept wraps every graph node in a retryable step. Each attempt starts
// from its own copy of the pre-attempt state. Every attempt but the last
// surfaces retriable tool errors so the step is retried; the last one hands
// them to the model as error results.
func (r *run) intercept(ctx context.Context, node string, state core.AgentState, next graph.NodeFunc) (core.StateUpdate, error) {
	maxAttempts := int32(r.exec.Policy().MaxAttempts())

	var attempts atomic.Int32

	res := task.Execute(ctx, r.exec, task.Step[core.AgentState, core.StateUpdate]{
		Name: node,
		Run: func(ctx context.Context, s core.AgentState) (core.StateUpdate, error) {
			if attempts.Add(1) < maxAttempts {
				ctx = agent.WithToolErrorRetry(ctx)
			}

			return next(ctx, s.Clone())
		},
	}, state)

	return res.Value, res.Err
}

func initialState(query string, maxIterations int) (core.AgentState, error) {
	if strings.TrimSpace(query) == "" {
		return core.AgentState{}, core.NewError(core.KindInvalidInput, "flow.initialize", core.ErrEmptyQuery)
	}

	if maxIterations <= 0 {
		return core.AgentState{}, core.Errorf(core.KindInvalidInput, "flow.initialize", "max iterations must be positive, got %d", maxIterations)
	}

	return core.NewState(query, maxIterations), nil
}

func finalize(res Result, state core.AgentState) Result {
	res.Answer = state.FinalAnswer
	res.Iterations = state.IterationCount
	res.MessageCount = len(state.Messages)
	res.Messages = core.CloneMessages(state.Messages)
	res.StopReason = state.StopReason
	res.Aux = state.Clone().Aux
	res.Status = StatusCompleted

	if state.Incomplete {
		res.Status = StatusIncomplete
	}

	return res
}

// failed records err on res. The innermost step error identifies the step
// and attempt count; graph errors name the node that failed.
func failed(res Result, stage string, err error, state core.AgentState) Result {
	res.Status = StatusFailed
	res.Iterations = state.IterationCount
	res.MessageCount = len(state.Messages)
	res.Messages = core.CloneMessages(state.Messages)
	res.Answer = ""

	e := &Error{Stage: stage, Step: stage, Kind: core.KindOf(err), Attempts: 1, Message: err.Error()}

	var execErr *graph.ExecutionError
	if errors.As(err, &execErr) && execErr.Node != "" {
		e.Step = execErr.Node
	}

	if se := innermostStepError(err); se != nil {
		e.Attempts = se.Attempts
		e.Kind = se.Kind
		e.Message = se.Err.Error()

		if execErr == nil {
			e.Step = se.Step
		}
	}

	res.Error = e

	return res
}

func innermostStepError(err error) *task.StepError {
	var last *task.StepError

	for err != nil {
		if se, ok := err.(*task.StepError); ok {
			last = se
		}

		err = errors.Unwrap(err)
	}

	return last
}
