package batch

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/flow"
	"github.com/hupe1980/agentgraph/logging"
)

// DefaultMaxConcurrency is the number of runs in flight when no limit is configured.
const DefaultMaxConcurrency = 4

// StageBatch names the pseudo stage reported for items whose run panicked.
const StageBatch = "batch"

// Runner answers a single query. *flow.Orchestrator implements it.
type Runner interface {
	RunQuery(ctx context.Context, query string, optFns ...func(o *flow.RunOptions)) flow.Result
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, query string, optFns ...func(o *flow.RunOptions)) flow.Result

// RunQuery calls f.
func (f RunnerFunc) RunQuery(ctx context.Context, query string, optFns ...func(o *flow.RunOptions)) flow.Result {
	return f(ctx, query, optFns...)
}

// Options configures a Coordinator or a single RunBatch call.
type Options struct {
	// MaxConcurrency bounds the runs in flight. Values below 1 mean 1.
	MaxConcurrency int
	// RunOptions are applied to every run of the batch.
	RunOptions []func(o *flow.RunOptions)
	// Observer receives batch_start and batch_end events.
	Observer core.Observer
	// Logger receives batch.* events.
	Logger logging.Logger
}

// Item is one query of a batch and its outcome.
type Item struct {
	Index  int         `json:"index"`
	Query  string      `json:"query"`
	Result flow.Result `json:"result"`
}

// Result is the outcome of a batch. Items are in input order.
type Result struct {
	BatchID string  `json:"batch_id"`
	Items   []Item  `json:"items"`
	Summary Summary `json:"summary"`
}

// Results returns the flow results in input order.
func (r Result) Results() []flow.Result {
	out := make([]flow.Result, len(r.Items))
	for i, it := range r.Items {
		out[i] = it.Result
	}

	return out
}

// Summary aggregates the outcomes of a batch.
type Summary struct {
	Total           int           `json:"total"`
	Succeeded       int           `json:"succeeded"`
	Incomplete      int           `json:"incomplete"`
	Failed          int           `json:"failed"`
	TotalIterations int           `json:"total_iterations"`
	AvgIterations   float64       `json:"average_iterations"`
	StartedAt       time.Time     `json:"timestamp"`
	Duration        time.Duration `json:"duration"`
}

func (s Summary) String() string {
	return fmt.Sprintf("%d queries: %d completed, %d incomplete, %d failed; %d total iterations (avg %.2f) in %s",
		s.Total, s.Succeeded, s.Incomplete, s.Failed, s.TotalIterations, s.AvgIterations, s.Duration.Round(time.Millisecond))
}

// Summarize computes a Summary over items. The average is taken over all
// items, failed ones included.
func Summarize(items []Item) Summary {
	s := Summary{Total: len(items)}

	for _, it := range items {
		switch it.Result.Status {
		case flow.StatusCompleted:
			s.Succeeded++
		case flow.StatusIncomplete:
			s.Incomplete++
		default:
			s.Failed++
		}

		s.TotalIterations += it.Result.Iterations
	}

	if s.Total > 0 {
		s.AvgIterations = float64(s.TotalIterations) / float64(s.Total)
	}

	return s
}

// Coordinator fans queries out to a Runner. It is safe for concurrent use.
type Coordinator struct {
	runner Runner
	opts   Options
}

// New creates a Coordinator for runner.
func New(runner Runner, optFns ...func(o *Options)) *Coordinator {
	opts := Options{MaxConcurrency: DefaultMaxConcurrency}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Coordinator{runner: runner, opts: opts}
}

// RunBatch answers every query and returns the results in input order.
// Per-call options start from the coordinator's options.
func (c *Coordinator) RunBatch(ctx context.Context, queries []string, optFns ...func(o *Options)) Result {
	opts := c.opts
	opts.RunOptions = append([]func(o *flow.RunOptions){}, c.opts.RunOptions...)

	for _, fn := range optFns {
		fn(&opts)
	}

	limit := max(opts.MaxConcurrency, 1)
	observer := core.ObserverOrNoOp(opts.Observer)

	batchID := core.NewID()
	ctx = core.WithBatchID(ctx, batchID)
	logger := logging.WithRun(opts.Logger, "", batchID)

	start := time.Now()

	core.Emit(ctx, observer, core.Event{Type: core.EventBatchStart, Attrs: map[string]any{"total": len(queries), "max_concurrency": limit}})
	logger.Info("batch.start", "total", len(queries), "max_concurrency", limit)

	items := make([]Item, len(queries))

	var g errgroup.Group
	g.SetLimit(limit)

	for i, q := range queries {
		g.Go(func() error {
			items[i] = c.runItem(ctx, logger, i, q, opts.RunOptions)
			return nil
		})
	}

	_ = g.Wait() // outcomes are captured per item

	summary := Summarize(items)
	summary.StartedAt = start.UTC()
	summary.Duration = time.Since(start)

	logging.LogBatch(logger, summary.Total, summary.Failed, summary.TotalIterations, summary.AvgIterations, summary.Duration)

	core.Emit(ctx, observer, core.Event{Type: core.EventBatchEnd, Duration: summary.Duration, Attrs: map[string]any{
		"total":            summary.Total,
		"succeeded":        summary.Succeeded,
		"incomplete":       summary.Incomplete,
		"failed":           summary.Failed,
		"total_iterations": summary.TotalIterations,
	}})

	return Result{BatchID: batchID, Items: items, Summary: summary}
}

func (c *Coordinator) runItem(ctx context.Context, logger logging.Logger, index int, query string, runOpts []func(o *flow.RunOptions)) (item Item) {
	item = Item{Index: index, Query: query}
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("batch.item.panic", "index", index, "panic", fmt.Sprint(rec), "stack", string(debug.Stack()))

			item.Result = flow.Result{
				Query:     query,
				Status:    flow.StatusFailed,
				StartedAt: start.UTC(),
				Duration:  time.Since(start),
				Error: &flow.Error{
					Stage:    StageBatch,
					Kind:     core.KindInternal,
					Attempts: 1,
					Message:  fmt.Sprintf("panic: %v", rec),
				},
			}
		}
	}()

	item.Result = c.runner.RunQuery(ctx, query, runOpts...)

	logger.Debug("batch.item.done", "index", index, "run_id", item.Result.RunID, "status", string(item.Result.Status))

	return item
}
