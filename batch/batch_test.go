package batch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/flow"
	"github.com/hupe1980/agentgraph/model"
)

// echoModel answers with the user's query and fails fatally for "b".
func echoModel() model.Model {
	return model.Func(func(_ context.Context, req model.Request) (model.Response, error) {
		q := req.Messages[0].Content
		if q == "b" {
			return model.Response{}, core.Errorf(core.KindInvalidInput, "echo", "refusing %q", q)
		}

		return model.Response{Message: core.NewAssistantMessage("answer: " + q)}, nil
	})
}

func TestRunBatch_OrderAndIsolation(t *testing.T) {
	orch, err := flow.New(echoModel(), nil)
	require.NoError(t, err)

	res := New(orch, func(o *Options) { o.MaxConcurrency = 2 }).
		RunBatch(context.Background(), []string{"a", "b", "c"})

	require.Len(t, res.Items, 3)

	for i, q := range []string{"a", "b", "c"} {
		assert.Equal(t, i, res.Items[i].Index)
		assert.Equal(t, q, res.Items[i].Query)
		assert.Equal(t, q, res.Items[i].Result.Query)
	}

	assert.Equal(t, flow.StatusCompleted, res.Items[0].Result.Status)
	assert.Equal(t, "answer: a", res.Items[0].Result.Answer)

	assert.Equal(t, flow.StatusFailed, res.Items[1].Result.Status)
	require.NotNil(t, res.Items[1].Result.Error)
	assert.Equal(t, core.KindInvalidInput, res.Items[1].Result.Error.Kind)

	assert.Equal(t, flow.StatusCompleted, res.Items[2].Result.Status)
	assert.Equal(t, "answer: c", res.Items[2].Result.Answer)

	assert.Equal(t, 3, res.Summary.Total)
	assert.Equal(t, 2, res.Summary.Succeeded)
	assert.Equal(t, 1, res.Summary.Failed)
	assert.Equal(t, 2, res.Summary.TotalIterations)
	assert.NotEmpty(t, res.BatchID)
}

func TestRunBatch_ExhaustedRetriesAndOutOfOrderCompletion(t *testing.T) {
	var (
		mu       sync.Mutex
		finished []string
		bCalls   atomic.Int32
	)

	cAnswered := make(chan struct{})

	m := model.Func(func(ctx context.Context, req model.Request) (model.Response, error) {
		q := req.Messages[0].Content

		switch q {
		case "a":
			select {
			case <-cAnswered:
			case <-ctx.Done():
				return model.Response{}, ctx.Err()
			}
		case "b":
			bCalls.Add(1)
			return model.Response{}, core.Errorf(core.KindTransient, "echo", "upstream busy")
		}

		mu.Lock()
		finished = append(finished, q)
		mu.Unlock()

		if q == "c" {
			close(cAnswered)
		}

		return model.Response{Message: core.NewAssistantMessage("answer: " + q)}, nil
	})

	orch, err := flow.New(m, nil, func(o *flow.Options) {
		o.Sleep = func(context.Context, time.Duration) error { return nil }
	})
	require.NoError(t, err)

	res := New(orch, func(o *Options) { o.MaxConcurrency = 3 }).
		RunBatch(context.Background(), []string{"a", "b", "c"})

	assert.Equal(t, []string{"c", "a"}, finished)

	require.Len(t, res.Items, 3)

	for i, q := range []string{"a", "b", "c"} {
		assert.Equal(t, i, res.Items[i].Index)
		assert.Equal(t, q, res.Items[i].Result.Query)
	}

	assert.Equal(t, flow.StatusCompleted, res.Items[0].Result.Status)
	assert.Equal(t, "answer: a", res.Items[0].Result.Answer)

	assert.Equal(t, flow.StatusFailed, res.Items[1].Result.Status)
	require.NotNil(t, res.Items[1].Result.Error)
	assert.Equal(t, core.KindTransient, res.Items[1].Result.Error.Kind)
	assert.Equal(t, 3, res.Items[1].Result.Error.Attempts)
	assert.EqualValues(t, 3, bCalls.Load())

	assert.Equal(t, flow.StatusCompleted, res.Items[2].Result.Status)
	assert.Equal(t, "answer: c", res.Items[2].Result.Answer)

	assert.Equal(t, 2, res.Summary.Succeeded)
	assert.Equal(t, 1, res.Summary.Failed)
}

func TestRunBatch_RespectsConcurrencyLimit(t *testing.T) {
	var inFlight, peak atomic.Int32

	runner := RunnerFunc(func(_ context.Context, q string, _ ...func(o *flow.RunOptions)) flow.Result {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)

		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}

		time.Sleep(10 * time.Millisecond)

		return flow.Result{Query: q, Status: flow.StatusCompleted, Iterations: 1}
	})

	queries := make([]string, 12)
	for i := range queries {
		queries[i] = string(rune('a' + i))
	}

	res := New(runner).RunBatch(context.Background(), queries, func(o *Options) { o.MaxConcurrency = 3 })

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Equal(t, 12, res.Summary.Succeeded)
	assert.InDelta(t, 1.0, res.Summary.AvgIterations, 1e-9)
}

func TestRunBatch_CapturesPanics(t *testing.T) {
	runner := RunnerFunc(func(_ context.Context, q string, _ ...func(o *flow.RunOptions)) flow.Result {
		if q == "boom" {
			panic("runner exploded")
		}

		return flow.Result{Query: q, Status: flow.StatusCompleted}
	})

	res := New(runner).RunBatch(context.Background(), []string{"ok", "boom", "fine"})

	require.Len(t, res.Items, 3)
	assert.Equal(t, flow.StatusCompleted, res.Items[0].Result.Status)
	assert.Equal(t, flow.StatusCompleted, res.Items[2].Result.Status)

	failed := res.Items[1].Result
	assert.Equal(t, flow.StatusFailed, failed.Status)
	require.NotNil(t, failed.Error)
	assert.Equal(t, core.KindInternal, failed.Error.Kind)
	assert.Equal(t, StageBatch, failed.Error.Stage)
	assert.Contains(t, failed.Error.Message, "runner exploded")
	assert.NotContains(t, failed.Error.Message, "goroutine")
}

func TestRunBatch_EventsAndBatchID(t *testing.T) {
	var (
		mu     sync.Mutex
		events []core.Event
	)

	obs := core.ObserverFunc(func(e core.Event) {
		mu.Lock()
		defer mu.Unlock()

		events = append(events, e)
	})

	orch, err := flow.New(echoModel(), nil, func(o *flow.Options) { o.Observer = obs })
	require.NoError(t, err)

	res := New(orch, func(o *Options) { o.Observer = obs }).RunBatch(context.Background(), []string{"x", "y"})

	require.NotEmpty(t, events)
	assert.Equal(t, core.EventBatchStart, events[0].Type)
	assert.Equal(t, core.EventBatchEnd, events[len(events)-1].Type)

	for _, e := range events {
		assert.Equal(t, res.BatchID, e.BatchID, "event %s", e.Type)
	}
}

func TestRunBatch_AppliesRunOptions(t *testing.T) {
	var seen atomic.Int32

	runner := RunnerFunc(func(_ context.Context, q string, optFns ...func(o *flow.RunOptions)) flow.Result {
		var ro flow.RunOptions
		for _, fn := range optFns {
			fn(&ro)
		}

		seen.Store(int32(ro.MaxIterations))

		return flow.Result{Query: q, Status: flow.StatusCompleted}
	})

	New(runner, func(o *Options) {
		o.RunOptions = []func(o *flow.RunOptions){flow.WithMaxIterations(7)}
	}).RunBatch(context.Background(), []string{"q"})

	assert.EqualValues(t, 7, seen.Load())
}

func TestRunBatch_Empty(t *testing.T) {
	res := New(RunnerFunc(func(context.Context, string, ...func(o *flow.RunOptions)) flow.Result {
		t.Fatal("runner must not be called")
		return flow.Result{}
	})).RunBatch(context.Background(), nil)

	assert.Empty(t, res.Items)
	assert.Equal(t, 0, res.Summary.Total)
	assert.Zero(t, res.Summary.AvgIterations)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]Item{
		{Result: flow.Result{Status: flow.StatusCompleted, Iterations: 2}},
		{Result: flow.Result{Status: flow.StatusIncomplete, Iterations: 5}},
		{Result: flow.Result{Status: flow.StatusFailed, Iterations: 1}},
		{Result: flow.Result{Status: flow.StatusCompleted, Iterations: 0}},
	})

	assert.Equal(t, Summary{Total: 4, Succeeded: 2, Incomplete: 1, Failed: 1, TotalIterations: 8, AvgIterations: 2}, s)
	assert.Contains(t, s.String(), "4 queries: 2 completed, 1 incomplete, 1 failed")
}
