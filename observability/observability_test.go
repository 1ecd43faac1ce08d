package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/flow"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/model"
)

type collector struct {
	mu     sync.Mutex
	events []core.Event
}

func (c *collector) Observe(e core.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = append(c.events, e)
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.events)
}

func runScenario(t *testing.T, obs core.Observer) flow.Result {
	t.Helper()

	m := model.NewScriptedModel(
		model.Fail(core.Errorf(core.KindTransient, "test", "rate limited")),
		model.Reply("done"),
	)

	o, err := flow.New(m, nil, func(o *flow.Options) {
		o.Observer = obs
		o.Sleep = func(context.Context, time.Duration) error { return nil }
	})
	require.NoError(t, err)

	return o.RunQuery(context.Background(), "hello")
}

func TestMulti(t *testing.T) {
	a, b := &collector{}, &collector{}

	m := NewMulti(a, nil, b)
	require.Len(t, m, 2)

	m.Observe(core.Event{Type: core.EventRunStart})
	assert.Equal(t, 1, a.len())
	assert.Equal(t, 1, b.len())
}

func TestAsyncObserver_DeliversAndCloses(t *testing.T) {
	c := &collector{}
	a := NewAsyncObserver(c, 16)

	for i := 0; i < 10; i++ {
		a.Observe(core.Event{Type: core.EventAttemptStart, Attempt: i + 1})
	}

	a.Close()
	a.Close()

	assert.Equal(t, 10, c.len())
	assert.Zero(t, a.Dropped())

	a.Observe(core.Event{Type: core.EventRunEnd})
	assert.EqualValues(t, 1, a.Dropped())
}

func TestAsyncObserver_DropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	blocking := core.ObserverFunc(func(core.Event) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	})

	a := NewAsyncObserver(blocking, 2)

	a.Observe(core.Event{Type: core.EventRunStart})
	<-started // the loop holds the first event

	for i := 0; i < 5; i++ {
		a.Observe(core.Event{Type: core.EventAttemptStart})
	}

	assert.EqualValues(t, 3, a.Dropped())

	close(release)
	a.Close()
}

func TestAsyncObserver_SurvivesPanickingObserver(t *testing.T) {
	c := &collector{}
	calls := 0

	a := NewAsyncObserver(NewMulti(core.ObserverFunc(func(core.Event) {
		calls++
		if calls == 1 {
			panic("observer bug")
		}
	}), c), 4)

	a.Observe(core.Event{Type: core.EventRunStart})
	a.Observe(core.Event{Type: core.EventRunEnd})
	a.Close()

	assert.Equal(t, 1, c.len())
}

func TestLogObserver(t *testing.T) {
	var buf bytes.Buffer

	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Format: "json", Output: &buf})
	obs := NewLogObserver(logger)

	obs.Observe(core.Event{Type: core.EventAttemptRetry, RunID: "r1", Step: "agent", Attempt: 1, Kind: core.KindTransient, Delay: 100 * time.Millisecond, Err: errors.New("rate limited")})
	obs.Observe(core.Event{Type: core.EventRunEnd, RunID: "r1", Attrs: map[string]any{"status": "completed"}})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var retry, end map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &retry))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &end))

	assert.Equal(t, "event.attempt_retry", retry["msg"])
	assert.Equal(t, "WARN", retry["level"])
	assert.Equal(t, "transient", retry["kind"])
	assert.EqualValues(t, 100, retry["delay_ms"])
	assert.Equal(t, "rate limited", retry["error"])

	assert.Equal(t, "event.run_end", end["msg"])
	assert.Equal(t, "INFO", end["level"])
	assert.Equal(t, "completed", end["status"])
}

func TestMetrics_FromRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	res := runScenario(t, metrics)
	require.Equal(t, flow.StatusCompleted, res.Status)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Runs.WithLabelValues("completed")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.ActiveRuns), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Attempts.WithLabelValues("agent", "failure")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Attempts.WithLabelValues("agent", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Retries.WithLabelValues("agent", "transient")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.RunDuration))
}

func TestMetrics_BatchEnd(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.Observe(core.Event{Type: core.EventBatchEnd, Attrs: map[string]any{"succeeded": 2, "incomplete": 0, "failed": 1}})

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Batches), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.BatchItems.WithLabelValues("completed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.BatchItems.WithLabelValues("failed")), 0)
}

func TestTraceObserver_SpanTree(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	res := runScenario(t, NewTraceObserver(tp))
	require.Equal(t, flow.StatusCompleted, res.Status)

	spans := sr.Ended()
	byName := make(map[string]sdktrace.ReadOnlySpan, len(spans))

	for _, s := range spans {
		byName[s.Name()] = s
	}

	run, ok := byName["agentgraph.run"]
	require.True(t, ok, "run span missing")
	assert.Equal(t, codes.Ok, run.Status().Code)

	for _, stage := range []string{flow.StageInitialize, flow.StageExecute, flow.StageFinalize} {
		s, ok := byName["agentgraph.stage."+stage]
		require.True(t, ok, "stage %s missing", stage)
		assert.Equal(t, run.SpanContext().SpanID(), s.Parent().SpanID())
	}

	var retries int
	for _, ev := range run.Events() {
		if ev.Name == string(core.EventAttemptRetry) {
			retries++
		}
	}

	assert.Equal(t, 1, retries)
}

func TestTraceObserver_FailedRun(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	obs := NewTraceObserver(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))

	now := time.Now()
	obs.Observe(core.Event{Type: core.EventRunStart, RunID: "r1", Timestamp: now})
	obs.Observe(core.Event{Type: core.EventRunEnd, RunID: "r1", Kind: core.KindTimeout, Err: errors.New("too slow"), Timestamp: now.Add(time.Second)})

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "too slow", spans[0].Status().Description)
}

func TestLogSpanProcessor(t *testing.T) {
	var buf bytes.Buffer

	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Format: "json", Output: &buf})
	tp := NewLogTracerProvider(logger)

	res := runScenario(t, NewTraceObserver(tp))
	require.Equal(t, flow.StatusCompleted, res.Status)

	names := map[string]bool{}

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))

		if rec["msg"] == "trace.span" {
			names[rec["span.name"].(string)] = true
		}
	}

	assert.True(t, names["agentgraph.run"])
	assert.True(t, names["agentgraph.stage.execute"])
}
