package observability

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentgraph/core"
)

// TracerName is the instrumentation name used for spans.
const TracerName = "github.com/hupe1980/agentgraph"

// TraceObserver turns lifecycle events into OpenTelemetry spans.
//
// Span hierarchy:
//
//	agentgraph.batch            (batch_start .. batch_end)
//	└── agentgraph.run          (run_start .. run_end)
//	    └── agentgraph.stage.*  (stage_start .. stage_end)
//
// Attempt events are recorded as span events on the run span.
type TraceObserver struct {
	tracer trace.Tracer

	mu      sync.Mutex
	batches map[string]trace.Span
	runs    map[string]trace.Span
	stages  map[string]trace.Span
}

// NewTraceObserver creates a TraceObserver. A nil provider uses the global
// tracer provider, which is a no-op unless the application configured one.
func NewTraceObserver(tp trace.TracerProvider) *TraceObserver {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return &TraceObserver{
		tracer:  tp.Tracer(TracerName),
		batches: make(map[string]trace.Span),
		runs:    make(map[string]trace.Span),
		stages:  make(map[string]trace.Span),
	}
}

// Observe implements core.Observer.
func (t *TraceObserver) Observe(e core.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch e.Type {
	case core.EventBatchStart:
		t.batches[e.BatchID] = t.start(context.Background(), "agentgraph.batch", e, attribute.String("batch.id", e.BatchID))
	case core.EventBatchEnd:
		t.end(t.batches, e.BatchID, e)
	case core.EventRunStart:
		parent := context.Background()
		if span, ok := t.batches[e.BatchID]; ok && e.BatchID != "" {
			parent = trace.ContextWithSpan(parent, span)
		}

		t.runs[e.RunID] = t.start(parent, "agentgraph.run", e, attribute.String("run.id", e.RunID))
	case core.EventRunEnd:
		t.end(t.runs, e.RunID, e)
	case core.EventStageStart:
		parent := context.Background()
		if span, ok := t.runs[e.RunID]; ok {
			parent = trace.ContextWithSpan(parent, span)
		}

		t.stages[stageKey(e)] = t.start(parent, "agentgraph.stage."+e.Step, e, attribute.String("stage", e.Step))
	case core.EventStageEnd:
		t.end(t.stages, stageKey(e), e)
	case core.EventAttemptStart, core.EventAttemptSuccess, core.EventAttemptFailure, core.EventAttemptRetry:
		span, ok := t.runs[e.RunID]
		if !ok {
			return
		}

		attrs := []attribute.KeyValue{
			attribute.String("step", e.Step),
			attribute.Int("attempt", e.Attempt),
		}

		if e.Kind != "" {
			attrs = append(attrs, attribute.String("error.kind", string(e.Kind)))
		}

		if e.Delay > 0 {
			attrs = append(attrs, attribute.Int64("delay_ms", e.Delay.Milliseconds()))
		}

		span.AddEvent(string(e.Type), trace.WithAttributes(attrs...), trace.WithTimestamp(e.Timestamp))
	}
}

func (t *TraceObserver) start(ctx context.Context, name string, e core.Event, attrs ...attribute.KeyValue) trace.Span {
	for _, k := range sortedAttrKeys(e.Attrs) {
		attrs = append(attrs, attributeFromValue(k, e.Attrs[k]))
	}

	_, span := t.tracer.Start(ctx, name, trace.WithTimestamp(e.Timestamp), trace.WithAttributes(attrs...))

	return span
}

func (t *TraceObserver) end(spans map[string]trace.Span, key string, e core.Event) {
	span, ok := spans[key]
	if !ok {
		return
	}

	delete(spans, key)

	attrs := make([]attribute.KeyValue, 0, len(e.Attrs)+1)
	for _, k := range sortedAttrKeys(e.Attrs) {
		attrs = append(attrs, attributeFromValue(k, e.Attrs[k]))
	}

	if e.Kind != "" {
		attrs = append(attrs, attribute.String("error.kind", string(e.Kind)))
	}

	span.SetAttributes(attrs...)

	if e.Err != nil {
		span.RecordError(e.Err)
		span.SetStatus(codes.Error, e.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End(trace.WithTimestamp(e.Timestamp))
}

func stageKey(e core.Event) string { return e.RunID + "/" + e.Step }

func attributeFromValue(key string, val any) attribute.KeyValue {
	switch v := val.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
