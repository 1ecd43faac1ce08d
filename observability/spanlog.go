package observability

import (
	"context"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/hupe1980/agentgraph/logging"
)

// LogSpanProcessor writes every finished span to a logger. It lets the CLI
// show the span tree without an exporter backend.
type LogSpanProcessor struct {
	logger logging.Logger
}

var _ sdktrace.SpanProcessor = (*LogSpanProcessor)(nil)

// NewLogSpanProcessor creates a LogSpanProcessor.
func NewLogSpanProcessor(logger logging.Logger) *LogSpanProcessor {
	return &LogSpanProcessor{logger: logging.OrNoOp(logger)}
}

// NewLogTracerProvider returns an SDK tracer provider whose spans go to logger.
func NewLogTracerProvider(logger logging.Logger) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(NewLogSpanProcessor(logger)))
}

// OnStart implements sdktrace.SpanProcessor.
func (p *LogSpanProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

// OnEnd implements sdktrace.SpanProcessor.
func (p *LogSpanProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	args := []any{
		"span.name", s.Name(),
		"span.trace_id", s.SpanContext().TraceID().String(),
		"span.id", s.SpanContext().SpanID().String(),
		"span.duration", s.EndTime().Sub(s.StartTime()),
		"span.status", s.Status().Code.String(),
		"span.events", len(s.Events()),
	}

	if parent := s.Parent(); parent.IsValid() {
		args = append(args, "span.parent_id", parent.SpanID().String())
	}

	for _, kv := range s.Attributes() {
		args = append(args, "span.attr."+string(kv.Key), kv.Value.Emit())
	}

	p.logger.Debug("trace.span", args...)
}

// Shutdown implements sdktrace.SpanProcessor.
func (p *LogSpanProcessor) Shutdown(context.Context) error { return nil }

// ForceFlush implements sdktrace.SpanProcessor.
func (p *LogSpanProcessor) ForceFlush(context.Context) error { return nil }
