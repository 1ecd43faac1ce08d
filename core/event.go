package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType names an observable lifecycle transition.
type EventType string

const (
	// EventRunStart is emitted when a flow run begins.
	EventRunStart EventType = "run_start"
	// EventRunEnd is emitted when a flow run finishes (any status).
	EventRunEnd EventType = "run_end"
	// EventStageStart is emitted when a flow stage begins.
	EventStageStart EventType = "stage_start"
	// EventStageEnd is emitted when a flow stage finishes.
	EventStageEnd EventType = "stage_end"
	// EventAttemptStart is emitted before each step attempt.
	EventAttemptStart EventType = "attempt_start"
	// EventAttemptSuccess is emitted when an attempt returns a value.
	EventAttemptSuccess EventType = "attempt_success"
	// EventAttemptFailure is emitted when an attempt fails, retried or not.
	EventAttemptFailure EventType = "attempt_failure"
	// EventAttemptRetry is emitted when the executor schedules another attempt.
	EventAttemptRetry EventType = "attempt_retry"
	// EventBatchStart is emitted when a batch begins.
	EventBatchStart EventType = "batch_start"
	// EventBatchEnd is emitted when every batch item has finished.
	EventBatchEnd EventType = "batch_end"
)

// Event is an immutable observability record. Fields that do not apply to
// a given Type are left zero.
type Event struct {
	Type        EventType      `json:"type"`
	RunID       string         `json:"run_id,omitempty"`
	BatchID     string         `json:"batch_id,omitempty"`
	Step        string         `json:"step,omitempty"`
	Attempt     int            `json:"attempt,omitempty"`
	MaxAttempts int            `json:"max_attempts,omitempty"`
	Kind        Kind           `json:"kind,omitempty"`
	Err         error          `json:"-"`
	Delay       time.Duration  `json:"delay,omitempty"`
	Duration    time.Duration  `json:"duration,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Attrs       map[string]any `json:"attrs,omitempty"`
}

// Observer receives lifecycle events. Implementations must be safe for
// concurrent use and must not block the caller for long; wrap slow sinks in
// an asynchronous observer.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// Observe calls f(e).
func (f ObserverFunc) Observe(e Event) { f(e) }

// NoOpObserver discards all events.
type NoOpObserver struct{}

// Observe does nothing.
func (NoOpObserver) Observe(Event) {}

// ObserverOrNoOp substitutes a NoOpObserver for nil.
func ObserverOrNoOp(o Observer) Observer {
	if o == nil {
		return NoOpObserver{}
	}

	return o
}

// NewID generates a new unique identifier for runs and batches.
func NewID() string { return uuid.NewString() }

type ctxKey int

const (
	runIDKey ctxKey = iota
	batchIDKey
)

// WithRunID returns a context carrying the run identifier used to tag events.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext returns the run identifier stored by WithRunID.
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

// WithBatchID returns a context carrying the batch identifier.
func WithBatchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, batchIDKey, id)
}

// BatchIDFromContext returns the batch identifier stored by WithBatchID.
func BatchIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(batchIDKey).(string)
	return id
}

// Emit stamps e with the identifiers found in ctx and the current time, then
// delivers it to o. A panicking observer loses the event; the caller keeps
// running.
func Emit(ctx context.Context, o Observer, e Event) {
	if o == nil {
		return
	}

	defer func() { _ = recover() }()

	if e.RunID == "" {
		e.RunID = RunIDFromContext(ctx)
	}

	if e.BatchID == "" {
		e.BatchID = BatchIDFromContext(ctx)
	}

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	o.Observe(e)
}
