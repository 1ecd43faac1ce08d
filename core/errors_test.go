package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      Kind
		retriable bool
	}{
		{"nil", nil, "", false},
		{"plain", errors.New("x"), KindUnclassified, false},
		{"transient", NewError(KindTransient, "model", errors.New("429")), KindTransient, true},
		{"wrapped transient", fmt.Errorf("outer: %w", NewError(KindTransient, "model", errors.New("503"))), KindTransient, true},
		{"deadline", context.DeadlineExceeded, KindTimeout, true},
		{"canceled", context.Canceled, KindCanceled, false},
		{"unknown tool", fmt.Errorf("call: %w", ErrUnknownTool), KindUnknownTool, false},
		{"malformed", NewError(KindMalformedArguments, "tools", ErrMalformedArguments), KindMalformedArguments, false},
		{"internal", Errorf(KindInternal, "step", "panic: %v", "boom"), KindInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.Equal(t, tt.retriable, IsRetriable(tt.err))
		})
	}
}

func TestError_Message(t *testing.T) {
	err := NewError(KindUnknownTool, "tools", ErrUnknownTool)
	assert.Equal(t, "tools: unknown_tool: unknown tool", err.Error())
	assert.True(t, errors.Is(err, ErrUnknownTool))

	err = NewError(KindTimeout, "", context.DeadlineExceeded)
	assert.Equal(t, "timeout: context deadline exceeded", err.Error())
}

func TestEmit_StampsContextIdentifiers(t *testing.T) {
	var got Event

	ctx := WithBatchID(WithRunID(context.Background(), "run-1"), "batch-1")
	Emit(ctx, ObserverFunc(func(e Event) { got = e }), Event{Type: EventAttemptStart})

	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "batch-1", got.BatchID)
	assert.False(t, got.Timestamp.IsZero())

	// nil observers are ignored
	Emit(ctx, nil, Event{Type: EventRunStart})
	ObserverOrNoOp(nil).Observe(Event{})
}
