package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmit_StampsContextIDs(t *testing.T) {
	var got Event

	ctx := WithBatchID(WithRunID(context.Background(), "r1"), "b1")
	Emit(ctx, ObserverFunc(func(e Event) { got = e }), Event{Type: EventRunStart})

	assert.Equal(t, "r1", got.RunID)
	assert.Equal(t, "b1", got.BatchID)
	assert.False(t, got.Timestamp.IsZero())
}

func TestEmit_ObserverPanicIsContained(t *testing.T) {
	var calls int

	boom := ObserverFunc(func(Event) {
		calls++
		panic("sink closed")
	})

	require.NotPanics(t, func() {
		Emit(context.Background(), boom, Event{Type: EventAttemptStart})
		Emit(context.Background(), boom, Event{Type: EventAttemptSuccess})
	})
	assert.Equal(t, 2, calls)
}

func TestEmit_NilObserver(t *testing.T) {
	assert.NotPanics(t, func() { Emit(context.Background(), nil, Event{Type: EventRunEnd}) })
}
