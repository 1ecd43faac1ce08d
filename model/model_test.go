package model

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/core"
)

func TestClassifyStatus(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		status int
		want   core.Kind
	}{
		{0, core.KindTransient},
		{http.StatusRequestTimeout, core.KindTransient},
		{http.StatusConflict, core.KindTransient},
		{http.StatusTooManyRequests, core.KindTransient},
		{http.StatusInternalServerError, core.KindTransient},
		{http.StatusServiceUnavailable, core.KindTransient},
		{http.StatusBadRequest, core.KindInvalidInput},
		{http.StatusUnauthorized, core.KindInvalidInput},
		{http.StatusNotFound, core.KindInvalidInput},
		{http.StatusOK, core.KindUnclassified},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := ClassifyStatus("op", tt.status, cause)
			assert.Equal(t, tt.want, core.KindOf(err))
			assert.ErrorIs(t, err, cause)
		})
	}
}

func TestClassifyContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ClassifyContext(ctx, "op", errors.New("request aborted"))
	require.Error(t, err)
	assert.Equal(t, core.KindCanceled, core.KindOf(err))

	err = ClassifyContext(context.Background(), "op", context.DeadlineExceeded)
	assert.Equal(t, core.KindTimeout, core.KindOf(err))

	assert.NoError(t, ClassifyContext(context.Background(), "op", errors.New("other")))
}

func TestMockModel(t *testing.T) {
	m := NewMockModel("mock-1", "mock")
	m.AddResponse("hi", "hello there")

	resp, err := m.Generate(context.Background(), Request{Messages: []core.Message{core.NewUserMessage("hi")}})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Message.Content)
	assert.Equal(t, core.RoleAssistant, resp.Message.Role)

	resp, err = m.Generate(context.Background(), Request{Messages: []core.Message{core.NewUserMessage("other")}})
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: other", resp.Message.Content)

	_, err = m.Generate(context.Background(), Request{})
	assert.Equal(t, core.KindInvalidInput, core.KindOf(err))

	assert.Equal(t, "mock-1", m.Info().Name)
}

func TestScriptedModel(t *testing.T) {
	call := core.ToolCall{ID: "c1", Name: "calculate", Arguments: `{"expression":"1+1"}`}
	failure := errors.New("rate limited")

	m := NewScriptedModel(CallTools(call), Fail(failure), Reply("done"))

	resp, err := m.Generate(context.Background(), Request{Messages: []core.Message{core.NewUserMessage("q")}})
	require.NoError(t, err)
	assert.Equal(t, "tool_calls", resp.FinishReason)
	require.Len(t, resp.Message.ToolCalls, 1)
	assert.Equal(t, "calculate", resp.Message.ToolCalls[0].Name)

	_, err = m.Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, failure)

	resp, err = m.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Message.Content)

	// exhausted scripts repeat the final entry
	resp, err = m.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Message.Content)

	assert.Equal(t, 4, m.Calls())
	reqs := m.Requests()
	require.Len(t, reqs, 4)
	assert.Equal(t, "q", reqs[0].Messages[0].Content)
}

func TestScriptedModelHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewScriptedModel(Reply("x"))
	_, err := m.Generate(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, m.Calls())
}
