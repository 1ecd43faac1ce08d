package agentgraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/flow"
	"github.com/hupe1980/agentgraph/model"
	"github.com/hupe1980/agentgraph/task"
	"github.com/hupe1980/agentgraph/tool"
	"github.com/hupe1980/agentgraph/tool/builtin"
)

func TestRunQuery_UsesBuiltinTools(t *testing.T) {
	m := model.NewScriptedModel(
		model.CallTools(core.ToolCall{ID: "c1", Name: "calculate", Arguments: `{"expression":"25 * 47"}`}),
		model.Reply("25 * 47 = 1175"),
	)

	ag, err := New(m)
	require.NoError(t, err)

	res := ag.RunQuery(context.Background(), "What is 25 * 47?")
	require.NoError(t, res.Err())

	assert.Equal(t, flow.StatusCompleted, res.Status)
	assert.Equal(t, "25 * 47 = 1175", res.Answer)
	assert.Equal(t, 2, res.Iterations)
	require.Len(t, res.Messages, 4)
	assert.Equal(t, "Result: 1175", res.Messages[2].Content)
}

func TestRunBatch(t *testing.T) {
	m := model.Func(func(_ context.Context, req model.Request) (model.Response, error) {
		return model.Response{Message: core.NewAssistantMessage("echo: " + req.Messages[0].Content)}, nil
	})

	ag, err := New(m, func(o *Options) {
		o.MaxConcurrency = 2
		o.Policy = task.Policy{MaxRetries: 0}
	})
	require.NoError(t, err)

	res := ag.RunBatch(context.Background(), []string{"one", "two", "three"})

	require.Len(t, res.Items, 3)
	assert.Equal(t, "echo: two", res.Items[1].Result.Answer)
	assert.Equal(t, 3, res.Summary.Succeeded)
	assert.Equal(t, 3, res.Summary.TotalIterations)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(model.NewScriptedModel(model.Reply("ok")), func(o *Options) {
		o.Tools = []tool.Tool{builtin.Calculate(), builtin.Calculate()}
	})
	require.Error(t, err)

	_, err = New(nil)
	require.Error(t, err)
}
