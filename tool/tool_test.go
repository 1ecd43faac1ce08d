package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/core"
)

// -------------------- FunctionTool Tests --------------------

func sumTool() *FunctionTool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	return NewFunctionTool("sum", "Add numbers", params, func(_ context.Context, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})
}

func TestFunctionTool_Success(t *testing.T) {
	result, err := sumTool().Call(context.Background(), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	execTool := NewFunctionTool("fail", "Fails", params, func(_ context.Context, _ map[string]any) (any, error) {
		return nil, core.NewError(core.KindTransient, "upstream", errors.New("boom"))
	})

	_, err := execTool.Call(context.Background(), map[string]any{})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Equal(t, core.KindTransient, core.KindOf(err))
}

func TestFunctionTool_ForwardsToolError(t *testing.T) {
	custom := NewToolError("x", "nope", "E42")
	execTool := NewFunctionTool("x", "X", nil, func(_ context.Context, _ map[string]any) (any, error) {
		return nil, custom
	})

	_, err := execTool.Call(context.Background(), nil)
	assert.Same(t, custom, err)
}

func TestNewFunctionToolFromStruct(t *testing.T) {
	type args struct {
		Query string `json:"query" description:"Search query"`
	}

	ft := NewFunctionToolFromStruct("search", "Search", args{}, func(_ context.Context, a map[string]any) (any, error) {
		return a["query"], nil
	})

	props := ft.Parameters()["properties"].(map[string]any)
	assert.Contains(t, props, "query")
	assert.Equal(t, "search", ft.Name())
	assert.Equal(t, "Search", ft.Description())
}

// -------------------- Registry Tests --------------------

func TestNewRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry([]Tool{sumTool(), sumTool()})
	assert.ErrorContains(t, err, "duplicate tool name")
}

func TestNewRegistry_RejectsBadSchema(t *testing.T) {
	bad := NewFunctionTool("bad", "Bad", map[string]any{"type": 42}, nil)
	_, err := NewRegistry([]Tool{bad})
	assert.Error(t, err)
}

func TestNewRegistry_RejectsEmptyName(t *testing.T) {
	_, err := NewRegistry([]Tool{NewFunctionTool(" ", "x", nil, nil)})
	assert.Error(t, err)
}

func TestRegistry_OrderAndLookup(t *testing.T) {
	echo := NewFunctionTool("echo", "Echo", nil, func(_ context.Context, a map[string]any) (any, error) { return a["v"], nil })
	r := MustNewRegistry(sumTool(), echo)

	assert.Equal(t, []string{"sum", "echo"}, r.Names())
	assert.Equal(t, 2, r.Len())

	got, ok := r.Lookup("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", got.Name())

	_, ok = r.Lookup("missing")
	assert.False(t, ok)

	tools := r.Tools()
	require.Len(t, tools, 2)
	assert.Equal(t, "sum", tools[0].Name())
}

func TestRegistry_Invoke(t *testing.T) {
	panicky := NewFunctionTool("panicky", "Panics", nil, func(_ context.Context, _ map[string]any) (any, error) {
		panic("kaboom")
	})
	failing := NewFunctionTool("failing", "Fails", nil, func(_ context.Context, _ map[string]any) (any, error) {
		return nil, errors.New("disk full")
	})
	r := MustNewRegistry(sumTool(), panicky, failing)

	tests := []struct {
		name     string
		call     core.ToolCall
		want     string
		wantKind core.Kind
		wantText string
	}{
		{name: "success", call: core.ToolCall{ID: "1", Name: "sum", Arguments: `{"a":1,"b":2}`}, want: "3"},
		{name: "unknown tool", call: core.ToolCall{ID: "2", Name: "nope"}, wantKind: core.KindUnknownTool},
		{name: "invalid json", call: core.ToolCall{ID: "3", Name: "sum", Arguments: `{"a":`}, wantKind: core.KindMalformedArguments},
		{name: "schema violation", call: core.ToolCall{ID: "4", Name: "sum", Arguments: `{"a":"x","b":2}`}, wantKind: core.KindMalformedArguments},
		{name: "missing required", call: core.ToolCall{ID: "5", Name: "sum", Arguments: `{"a":1}`}, wantKind: core.KindMalformedArguments},
		{name: "panic", call: core.ToolCall{ID: "6", Name: "panicky"}, wantKind: core.KindInternal, wantText: "panic: kaboom"},
		{name: "tool error", call: core.ToolCall{ID: "7", Name: "failing"}, wantKind: core.KindUnclassified, wantText: "disk full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.Invoke(context.Background(), tt.call)
			if tt.wantKind == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.want, out)

				return
			}

			require.Error(t, err)
			assert.Equal(t, tt.wantKind, core.KindOf(err))

			if tt.wantText != "" {
				assert.Equal(t, tt.wantText, ErrorDescription(err))
			}
		})
	}

	_, err := r.Invoke(context.Background(), core.ToolCall{Name: "nope"})
	assert.ErrorIs(t, err, core.ErrUnknownTool)
}

func TestFormatResult(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"text", "text"},
		{[]byte("raw"), "raw"},
		{42, "42"},
		{map[string]any{"k": "v"}, `{"k":"v"}`},
	}

	for _, tt := range tests {
		got, err := FormatResult(tt.in)
		assert.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := FormatResult(make(chan int))
	assert.Error(t, err)
}

// -------------------- ToolError Formatting --------------------

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")

	err.Code = ""
	assert.Equal(t, "tool error in demo: something failed", err.Error())
}
