package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/model"
)

func newTestModel(t *testing.T, handler http.HandlerFunc) *Model {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewModel(func(o *Options) {
		o.RequestOptions = []option.RequestOption{
			option.WithBaseURL(srv.URL + "/"),
			option.WithAPIKey("test"),
			option.WithMaxRetries(0),
		}
	})
}

func TestGenerateParsesToolCalls(t *testing.T) {
	var body map[string]any

	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": null,
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "calculate", "arguments": "{\"expression\":\"2+2\"}"}
					}]
				}
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`)
	})

	resp, err := m.Generate(context.Background(), model.Request{
		Instructions: "be brief",
		Messages:     []core.Message{core.NewUserMessage("what is 2+2")},
		Tools: []model.ToolDefinition{model.NewToolDefinition("calculate", "math", map[string]any{
			"type":       "object",
			"properties": map[string]any{"expression": map[string]any{"type": "string"}},
		})},
	})
	require.NoError(t, err)

	assert.Equal(t, "chatcmpl-1", resp.ID)
	assert.Equal(t, "tool_calls", resp.FinishReason)
	require.Len(t, resp.Message.ToolCalls, 1)
	assert.Equal(t, core.ToolCall{ID: "call_1", Name: "calculate", Arguments: `{"expression":"2+2"}`}, resp.Message.ToolCalls[0])
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Len(t, body["tools"], 1)
}

func TestGenerateClassifiesErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   core.Kind
	}{
		{"rate limited", http.StatusTooManyRequests, core.KindTransient},
		{"server error", http.StatusInternalServerError, core.KindTransient},
		{"bad request", http.StatusBadRequest, core.KindInvalidInput},
		{"unauthorized", http.StatusUnauthorized, core.KindInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModel(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"error": {"message": "nope", "type": "error"}}`)
			})

			_, err := m.Generate(context.Background(), model.Request{Messages: []core.Message{core.NewUserMessage("hi")}})
			require.Error(t, err)
			assert.Equal(t, tt.want, core.KindOf(err))
		})
	}
}

func TestGenerateDroppedConnectionIsTransient(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, _ *http.Request) {
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			_ = conn.Close()
		}
	})

	_, err := m.Generate(context.Background(), model.Request{Messages: []core.Message{core.NewUserMessage("hi")}})
	require.Error(t, err)
	assert.Equal(t, core.KindTransient, core.KindOf(err))
	assert.True(t, core.IsRetriable(err))
}

func TestBuildMessages(t *testing.T) {
	msgs := buildMessages(model.Request{
		Messages: []core.Message{
			core.NewUserMessage("q"),
			core.NewAssistantMessage("", core.ToolCall{ID: "c1", Name: "web_search", Arguments: `{}`}),
			core.NewToolMessage("c1", "result"),
			core.NewAssistantMessage("answer"),
		},
	})

	require.Len(t, msgs, 4)
	assert.NotNil(t, msgs[0].OfUser)
	require.NotNil(t, msgs[1].OfAssistant)
	assert.Len(t, msgs[1].OfAssistant.ToolCalls, 1)
	assert.NotNil(t, msgs[2].OfTool)
	assert.NotNil(t, msgs[3].OfAssistant)
}

func TestInfo(t *testing.T) {
	m := NewModel(func(o *Options) { o.Model = "gpt-test" })
	assert.Equal(t, model.Info{Name: "gpt-test", Provider: "openai", SupportsTools: true}, m.Info())
}
