package builtin

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/tool"
)

func TestAll_RegistersCleanly(t *testing.T) {
	reg, err := tool.NewRegistry(All())
	require.NoError(t, err)
	assert.Equal(t, []string{"web_search", "calculate", "analyze_sentiment", "analyze_data", "get_weather"}, reg.Names())
}

func TestWebSearch(t *testing.T) {
	out, err := WebSearch().Call(context.Background(), map[string]any{"query": "go generics"})
	require.NoError(t, err)
	assert.Equal(t, "Search results for 'go generics': Found 5 relevant articles about this topic. "+
		"Key findings include recent developments and expert opinions.", out)
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		expr    string
		want    string
		wantErr bool
	}{
		{expr: "25 * 47", want: "1175"},
		{expr: "(2 + 3) * 4", want: "20"},
		{expr: "10 / 4", want: "2.5"},
		{expr: "4 / 2", want: "2"},
		{expr: "7 % 3", want: "1"},
		{expr: "1.5 + 1", want: "2.5"},
		{expr: "", wantErr: true},
		{expr: "1 / 0", wantErr: true},
		{expr: "len(\"x\")", wantErr: true},
		{expr: "2 +", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Evaluate(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculate_ThroughRegistry(t *testing.T) {
	reg := tool.MustNewRegistry(Calculate())

	out, err := reg.Invoke(context.Background(), core.ToolCall{ID: "1", Name: "calculate", Arguments: `{"expression":"156 * 89"}`})
	require.NoError(t, err)
	assert.Equal(t, "Result: 13884", out)

	_, err = reg.Invoke(context.Background(), core.ToolCall{ID: "2", Name: "calculate", Arguments: `{"expression":"os.Exit(1)"}`})
	require.Error(t, err)
	assert.Contains(t, tool.ErrorDescription(err), "unsupported character")

	_, err = reg.Invoke(context.Background(), core.ToolCall{ID: "3", Name: "calculate", Arguments: `{}`})
	assert.Equal(t, core.KindMalformedArguments, core.KindOf(err))
}

func TestClassifySentiment(t *testing.T) {
	tests := map[string]string{
		"This is an amazing product!":            "Positive",
		"Terrible service and awful food":        "Negative",
		"It arrived on Tuesday":                  "Neutral",
		"Great idea but the worst execution":     "Neutral",
		"GOOD, GREAT and the best, but bad too.": "Positive",
	}

	for in, want := range tests {
		assert.Equal(t, want, ClassifySentiment(in), in)
	}

	out, err := AnalyzeSentiment().Call(context.Background(), map[string]any{"text": "I love it"})
	require.NoError(t, err)
	assert.Equal(t, "Sentiment: Positive", out)
}

func TestDescribe(t *testing.T) {
	s := Describe([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.Equal(t, 8, s.Count)
	assert.InDelta(t, 5.0, s.Mean, 1e-9)
	assert.InDelta(t, 4.5, s.Median, 1e-9)
	assert.InDelta(t, 2.0, s.StdDev, 1e-9)
	assert.Equal(t, 2.0, s.Min)
	assert.Equal(t, 9.0, s.Max)

	s = Describe([]float64{3, 1, 2})
	assert.Equal(t, 2.0, s.Median)
}

func TestAnalyzeData(t *testing.T) {
	out, err := AnalyzeData().Call(context.Background(), map[string]any{"data": "1, 2, 3, 4"})
	require.NoError(t, err)
	assert.Equal(t, "Analysis of '1, 2, 3, 4': Mean=2.5, Median=2.5, StdDev=1.12, Count=4, Min=1, Max=4", out)

	_, err = AnalyzeData().Call(context.Background(), map[string]any{"data": "1, two"})
	assert.ErrorContains(t, err, "invalid number")

	_, err = ParseSeries(" ,, ")
	assert.Error(t, err)
}

func TestWeather_Deterministic(t *testing.T) {
	a := Weather(rand.New(rand.NewPCG(1, 2)))
	b := Weather(rand.New(rand.NewPCG(1, 2)))

	outA, err := a.Call(context.Background(), map[string]any{"city": "new york"})
	require.NoError(t, err)
	outB, err := b.Call(context.Background(), map[string]any{"city": "new york"})
	require.NoError(t, err)

	assert.Equal(t, outA, outB)
	assert.Contains(t, outA, "Weather in New York: ")

	_, err = a.Call(context.Background(), map[string]any{"city": "  "})
	assert.Error(t, err)
}

func TestWeather_UnitThroughRegistry(t *testing.T) {
	reg := tool.MustNewRegistry(Weather(rand.New(rand.NewPCG(3, 4))))

	out, err := reg.Invoke(context.Background(), core.ToolCall{ID: "w", Name: "get_weather", Arguments: `{"city":"oslo","unit":"celsius"}`})
	require.NoError(t, err)
	assert.Contains(t, out, "°C")

	_, err = reg.Invoke(context.Background(), core.ToolCall{ID: "w", Name: "get_weather", Arguments: `{"city":"oslo","unit":"kelvin"}`})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMalformedArguments)
}
