package builtin

import (
	"context"
	"strings"

	"github.com/hupe1980/agentgraph/tool"
)

var (
	positiveWords = []string{"good", "great", "excellent", "amazing", "wonderful", "fantastic", "love", "best", "awesome", "perfect"}
	negativeWords = []string{"bad", "terrible", "awful", "poor", "horrible", "worst", "hate", "disappointing", "useless", "trash"}
)

type sentimentArgs struct {
	Text string `json:"text" description:"The text to analyze for sentiment"`
}

// AnalyzeSentiment returns a keyword based sentiment classifier reporting
// "Sentiment: Positive", "Sentiment: Negative" or "Sentiment: Neutral".
func AnalyzeSentiment() *tool.FunctionTool {
	return tool.NewFunctionToolFromStruct(
		"analyze_sentiment",
		"Analyze the sentiment of text. Returns positive, negative, or neutral.",
		sentimentArgs{},
		func(_ context.Context, args map[string]any) (any, error) {
			text, _ := args["text"].(string)
			return "Sentiment: " + ClassifySentiment(text), nil
		},
	)
}

// ClassifySentiment counts how many positive and negative keywords occur
// (as substrings, each keyword at most once) and returns the majority label.
func ClassifySentiment(text string) string {
	lower := strings.ToLower(text)

	pos, neg := 0, 0

	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			pos++
		}
	}

	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			neg++
		}
	}

	switch {
	case pos > neg:
		return "Positive"
	case neg > pos:
		return "Negative"
	default:
		return "Neutral"
	}
}
