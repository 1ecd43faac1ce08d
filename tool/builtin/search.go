package builtin

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentgraph/tool"
)

type searchArgs struct {
	Query string `json:"query" description:"The search query"`
}

// WebSearch returns a simulated search tool. It never touches the network
// and always reports the same canned summary for the given query.
func WebSearch() *tool.FunctionTool {
	return tool.NewFunctionToolFromStruct(
		"web_search",
		"Search the web for information. Use this when you need current information.",
		searchArgs{},
		func(_ context.Context, args map[string]any) (any, error) {
			q, _ := args["query"].(string)

			return fmt.Sprintf(
				"Search results for '%s': Found 5 relevant articles about this topic. "+
					"Key findings include recent developments and expert opinions.", q), nil
		},
	)
}
