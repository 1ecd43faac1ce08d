// Package builtin contains ready-made tools for demos and tests: a simulated
// web search, an arithmetic calculator, a keyword sentiment classifier, a
// descriptive statistics helper and a simulated weather report.
//
// All tools are stateless (or guard their state) and safe for concurrent use.
package builtin

import "github.com/hupe1980/agentgraph/tool"

// All returns every builtin tool in a stable order.
func All() []tool.Tool {
	return []tool.Tool{
		WebSearch(),
		Calculate(),
		AnalyzeSentiment(),
		AnalyzeData(),
		Weather(nil),
	}
}
