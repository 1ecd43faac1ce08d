// agentgraph runs queries through the agent/tool loop from the command line.
//
// Usage:
//
//	agentgraph query "What is 25 * 47?" [--provider=mock] [--max-iterations=5]
//	agentgraph batch --file=queries.yaml [--concurrency=4]
//	agentgraph batch "first query" "second query"
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// rootFlags are shared by every subcommand and override the config file.
type rootFlags struct {
	configPath    string
	provider      string
	model         string
	graph         string
	maxIterations int
	maxRetries    int
	timeout       string
	logLevel      string
	metricsAddr   string
	tracing       bool
	jsonOutput    bool
}

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "agentgraph",
		Short: "Run LLM agent queries with tool calling, retries and batching",
		Long: `agentgraph drives a language model through an agent/tool loop.

Each query runs through three retried stages (initialize, execute, finalize)
and produces a result with the final answer, iteration count and status.
Batches run queries concurrently and report aggregate statistics.`,
		Version:      version,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}

	f := rootCmd.PersistentFlags()
	f.StringVarP(&flags.configPath, "config", "c", "", "Path to YAML config file")
	f.StringVar(&flags.provider, "provider", "", "Model provider: openai, anthropic or mock")
	f.StringVar(&flags.model, "model", "", "Provider model name")
	f.StringVar(&flags.graph, "graph", "", "Graph: tool_loop or data_analysis")
	f.IntVar(&flags.maxIterations, "max-iterations", 0, "Agent/tool cycles per query")
	f.IntVar(&flags.maxRetries, "max-retries", 0, "Retries per stage and node")
	f.StringVar(&flags.timeout, "timeout", "", "Per-attempt timeout, e.g. 30s")
	f.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	f.BoolVar(&flags.tracing, "trace", false, "Log OpenTelemetry spans at debug level")
	f.BoolVar(&flags.jsonOutput, "json", false, "Print results as JSON")

	rootCmd.AddCommand(
		buildQueryCmd(flags),
		buildBatchCmd(flags),
	)

	return rootCmd
}
