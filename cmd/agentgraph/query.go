package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentgraph/flow"
)

func buildQueryCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "query [text]",
		Short: "Run a single query through the agent",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			a, err := newApp(cmd, cfg)
			if err != nil {
				return err
			}

			defer func() {
				if cerr := a.close(cmd.Context()); cerr != nil && err == nil {
					err = cerr
				}
			}()

			res := a.orchestrator.RunQuery(cmd.Context(), strings.Join(args, " "))

			out := cmd.OutOrStdout()
			if flags.jsonOutput {
				if err := writeJSON(out, res); err != nil {
					return err
				}
			} else {
				printResult(out, res)
			}

			return res.Err()
		},
	}
}

func printResult(out io.Writer, res flow.Result) {
	fmt.Fprintf(out, "Run:        %s\n", res.RunID)
	fmt.Fprintf(out, "Status:     %s\n", res.Status)

	if res.StopReason != "" {
		fmt.Fprintf(out, "Stopped:    %s\n", res.StopReason)
	}

	fmt.Fprintf(out, "Iterations: %d\n", res.Iterations)
	fmt.Fprintf(out, "Messages:   %d\n", res.MessageCount)
	fmt.Fprintf(out, "Duration:   %s\n", res.Duration)

	if res.Error != nil {
		fmt.Fprintf(out, "Error:      %s\n", res.Error.Error())
		return
	}

	fmt.Fprintf(out, "\n%s\n", res.Answer)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
