package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentgraph/batch"
)

func buildBatchCmd(flags *rootFlags) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "batch [queries...]",
		Short: "Run many queries concurrently and print a summary",
		Long: `Run queries given as arguments or read from --file.

A .yaml/.yml file holds a list of strings or a "queries:" list. Any other
file holds one query per line; blank lines and lines starting with # are
skipped.`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			queries := args

			if file != "" {
				fromFile, err := readQueries(file)
				if err != nil {
					return err
				}

				queries = append(queries, fromFile...)
			}

			if len(queries) == 0 {
				return fmt.Errorf("no queries: pass them as arguments or with --file")
			}

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

			res := a.coordinator.RunBatch(cmd.Context(), queries)

			out := cmd.OutOrStdout()
			if flags.jsonOutput {
				if err := writeJSON(out, res); err != nil {
					return err
				}
			} else {
				printBatch(out, res)
			}

			if res.Summary.Failed > 0 {
				return fmt.Errorf("%d of %d queries failed", res.Summary.Failed, res.Summary.Total)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read queries from a YAML or text file")
	cmd.Flags().Int("concurrency", batch.DefaultMaxConcurrency, "Maximum queries in flight")

	return cmd
}

func printBatch(out io.Writer, res batch.Result) {
	fmt.Fprintf(out, "Batch: %s\n\n", res.BatchID)

	for _, it := range res.Items {
		r := it.Result
		fmt.Fprintf(out, "[%d] %s\n", it.Index+1, it.Query)
		fmt.Fprintf(out, "    status=%s iterations=%d duration=%s\n", r.Status, r.Iterations, r.Duration)

		if r.Error != nil {
			fmt.Fprintf(out, "    error: %s\n", r.Error.Error())
			continue
		}

		fmt.Fprintf(out, "    %s\n", strings.ReplaceAll(r.Answer, "\n", "\n    "))
	}

	fmt.Fprintf(out, "\n%s\n", res.Summary)
}

type queryFile struct {
	Queries []string `yaml:"queries"`
}

// readQueries loads queries from a YAML list, a YAML "queries:" document or a
// plain text file with one query per line.
func readQueries(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read queries: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var list []string
		if err := yaml.Unmarshal(data, &list); err == nil {
			return list, nil
		}

		var doc queryFile
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse queries: %w", err)
		}

		return doc.Queries, nil
	}

	var out []string

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		out = append(out, line)
	}

	return out, nil
}
