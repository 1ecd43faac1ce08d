package builtin

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/hupe1980/agentgraph/tool"
)

type dataArgs struct {
	Data string `json:"data" description:"Comma or whitespace separated numbers"`
}

// Stats holds descriptive statistics for a numeric series.
type Stats struct {
	Count  int
	Mean   float64
	Median float64
	StdDev float64
	Min    float64
	Max    float64
}

// AnalyzeData returns a tool computing descriptive statistics over a list of numbers.
func AnalyzeData() *tool.FunctionTool {
	return tool.NewFunctionToolFromStruct(
		"analyze_data",
		"Analyze a dataset of numbers and return statistics (mean, median, standard deviation, count).",
		dataArgs{},
		func(_ context.Context, args map[string]any) (any, error) {
			raw, _ := args["data"].(string)

			values, err := ParseSeries(raw)
			if err != nil {
				return nil, err
			}

			s := Describe(values)

			return fmt.Sprintf("Analysis of '%s': Mean=%s, Median=%s, StdDev=%s, Count=%d, Min=%s, Max=%s",
				raw, fmtNum(s.Mean), fmtNum(s.Median), fmtNum(s.StdDev), s.Count, fmtNum(s.Min), fmtNum(s.Max)), nil
		},
	)
}

// ParseSeries splits raw on commas, semicolons and whitespace and parses every field as a number.
func ParseSeries(raw string) ([]float64, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})

	if len(fields) == 0 {
		return nil, fmt.Errorf("no numbers in %q", raw)
	}

	out := make([]float64, 0, len(fields))

	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", f)
		}

		out = append(out, v)
	}

	return out, nil
}

// Describe computes population statistics. values must not be empty.
func Describe(values []float64) Stats {
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	n := len(sorted)
	s := Stats{Count: n, Min: sorted[0], Max: sorted[n-1]}

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	s.Mean = sum / float64(n)

	if n%2 == 1 {
		s.Median = sorted[n/2]
	} else {
		s.Median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	var sq float64
	for _, v := range sorted {
		sq += (v - s.Mean) * (v - s.Mean)
	}

	s.StdDev = math.Sqrt(sq / float64(n))

	return s
}

func fmtNum(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
