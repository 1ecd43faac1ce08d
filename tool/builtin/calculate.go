package builtin

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/hupe1980/agentgraph/tool"
)

type calculateArgs struct {
	Expression string `json:"expression" description:"A mathematical expression, e.g. 25 * 47"`
}

// allowedExprChars restricts the calculator to arithmetic. Identifiers are
// rejected before compilation so no expr builtin can be reached.
const allowedExprChars = "0123456789+-*/%^().eE "

// Calculate returns a tool that evaluates arithmetic expressions and reports
// "Result: <value>". Evaluation errors are returned as tool errors.
func Calculate() *tool.FunctionTool {
	return tool.NewFunctionToolFromStruct(
		"calculate",
		"Perform mathematical calculations. Input should be an arithmetic expression such as \"25 * 47\".",
		calculateArgs{},
		func(_ context.Context, args map[string]any) (any, error) {
			expression, _ := args["expression"].(string)

			v, err := Evaluate(expression)
			if err != nil {
				return nil, fmt.Errorf("calculating %q: %w", expression, err)
			}

			return "Result: " + v, nil
		},
	)
}

// Evaluate computes an arithmetic expression and renders the result.
// Integral results print without a fractional part.
func Evaluate(expression string) (string, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return "", fmt.Errorf("empty expression")
	}

	for _, r := range expression {
		if !strings.ContainsRune(allowedExprChars, r) {
			return "", fmt.Errorf("unsupported character %q", r)
		}
	}

	program, err := expr.Compile(expression)
	if err != nil {
		return "", err
	}

	out, err := expr.Run(program, nil)
	if err != nil {
		return "", err
	}

	switch v := out.(type) {
	case int:
		return strconv.Itoa(v), nil
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return "", fmt.Errorf("result is not a finite number")
		}

		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("expression did not produce a number (got %T)", out)
	}
}
