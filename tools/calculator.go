package tools

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/deepnoodle-ai/agent"
	"github.com/deepnoodle-ai/agent/script"
)

// DefaultPrecision is the number of decimal places calculator results are
// rounded to.
const DefaultPrecision = 4

// CalculatorOptions configures the calculator tool
type CalculatorOptions struct {
	// Engine is the script engine name. Defaults to expr.
	Engine string

	// Precision is the number of decimal places kept in float results
	Precision int
}

// CalculatorParams are the calculator arguments
type CalculatorParams struct {
	Expression string `json:"expression"`
}

// Calculator evaluates arithmetic expressions
type Calculator struct {
	compiler  script.Compiler
	precision int
}

// NewCalculator returns the calculator tool
func NewCalculator(opts CalculatorOptions) (agent.Tool, error) {
	compiler, err := script.NewCompiler(opts.Engine)
	if err != nil {
		return nil, err
	}
	if opts.Precision <= 0 {
		opts.Precision = DefaultPrecision
	}
	return agent.NewTypedTool[CalculatorParams](&Calculator{
		compiler:  compiler,
		precision: opts.Precision,
	}), nil
}

func (c *Calculator) Name() string {
	return "calculator"
}

func (c *Calculator) Description() string {
	return "Evaluate a math expression. Supports + - * / % **, parentheses and " +
		"pow, sqrt, sin, cos, tan, log, exp, pi and e."
}

func (c *Calculator) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": stringSchema("The expression to evaluate, for example 2 * (3 + 4)"),
		},
		"required": []any{"expression"},
	}
}

func (c *Calculator) CoerceStringInput(input string) (map[string]any, bool) {
	return map[string]any{"expression": input}, true
}

func (c *Calculator) Execute(ctx context.Context, params CalculatorParams) (string, error) {
	expression := strings.TrimSpace(params.Expression)
	if expression == "" {
		return "", fmt.Errorf("expression cannot be empty")
	}
	compiled, err := c.compiler.Compile(ctx, expression)
	if err != nil {
		return "", fmt.Errorf("calculation error: %w", err)
	}
	value, err := compiled.Evaluate(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("calculation error: %w", err)
	}
	return fmt.Sprintf("Result: %s = %s", expression, c.format(value)), nil
}

func (c *Calculator) format(value script.Value) string {
	switch v := value.Value().(type) {
	case float64:
		return formatFloat(v, c.precision)
	case float32:
		return formatFloat(float64(v), c.precision)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return value.String()
	}
}

// formatFloat rounds v to precision decimal places. Integral results keep a
// trailing ".0" so they read as floats.
func formatFloat(v float64, precision int) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	scale := math.Pow(10, float64(precision))
	rounded := math.Round(v*scale) / scale
	if math.IsInf(rounded, 0) || math.IsNaN(rounded) {
		rounded = v
	}
	s := strconv.FormatFloat(rounded, 'f', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
