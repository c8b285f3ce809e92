package script

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// MathGlobals returns the functions and constants available to calculator
// expressions.
func MathGlobals() map[string]any {
	return map[string]any{
		"pow":  math.Pow,
		"sqrt": math.Sqrt,
		"sin":  math.Sin,
		"cos":  math.Cos,
		"tan":  math.Tan,
		"log":  math.Log,
		"exp":  math.Exp,
		"pi":   math.Pi,
		"e":    math.E,
	}
}

// ExprEngine compiles expressions with github.com/expr-lang/expr.
type ExprEngine struct {
	globals map[string]any
}

// NewExprEngine returns an engine whose scripts see the given globals.
func NewExprEngine(globals map[string]any) *ExprEngine {
	return &ExprEngine{globals: globals}
}

// Compile compiles a single expression. Names not known to the engine are
// allowed at compile time and resolved from the evaluation globals.
func (e *ExprEngine) Compile(ctx context.Context, code string) (Script, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("empty expression")
	}
	program, err := expr.Compile(code, expr.Env(e.globals), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("invalid expression: %w", err)
	}
	return &ExprScript{engine: e, program: program}, nil
}

// ExprScript is a compiled expr program
type ExprScript struct {
	engine  *ExprEngine
	program *vm.Program
}

func (s *ExprScript) Evaluate(ctx context.Context, globals map[string]any) (Value, error) {
	env := make(map[string]any, len(s.engine.globals)+len(globals))
	for name, value := range s.engine.globals {
		env[name] = value
	}
	for name, value := range globals {
		env[name] = value
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := expr.Run(s.program, env)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate expression: %w", err)
	}
	return &GoValue{value: out}, nil
}

// GoValue wraps a plain Go value produced by an engine.
type GoValue struct {
	value any
}

// NewGoValue wraps v as a Value
func NewGoValue(v any) *GoValue {
	return &GoValue{value: v}
}

func (v *GoValue) Value() any {
	return v.value
}

func (v *GoValue) Items() ([]any, error) {
	return goItems(v.value)
}

func (v *GoValue) IsTruthy() bool {
	return goTruthy(v.value)
}

func (v *GoValue) String() string {
	switch val := v.value.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return fmt.Sprintf("%g", val)
	case []any:
		items := make([]string, 0, len(val))
		for _, item := range val {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return strings.Join(items, ", ")
	case map[string]any:
		keys := make([]string, 0, len(val))
		for key := range val {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		items := make([]string, 0, len(keys))
		for _, key := range keys {
			items = append(items, fmt.Sprintf("%s: %v", key, val[key]))
		}
		return strings.Join(items, ", ")
	default:
		return fmt.Sprintf("%v", val)
	}
}

func goTruthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != "" && strings.ToLower(v) != "false"
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Slice, reflect.Map:
		return rv.Len() > 0
	}
	return true
}

func goItems(value any) ([]any, error) {
	switch v := value.(type) {
	case []any:
		return v, nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		items := make([]any, 0, len(keys))
		for _, key := range keys {
			items = append(items, map[string]any{"key": key, "value": v[key]})
		}
		return items, nil
	case nil:
		return nil, nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return items, nil
	case reflect.Map, reflect.Struct, reflect.Func, reflect.Chan:
		return nil, fmt.Errorf("unsupported value type for items: %T", value)
	}
	return []any{value}, nil
}
