package script

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/compiler"
	"github.com/risor-io/risor/modules/all"
	"github.com/risor-io/risor/object"
	"github.com/risor-io/risor/parser"
)

// DefaultRisorGlobals returns the risor builtins, including the math module.
func DefaultRisorGlobals() map[string]any {
	globals := map[string]any{}
	for name, value := range all.Builtins() {
		globals[name] = value
	}
	return globals
}

// RisorEngine compiles risor scripts.
type RisorEngine struct {
	globals map[string]any
}

func NewRisorEngine(globals map[string]any) *RisorEngine {
	return &RisorEngine{globals: globals}
}

func (e *RisorEngine) Compile(ctx context.Context, code string) (Script, error) {
	ast, err := parser.Parse(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("invalid expression: %w", err)
	}
	names := make([]string, 0, len(e.globals))
	for name := range e.globals {
		names = append(names, name)
	}
	sort.Strings(names)

	compiled, err := compiler.Compile(ast, compiler.WithGlobalNames(names))
	if err != nil {
		return nil, fmt.Errorf("invalid expression: %w", err)
	}
	return &RisorScript{engine: e, code: compiled}, nil
}

// RisorScript is compiled risor bytecode
type RisorScript struct {
	engine *RisorEngine
	code   *compiler.Code
}

// Evaluate runs the script. Evaluation globals may only override names that
// were known when the script was compiled.
func (s *RisorScript) Evaluate(ctx context.Context, globals map[string]any) (Value, error) {
	combined := make(map[string]any, len(s.engine.globals))
	for name, value := range s.engine.globals {
		combined[name] = value
	}
	for name, value := range globals {
		combined[name] = value
	}
	obj, err := risor.EvalCode(ctx, s.code, risor.WithGlobals(combined))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate risor script: %w", err)
	}
	return &RisorValue{obj: obj}, nil
}

// RisorValue wraps a risor object
type RisorValue struct {
	obj object.Object
}

func (v *RisorValue) Value() any {
	return risorToGo(v.obj)
}

func (v *RisorValue) Items() ([]any, error) {
	return goItems(risorToGo(v.obj))
}

func (v *RisorValue) IsTruthy() bool {
	switch v.obj.(type) {
	case *object.String, *object.Int, *object.Float, *object.Bool, *object.List, *object.Map:
		return goTruthy(risorToGo(v.obj))
	}
	return v.obj.IsTruthy()
}

func (v *RisorValue) String() string {
	switch o := v.obj.(type) {
	case *object.String:
		return o.Value()
	case *object.Float:
		return fmt.Sprintf("%g", o.Value())
	case *object.Time:
		return o.Value().Format(time.RFC3339)
	case *object.NilType:
		return ""
	}
	return NewGoValue(risorToGo(v.obj)).String()
}

// risorToGo unwraps a risor object into a plain Go value. Objects with no
// Go counterpart become their inspected text.
func risorToGo(obj object.Object) any {
	switch o := obj.(type) {
	case *object.NilType:
		return nil
	case *object.Bool:
		return o.Value()
	case *object.Int:
		return o.Value()
	case *object.Float:
		return o.Value()
	case *object.String:
		return o.Value()
	case *object.Time:
		return o.Value()
	case *object.List:
		var items []any
		for _, item := range o.Value() {
			items = append(items, risorToGo(item))
		}
		return items
	case *object.Set:
		var items []any
		for _, item := range o.Value() {
			items = append(items, risorToGo(item))
		}
		return items
	case *object.Map:
		m := map[string]any{}
		for key, value := range o.Value() {
			m[key] = risorToGo(value)
		}
		return m
	}
	return obj.Inspect()
}
