// Package script evaluates small expressions on behalf of tools such as the
// calculator. Two engines are provided: expr for arithmetic and risor for
// anything that needs a full scripting language.
package script

import (
	"context"
	"fmt"
)

// Value is the result of evaluating a script.
type Value interface {

	// Value returns the Go value for this value as an any
	Value() any

	// Items returns the items for this value as an array of any
	Items() ([]any, error)

	// String returns the string representation of this value
	String() string

	// IsTruthy returns true if this value is truthy
	IsTruthy() bool
}

// Script is a compiled script that can be evaluated many times.
type Script interface {
	Evaluate(ctx context.Context, globals map[string]any) (Value, error)
}

// Compiler compiles source code into a Script.
type Compiler interface {
	Compile(ctx context.Context, code string) (Script, error)
}

// Engine names accepted by NewCompiler
const (
	EngineExpr  = "expr"
	EngineRisor = "risor"
)

// NewCompiler returns the named engine loaded with its default globals.
func NewCompiler(engine string) (Compiler, error) {
	switch engine {
	case "", EngineExpr:
		return NewExprEngine(MathGlobals()), nil
	case EngineRisor:
		return NewRisorEngine(DefaultRisorGlobals()), nil
	default:
		return nil, fmt.Errorf("unknown script engine %q", engine)
	}
}
