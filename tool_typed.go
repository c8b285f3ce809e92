package agent

import (
	"context"
)

// Confirm the interfaces are implemented correctly.
var (
	_ Tool               = (*typedToolAdapter[any])(nil)
	_ StringInputCoercer = (*typedToolAdapter[any])(nil)
	_ Tool               = (*FuncTool)(nil)
)

// TypedTool is a tool whose arguments are decoded into a struct before it
// runs. Wrap it with NewTypedTool to register it.
type TypedTool[TParams any] interface {
	Name() string
	Description() string
	InputSchema() map[string]any
	Execute(ctx context.Context, params TParams) (string, error)
}

// NewTypedTool adapts a TypedTool to the Tool interface. If the typed tool
// implements StringInputCoercer, the adapter forwards to it.
func NewTypedTool[TParams any](tool TypedTool[TParams]) Tool {
	return &typedToolAdapter[TParams]{tool: tool}
}

// TypedToolFunction returns a Tool backed by a function taking typed params.
func TypedToolFunction[TParams any](name, description string, schema map[string]any, fn func(ctx context.Context, params TParams) (string, error)) Tool {
	return NewTypedTool[TParams](&typedToolFunction[TParams]{
		name:        name,
		description: description,
		schema:      schema,
		fn:          fn,
	})
}

type typedToolAdapter[TParams any] struct {
	tool TypedTool[TParams]
}

func (a *typedToolAdapter[TParams]) Name() string {
	return a.tool.Name()
}

func (a *typedToolAdapter[TParams]) Description() string {
	return a.tool.Description()
}

func (a *typedToolAdapter[TParams]) InputSchema() map[string]any {
	return a.tool.InputSchema()
}

func (a *typedToolAdapter[TParams]) Invoke(ctx context.Context, args map[string]any) (string, error) {
	params, err := DecodeInput[TParams](args)
	if err != nil {
		return "", WrapError(ErrorTypeToolFailed, err)
	}
	return a.tool.Execute(ctx, params)
}

func (a *typedToolAdapter[TParams]) CoerceStringInput(input string) (map[string]any, bool) {
	if coercer, ok := a.tool.(StringInputCoercer); ok {
		return coercer.CoerceStringInput(input)
	}
	return nil, false
}

// Unwrap returns the wrapped typed tool.
func (a *typedToolAdapter[TParams]) Unwrap() TypedTool[TParams] {
	return a.tool
}

type typedToolFunction[TParams any] struct {
	name        string
	description string
	schema      map[string]any
	fn          func(ctx context.Context, params TParams) (string, error)
}

func (t *typedToolFunction[TParams]) Name() string {
	return t.name
}

func (t *typedToolFunction[TParams]) Description() string {
	return t.description
}

func (t *typedToolFunction[TParams]) InputSchema() map[string]any {
	return t.schema
}

func (t *typedToolFunction[TParams]) Execute(ctx context.Context, params TParams) (string, error) {
	return t.fn(ctx, params)
}
