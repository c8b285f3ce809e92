package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type greetParams struct {
	Name  string `json:"name"`
	Times int    `json:"times"`
}

type greetTool struct{}

func (greetTool) Name() string                { return "greet" }
func (greetTool) Description() string         { return "Greets someone" }
func (greetTool) InputSchema() map[string]any { return nil }

func (greetTool) Execute(ctx context.Context, params greetParams) (string, error) {
	return fmt.Sprintf("hello %s x%d", params.Name, params.Times), nil
}

func (greetTool) CoerceStringInput(input string) (map[string]any, bool) {
	return map[string]any{"name": input, "times": 1}, true
}

func TestTypedTool(t *testing.T) {
	tool := NewTypedTool[greetParams](greetTool{})
	require.Equal(t, "greet", tool.Name())

	out, err := tool.Invoke(context.Background(), map[string]any{"name": "ada", "times": 2})
	require.NoError(t, err)
	require.Equal(t, "hello ada x2", out)

	_, err = tool.Invoke(context.Background(), map[string]any{"times": "many"})
	require.True(t, IsErrorType(err, ErrorTypeToolFailed))

	registry := newTestRegistry(t, tool)
	require.Equal(t, map[string]any{"name": "bob", "times": 1}, registry.CoerceInput("greet", "bob"))
}

func TestTypedToolFunction(t *testing.T) {
	tool := TypedToolFunction("shout", "Shouts", nil,
		func(ctx context.Context, params greetParams) (string, error) {
			return params.Name + "!", nil
		})

	out, err := tool.Invoke(context.Background(), map[string]any{"name": "hey"})
	require.NoError(t, err)
	require.Equal(t, "hey!", out)

	// No coercion declared, so the registry falls back to the input field
	registry := newTestRegistry(t, tool)
	require.Equal(t, map[string]any{"input": "x"}, registry.CoerceInput("shout", "x"))
}
