package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// scriptedModel replays canned responses in order. An error value in the
// script is returned as the call's error.
type scriptedModel struct {
	mutex     sync.Mutex
	responses []any
	requests  []*ModelRequest
}

func newScriptedModel(responses ...any) *scriptedModel {
	return &scriptedModel{responses: responses}
}

func (m *scriptedModel) Generate(ctx context.Context, req *ModelRequest) (string, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.requests = append(m.requests, req)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(m.responses) == 0 {
		return "", errors.New("scripted model has no more responses")
	}
	next := m.responses[0]
	m.responses = m.responses[1:]
	switch v := next.(type) {
	case error:
		return "", v
	case string:
		return v, nil
	default:
		panic(fmt.Sprintf("unsupported scripted response %T", next))
	}
}

func (m *scriptedModel) calls() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.requests)
}

// toolThought returns a model response that requests a tool.
func toolThought(reasoning, tool, input string) string {
	return fmt.Sprintf(`{"reasoning":%q,"action_needed":true,"action":%q,"action_input":%s,"is_final_answer":false}`,
		reasoning, tool, input)
}

// finalThought returns a model response that carries the final answer.
func finalThought(reasoning, answer string) string {
	return fmt.Sprintf(`{"reasoning":%q,"action_needed":false,"is_final_answer":true,"final_answer":%q}`,
		reasoning, answer)
}

// continueThought returns a model response that neither acts nor answers.
func continueThought(reasoning string) string {
	return fmt.Sprintf(`{"reasoning":%q,"action_needed":false,"is_final_answer":false}`, reasoning)
}

// echoTool returns its "query" argument upper-cased.
func echoTool() *FuncTool {
	return NewFuncTool("echo", "Echo the query back in upper case",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"query": map[string]any{"type": "string"}},
			"required":   []any{"query"},
		},
		func(ctx context.Context, args map[string]any) (string, error) {
			query, _ := args["query"].(string)
			return strings.ToUpper(query), nil
		}).WithStringInput("query")
}

func newTestRegistry(t *testing.T, tools ...Tool) *ToolRegistry {
	t.Helper()
	registry, err := NewToolRegistry(tools...)
	require.NoError(t, err)
	return registry
}

func newTestAgent(t *testing.T, model Model, tools ...Tool) *Agent {
	t.Helper()
	agent, err := NewAgent(AgentOptions{
		Model: model,
		Tools: newTestRegistry(t, tools...),
	})
	require.NoError(t, err)
	return agent
}

func newTestManager(t *testing.T, maxCheckpoints int) *CheckpointManager {
	t.Helper()
	manager, err := NewCheckpointManager(CheckpointManagerOptions{
		Store:          NewMemoryStore(),
		MaxCheckpoints: maxCheckpoints,
	})
	require.NoError(t, err)
	return manager
}
