package agent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseThought(t *testing.T) {
	t.Run("structured with map input", func(t *testing.T) {
		result := ParseThought(`{"reasoning":"look it up","action_needed":true,"action":"echo","action_input":{"query":"hi"},"is_final_answer":false}`)
		structured, ok := result.(Structured)
		require.True(t, ok, "got %T", result)
		require.Equal(t, "look it up", structured.Thought.Reasoning)
		require.True(t, structured.Thought.ActionNeeded)
		require.Equal(t, "echo", structured.Thought.Action)
		require.Equal(t, map[string]any{"query": "hi"}, structured.Thought.Input.Args)
		require.False(t, structured.Thought.Input.IsText)
	})

	t.Run("structured with string input", func(t *testing.T) {
		result := ParseThought(`{"reasoning":"need calc","action_needed":true,"action":"calculator","action_input":"2 + 2","is_final_answer":false}`)
		structured, ok := result.(Structured)
		require.True(t, ok)
		require.True(t, structured.Thought.Input.IsText)
		require.Equal(t, "2 + 2", structured.Thought.Input.Text)
	})

	t.Run("code fences and prose are tolerated", func(t *testing.T) {
		result := ParseThought("Here you go:\n```json\n{\"reasoning\":\"ok\",\"is_final_answer\":true,\"final_answer\":\"42\"}\n```")
		structured, ok := result.(Structured)
		require.True(t, ok)
		require.True(t, structured.Thought.IsFinalAnswer)
		require.Equal(t, "42", structured.Thought.FinalAnswer)
	})

	t.Run("object final answer is serialized", func(t *testing.T) {
		result := ParseThought(`{"reasoning":"ok","is_final_answer":true,"final_answer":{"total":4}}`)
		structured, ok := result.(Structured)
		require.True(t, ok)
		require.JSONEq(t, `{"total":4}`, structured.Thought.FinalAnswer)
	})

	t.Run("numeric input becomes text", func(t *testing.T) {
		result := ParseThought(`{"reasoning":"ok","action_needed":true,"action":"calculator","action_input":42}`)
		structured, ok := result.(Structured)
		require.True(t, ok)
		require.Equal(t, ActionInput{Text: "42", IsText: true}, structured.Thought.Input)
	})

	t.Run("free text announcing a final answer", func(t *testing.T) {
		result := ParseThought("I have enough information. Final Answer: 4")
		unstructured, ok := result.(Unstructured)
		require.True(t, ok, "got %T", result)
		require.Equal(t, "I have enough information. Final Answer: 4", unstructured.Text)
	})

	t.Run("japanese final answer marker", func(t *testing.T) {
		_, ok := ParseThought("最終回答: 4です").(Unstructured)
		require.True(t, ok)
	})

	t.Run("json without reasoning falls through", func(t *testing.T) {
		failed, ok := ParseThought(`{"action":"echo"}`).(Failed)
		require.True(t, ok)
		require.ErrorContains(t, failed.Err, "reasoning")
	})

	t.Run("unrecognized text fails", func(t *testing.T) {
		failed, ok := ParseThought("let me think about it").(Failed)
		require.True(t, ok)
		require.Error(t, failed.Err)
	})

	t.Run("broken json fails", func(t *testing.T) {
		_, ok := ParseThought(`{"reasoning": "unterminated`).(Failed)
		require.True(t, ok)
	})
}
