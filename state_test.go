package agent

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func TestNewState(t *testing.T) {
	s := NewState("2+2?", 3)
	require.Equal(t, StepStart, s.CurrentStep)
	require.Equal(t, StepReason, s.NextStep)
	require.Equal(t, 0, s.IterationCount)
	require.Equal(t, 3, s.MaxIterations)
	require.Len(t, s.Messages, 1)
	require.Equal(t, Message{Role: RoleUser, Content: "2+2?"}, s.Messages[0])
	require.Empty(t, s.FinalAnswer)
	require.Empty(t, s.Error)
	require.Equal(t, "2+2?", s.Metadata.Query)
	require.False(t, s.Metadata.StartTime.IsZero())
	require.NotNil(t, s.Context)
	require.True(t, s.ShouldContinue())
}

func TestShouldContinue(t *testing.T) {
	t.Run("error stops", func(t *testing.T) {
		s := NewState("q", 3)
		s.Error = "boom"
		require.False(t, s.ShouldContinue())
	})

	t.Run("final answer stops", func(t *testing.T) {
		s := NewState("q", 3)
		s.FinalAnswer = "done"
		require.False(t, s.ShouldContinue())
	})

	t.Run("iteration cap stops at the bound", func(t *testing.T) {
		s := NewState("q", 3)
		s.IterationCount = 2
		require.True(t, s.ShouldContinue())
		s.IterationCount = 3
		require.False(t, s.ShouldContinue())
	})

	t.Run("zero budget never continues", func(t *testing.T) {
		require.False(t, NewState("q", 0).ShouldContinue())
	})
}

func TestAddToolCall(t *testing.T) {
	s := NewState("q", 3)
	args := map[string]any{"expression": "1+1"}
	s.AddToolCall("calculator", args, "2", nil)
	s.AddToolCall("calculator", args, "", errors.New("bad input"))

	require.Len(t, s.ToolCalls, 2)
	require.Equal(t, "2", s.ToolCalls[0].Result)
	require.Empty(t, s.ToolCalls[0].Error)
	require.Empty(t, s.ToolCalls[1].Result)
	require.Equal(t, "bad input", s.ToolCalls[1].Error)

	// Arguments are copied on record
	args["expression"] = "changed"
	require.Equal(t, "1+1", s.ToolCalls[0].Arguments["expression"])
}

func TestSetObservation(t *testing.T) {
	s := NewState("q", 3)
	require.False(t, s.SetObservation("nothing to attach to"))

	s.AddReasoningStep("first", "", "")
	s.AddReasoningStep("second", "echo", "")
	require.True(t, s.SetObservation("seen"))
	require.Empty(t, s.ReasoningSteps[0].Observation)
	require.Equal(t, "seen", s.ReasoningSteps[1].Observation)
}

func TestSetFinalAnswerIsWriteOnce(t *testing.T) {
	s := NewState("q", 3)
	require.False(t, s.SetFinalAnswer(""))
	require.True(t, s.SetFinalAnswer("first"))
	require.False(t, s.SetFinalAnswer("second"))
	require.Equal(t, "first", s.FinalAnswer)
}

func TestFormatReasoningHistory(t *testing.T) {
	s := NewState("q", 3)
	require.Equal(t, "(no reasoning steps yet)", s.FormatReasoningHistory())

	s.AddReasoningStep("need calc", "calculator", "")
	s.SetObservation("Result: 2 + 2 = 4")
	s.AddReasoningStep("done", "", "")

	expected := "Step 1:\n" +
		"  Thought: need calc\n" +
		"  Action: calculator\n" +
		"  Observation: Result: 2 + 2 = 4\n" +
		"Step 2:\n" +
		"  Thought: done"
	require.Equal(t, expected, s.FormatReasoningHistory())
	require.Equal(t, expected, s.FormatReasoningHistory())
}

func TestSummary(t *testing.T) {
	t.Run("sentinel when no answer", func(t *testing.T) {
		summary := NewState("q", 3).Summary()
		require.Equal(t, NoAnswer, summary.Answer)
		require.False(t, summary.Failed())
	})

	t.Run("counts and error", func(t *testing.T) {
		s := NewState("q", 3)
		s.AddReasoningStep("a", "echo", "")
		s.AddToolCall("echo", nil, "A", nil)
		s.IterationCount = 1
		s.Error = "tool execution error: boom"
		s.FinalAnswer = Apology(s.Error)
		s.Context["docs"] = []any{"x"}

		summary := s.Summary()
		require.Equal(t, 1, summary.ReasoningSteps)
		require.Equal(t, 1, summary.ToolCalls)
		require.Equal(t, 1, summary.Iterations)
		require.True(t, summary.Failed())
		require.Contains(t, summary.Answer, "boom")
		require.Equal(t, []any{"x"}, summary.Context["docs"])
	})
}

func TestCloneIsDeep(t *testing.T) {
	s := NewState("q", 3)
	s.Context["nested"] = map[string]any{"list": []any{1, 2}}
	s.AddReasoningStep("think", "echo", "")
	s.AddToolCall("echo", map[string]any{"query": "a"}, "A", nil)
	s.Metadata.PendingAction = &ToolInvocation{Tool: "echo", Input: map[string]any{"query": "b"}}

	c := s.Clone()
	require.Equal(t, s, c)

	c.Context["nested"].(map[string]any)["list"].([]any)[0] = 99
	c.ReasoningSteps[0].Observation = "changed"
	c.ToolCalls[0].Arguments["query"] = "changed"
	c.Metadata.PendingAction.Input["query"] = "changed"
	c.Messages = append(c.Messages, Message{Role: RoleAssistant, Content: "extra"})

	require.Equal(t, 1, s.Context["nested"].(map[string]any)["list"].([]any)[0])
	require.Empty(t, s.ReasoningSteps[0].Observation)
	require.Equal(t, "a", s.ToolCalls[0].Arguments["query"])
	require.Equal(t, "b", s.Metadata.PendingAction.Input["query"])
	require.Len(t, s.Messages, 1)
}

func TestReasoningStepNumberingProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("step_number equals index plus one", prop.ForAll(
		func(thoughts []string) bool {
			s := NewState("q", 10)
			for _, thought := range thoughts {
				s.AddReasoningStep(thought, "", "")
			}
			for i, step := range s.ReasoningSteps {
				if step.StepNumber != i+1 {
					return false
				}
			}
			return len(s.ReasoningSteps) == len(thoughts)
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
