package agent

// NoAnswer is reported in a Summary when the run produced no final answer.
const NoAnswer = "No answer generated"

// Summary is the caller-facing result of a run.
type Summary struct {
	Answer         string         `json:"answer"`
	ReasoningSteps int            `json:"reasoning_steps"`
	ToolCalls      int            `json:"tool_calls"`
	Iterations     int            `json:"iterations"`
	Error          string         `json:"error,omitempty"`
	Context        map[string]any `json:"context,omitempty"`
	Metadata       Metadata       `json:"metadata"`
}

// Summary extracts the final result of the state.
func (s *State) Summary() *Summary {
	answer := s.FinalAnswer
	if answer == "" {
		answer = NoAnswer
	}
	return &Summary{
		Answer:         answer,
		ReasoningSteps: len(s.ReasoningSteps),
		ToolCalls:      len(s.ToolCalls),
		Iterations:     s.IterationCount,
		Error:          s.Error,
		Context:        copyMap(s.Context),
		Metadata:       s.Metadata,
	}
}

// Failed reports whether the run ended with an error.
func (s *Summary) Failed() bool {
	return s.Error != ""
}
