package agent

// StepFormatter interface for pretty output
type StepFormatter interface {
	PrintStepStart(step StepName, iteration int)
	PrintStepOutput(step StepName, content any)
	PrintStepError(step StepName, err error)
}

// stepMark captures the trace lengths before a step runs so its own
// contribution can be found afterwards.
type stepMark struct {
	reasoningSteps int
	toolCalls      int
	checkpointID   string
	err            string
}

func markState(s *State) stepMark {
	return stepMark{
		reasoningSteps: len(s.ReasoningSteps),
		toolCalls:      len(s.ToolCalls),
		checkpointID:   s.Metadata.LastCheckpointID,
		err:            s.Error,
	}
}

// stepOutput returns what a step added to the state, for display.
func stepOutput(step StepName, s *State, before stepMark) (any, bool) {
	switch step {
	case StepReason:
		if len(s.ReasoningSteps) > before.reasoningSteps {
			return s.ReasoningSteps[len(s.ReasoningSteps)-1], true
		}
	case StepAct:
		if len(s.ToolCalls) > before.toolCalls {
			return s.ToolCalls[len(s.ToolCalls)-1], true
		}
	case StepAnswer:
		return s.FinalAnswer, s.FinalAnswer != ""
	case StepCheckpoint:
		if s.Metadata.LastCheckpointID != before.checkpointID {
			return s.Metadata.LastCheckpointID, true
		}
	}
	return nil, false
}
