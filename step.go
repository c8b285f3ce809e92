package agent

// StepName identifies a node of the agent graph.
type StepName string

const (
	StepStart      StepName = "start"
	StepReason     StepName = "reason"
	StepAct        StepName = "act"
	StepObserve    StepName = "observe"
	StepAnswer     StepName = "answer"
	StepCheckpoint StepName = "checkpoint"

	// StepEnd is the terminal marker of the graph. It is never executed.
	StepEnd StepName = "__end__"
)

// String returns the step name.
func (s StepName) String() string {
	return string(s)
}

// IsReAct reports whether the step is one of the reasoning loop steps, as
// opposed to graph bookkeeping such as checkpointing.
func (s StepName) IsReAct() bool {
	switch s {
	case StepStart, StepReason, StepAct, StepObserve, StepAnswer:
		return true
	}
	return false
}
