package agent

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies the author of a message in the conversation history.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in the conversation history. Assistant messages that
// request a tool carry the tool call fields; tool messages carry the result
// and the id of the call they answer.
type Message struct {
	Role       Role           `json:"role"`
	Content    string         `json:"content"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	ToolArgs   map[string]any `json:"tool_args,omitempty"`
}

// ReasoningStep records one thought produced by the model.
type ReasoningStep struct {
	StepNumber  int       `json:"step_number"`
	Thought     string    `json:"thought"`
	Action      string    `json:"action,omitempty"`
	Observation string    `json:"observation,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ToolCall records a resolved tool invocation. Exactly one of Result and
// Error is populated.
type ToolCall struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	Result    string         `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ToolInvocation describes a tool call chosen by the model that has not been
// executed yet.
type ToolInvocation struct {
	Tool  string         `json:"tool"`
	Input map[string]any `json:"input"`
}

// Metadata holds the run bookkeeping fields of a State.
type Metadata struct {
	Query                   string          `json:"query"`
	ThreadID                string          `json:"thread_id,omitempty"`
	RunID                   string          `json:"run_id,omitempty"`
	StartTime               time.Time       `json:"start_time"`
	EndTime                 time.Time       `json:"end_time,omitempty"`
	PendingAction           *ToolInvocation `json:"pending_action,omitempty"`
	ResumedFrom             string          `json:"resumed_from,omitempty"`
	LastCheckpointID        string          `json:"last_checkpoint_id,omitempty"`
	LastCheckpointIteration int             `json:"last_checkpoint_iteration,omitempty"`
}

// State is the value threaded through every step of a run. It is owned by a
// single run at a time; use Clone to hand a copy to anything else.
type State struct {
	Messages       []Message       `json:"messages"`
	CurrentStep    StepName        `json:"current_step"`
	NextStep       StepName        `json:"next_step,omitempty"`
	ReasoningSteps []ReasoningStep `json:"reasoning_steps"`
	ToolCalls      []ToolCall      `json:"tool_calls"`
	Context        map[string]any  `json:"context"`
	IterationCount int             `json:"iteration_count"`
	MaxIterations  int             `json:"max_iterations"`
	FinalAnswer    string          `json:"final_answer,omitempty"`
	Error          string          `json:"error,omitempty"`
	Metadata       Metadata        `json:"metadata"`
}

// NewState returns the initial state for a query.
func NewState(query string, maxIterations int) *State {
	if maxIterations < 0 {
		maxIterations = 0
	}
	return &State{
		Messages:       []Message{{Role: RoleUser, Content: query}},
		CurrentStep:    StepStart,
		NextStep:       StepReason,
		ReasoningSteps: []ReasoningStep{},
		ToolCalls:      []ToolCall{},
		Context:        map[string]any{},
		MaxIterations:  maxIterations,
		Metadata: Metadata{
			Query:     query,
			StartTime: time.Now(),
		},
	}
}

// AddReasoningStep appends a reasoning step numbered after the existing ones.
func (s *State) AddReasoningStep(thought, action, observation string) {
	s.ReasoningSteps = append(s.ReasoningSteps, ReasoningStep{
		StepNumber:  len(s.ReasoningSteps) + 1,
		Thought:     thought,
		Action:      action,
		Observation: observation,
		Timestamp:   time.Now(),
	})
}

// SetObservation fills in the observation of the most recent reasoning step.
// It reports false when there is no step to update.
func (s *State) SetObservation(observation string) bool {
	if len(s.ReasoningSteps) == 0 {
		return false
	}
	s.ReasoningSteps[len(s.ReasoningSteps)-1].Observation = observation
	return true
}

// AddToolCall appends a resolved tool call. Callers set either result or
// toolErr, not both.
func (s *State) AddToolCall(name string, args map[string]any, result string, toolErr error) {
	call := ToolCall{
		ToolName:  name,
		Arguments: copyMap(args),
		Timestamp: time.Now(),
	}
	if toolErr != nil {
		call.Error = toolErr.Error()
	} else {
		call.Result = result
	}
	s.ToolCalls = append(s.ToolCalls, call)
}

// AddMessage appends a message to the conversation history.
func (s *State) AddMessage(msg Message) {
	s.Messages = append(s.Messages, msg)
}

// SetFinalAnswer records the answer unless one was already recorded.
func (s *State) SetFinalAnswer(answer string) bool {
	if s.FinalAnswer != "" || answer == "" {
		return false
	}
	s.FinalAnswer = answer
	return true
}

// ShouldContinue reports whether the run may take another reasoning pass.
func (s *State) ShouldContinue() bool {
	if s.Error != "" {
		return false
	}
	if s.FinalAnswer != "" {
		return false
	}
	return s.IterationCount < s.MaxIterations
}

// Done reports whether the answer step has run and nothing remains to do.
func (s *State) Done() bool {
	return s.NextStep == "" && s.FinalAnswer != ""
}

// FormatReasoningHistory renders the reasoning steps as text for model
// prompts.
func (s *State) FormatReasoningHistory() string {
	if len(s.ReasoningSteps) == 0 {
		return "(no reasoning steps yet)"
	}
	var b strings.Builder
	for _, step := range s.ReasoningSteps {
		fmt.Fprintf(&b, "Step %d:\n", step.StepNumber)
		fmt.Fprintf(&b, "  Thought: %s\n", step.Thought)
		if step.Action != "" {
			fmt.Fprintf(&b, "  Action: %s\n", step.Action)
		}
		if step.Observation != "" {
			fmt.Fprintf(&b, "  Observation: %s\n", step.Observation)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = make([]Message, len(s.Messages))
	for i, msg := range s.Messages {
		msg.ToolArgs = copyMap(msg.ToolArgs)
		c.Messages[i] = msg
	}
	c.ReasoningSteps = append([]ReasoningStep{}, s.ReasoningSteps...)
	c.ToolCalls = make([]ToolCall, len(s.ToolCalls))
	for i, call := range s.ToolCalls {
		call.Arguments = copyMap(call.Arguments)
		c.ToolCalls[i] = call
	}
	c.Context = copyMap(s.Context)
	if c.Context == nil {
		c.Context = map[string]any{}
	}
	if s.Metadata.PendingAction != nil {
		c.Metadata.PendingAction = &ToolInvocation{
			Tool:  s.Metadata.PendingAction.Tool,
			Input: copyMap(s.Metadata.PendingAction.Input),
		}
	}
	return &c
}

// copyMap returns a deep copy of a map of JSON-like values.
func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	result := make(map[string]any, len(m))
	for k, v := range m {
		result[k] = copyValue(v)
	}
	return result
}

func copyValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return copyMap(v)
	case []any:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = copyValue(item)
		}
		return items
	case []string:
		return append([]string{}, v...)
	default:
		return v
	}
}
