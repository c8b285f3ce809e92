package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.jetify.com/typeid"
)

const defaultInstructions = `You are an assistant that answers questions with the ReAct pattern.
Work in cycles:
1. Reasoning: analyze the situation and decide what to do next.
2. Acting: call a tool when you need more information.
3. Observation: read the tool result before deciding again.
When you have collected enough information, give the final answer.

Guidelines:
- Use one tool at a time.
- Decide the next action only after observing the previous result.
- Base the final answer on the information you collected.`

const responseInstructions = `Respond only with a JSON object of this form:
{"reasoning": "<your analysis>", "action_needed": <true|false>, "action": "<tool name>", "action_input": {<tool arguments>}, "is_final_answer": <true|false>, "final_answer": "<answer when is_final_answer is true>"}`

const answerInstructions = `You are a helpful and knowledgeable assistant. Using the information
collected so far, write a comprehensive answer to the user's question.`

// Error prefixes recorded in State.Error by each step.
const (
	reasonErrorPrefix = "reasoning error: "
	actErrorPrefix    = "tool execution error: "
	answerErrorPrefix = "answer generation error: "
)

const fallbackAnswer = "I'm sorry, I was unable to generate an answer."

// Apology returns the user-facing answer for a run that failed.
func Apology(errText string) string {
	return fmt.Sprintf("I'm sorry, an error occurred while processing your request: %s", errText)
}

// AgentOptions configures the reasoning steps.
type AgentOptions struct {
	Model        Model
	Tools        *ToolRegistry
	Logger       *slog.Logger
	Callbacks    Callbacks
	ToolLogger   ToolLogger
	ModelTimeout time.Duration
	ToolTimeout  time.Duration

	// Instructions replaces the default system prompt preamble. The tool
	// list and response format are always appended.
	Instructions string
}

// Agent implements the start, reason, act, observe and answer steps. Each
// step mutates the state it is given and records failures in State.Error
// rather than returning them.
type Agent struct {
	model        Model
	tools        *ToolRegistry
	logger       *slog.Logger
	callbacks    Callbacks
	toolLogger   ToolLogger
	modelTimeout time.Duration
	toolTimeout  time.Duration
	instructions string
}

// NewAgent creates a new agent
func NewAgent(opts AgentOptions) (*Agent, error) {
	if opts.Model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if opts.Tools == nil {
		opts.Tools, _ = NewToolRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = NewDiscardLogger()
	}
	if opts.Callbacks == nil {
		opts.Callbacks = &BaseCallbacks{}
	}
	if opts.ToolLogger == nil {
		opts.ToolLogger = NewNullToolLogger()
	}
	if opts.Instructions == "" {
		opts.Instructions = defaultInstructions
	}
	return &Agent{
		model:        opts.Model,
		tools:        opts.Tools,
		logger:       opts.Logger,
		callbacks:    opts.Callbacks,
		toolLogger:   opts.ToolLogger,
		modelTimeout: opts.ModelTimeout,
		toolTimeout:  opts.ToolTimeout,
		instructions: opts.Instructions,
	}, nil
}

// Tools returns the tool registry used by the agent.
func (a *Agent) Tools() *ToolRegistry {
	return a.tools
}

// Start prepares the state for the reasoning loop.
func (a *Agent) Start(ctx context.Context, s *State) {
	if s.Metadata.StartTime.IsZero() {
		s.Metadata.StartTime = time.Now()
	}
	if s.Metadata.ResumedFrom != "" {
		a.logger.Info("resuming run",
			"checkpoint_id", s.Metadata.ResumedFrom,
			"iteration", s.IterationCount)
	}
	s.NextStep = StepReason
}

// Reason asks the model for the next thought and decides the next step.
func (a *Agent) Reason(ctx context.Context, s *State) {
	if s.IterationCount >= s.MaxIterations {
		s.NextStep = StepAnswer
		return
	}

	raw, err := a.generate(ctx, a.reasonRequest(s))
	if err != nil {
		a.fail(s, reasonErrorPrefix, WrapError(ErrorTypeGeneration, err))
		return
	}

	var thought Thought
	switch result := ParseThought(raw).(type) {
	case Structured:
		thought = result.Thought
	case Unstructured:
		// The answer text itself is produced by the answer step
		thought = Thought{Reasoning: result.Text, IsFinalAnswer: true}
	case Failed:
		a.fail(s, reasonErrorPrefix, WrapError(ErrorTypeParse, result.Err))
		return
	default:
		a.fail(s, reasonErrorPrefix, fmt.Errorf("unexpected parse result %T", result))
		return
	}

	wantsTool := thought.ActionNeeded && !thought.IsFinalAnswer
	if wantsTool && thought.Action == "" {
		a.fail(s, reasonErrorPrefix, NewAgentError(ErrorTypeParse, "action_needed is set but no action was named"))
		return
	}

	var action string
	if wantsTool {
		action = thought.Action
	}
	s.AddReasoningStep(thought.Reasoning, action, "")

	switch {
	case thought.IsFinalAnswer:
		s.SetFinalAnswer(thought.FinalAnswer)
		s.NextStep = StepAnswer
	case wantsTool:
		s.Metadata.PendingAction = &ToolInvocation{
			Tool:  thought.Action,
			Input: a.toolInput(thought),
		}
		s.NextStep = StepAct
	default:
		s.NextStep = StepObserve
	}
	s.IterationCount++

	a.logger.Debug("reasoned",
		"iteration", s.IterationCount,
		"next_step", s.NextStep,
		"action", action)
}

// Act runs the pending tool call and records its outcome.
func (a *Agent) Act(ctx context.Context, s *State) {
	pending := s.Metadata.PendingAction
	if pending == nil {
		a.fail(s, actErrorPrefix, ErrNoPendingAction)
		return
	}
	s.Metadata.PendingAction = nil

	args := copyMap(pending.Input)
	if args == nil {
		args = map[string]any{}
	}
	callID := fmt.Sprintf("%s_%d", pending.Tool, s.IterationCount)
	runID, _ := GetRunIDFromContext(ctx)
	threadID, _ := GetThreadIDFromContext(ctx)

	event := &ToolCallEvent{
		RunID:     runID,
		ThreadID:  threadID,
		ToolName:  pending.Tool,
		Arguments: args,
		Iteration: s.IterationCount,
		StartTime: time.Now(),
	}
	a.callbacks.BeforeToolCall(ctx, event)

	result, err := a.invoke(ctx, pending.Tool, args)

	event.EndTime = time.Now()
	event.Duration = event.EndTime.Sub(event.StartTime)
	event.Result = result
	event.Error = err
	a.callbacks.AfterToolCall(ctx, event)

	s.AddToolCall(pending.Tool, args, result, err)
	observation := result
	if err != nil {
		observation = "Error: " + err.Error()
	}
	s.SetObservation(observation)
	s.AddMessage(Message{
		Role:       RoleAssistant,
		ToolCallID: callID,
		ToolName:   pending.Tool,
		ToolArgs:   copyMap(args),
	})
	s.AddMessage(Message{
		Role:       RoleTool,
		Content:    observation,
		ToolCallID: callID,
		ToolName:   pending.Tool,
	})
	a.logToolCall(ctx, event, callID)

	if err != nil {
		a.fail(s, actErrorPrefix, err)
		return
	}
	s.NextStep = StepObserve
}

// Observe routes back to reasoning or on to the answer.
func (a *Agent) Observe(ctx context.Context, s *State) {
	switch {
	case s.IterationCount >= s.MaxIterations:
		s.NextStep = StepAnswer
	case s.Error != "":
		s.NextStep = StepAnswer
	default:
		s.NextStep = StepReason
	}
}

// Answer produces the final answer and terminates the run.
func (a *Agent) Answer(ctx context.Context, s *State) {
	defer func() {
		s.NextStep = ""
		s.Metadata.EndTime = time.Now()
	}()

	if s.FinalAnswer != "" {
		return
	}
	if s.Error != "" {
		s.FinalAnswer = Apology(s.Error)
		return
	}

	raw, err := a.generate(ctx, a.answerRequest(s))
	if err == nil && strings.TrimSpace(raw) == "" {
		err = errors.New("model returned an empty answer")
	}
	if err != nil {
		s.Error = answerErrorPrefix + WrapError(ErrorTypeGeneration, err).Error()
		s.FinalAnswer = fallbackAnswer
		a.logger.Error("answer generation failed", "error", err)
		return
	}
	s.FinalAnswer = raw
	s.AddMessage(Message{Role: RoleAssistant, Content: raw})
}

func (a *Agent) fail(s *State, prefix string, err error) {
	s.Error = prefix + err.Error()
	s.NextStep = ""
	a.logger.Warn("step failed", "step", s.CurrentStep, "error", s.Error)
}

// toolInput returns the tool arguments of a thought, coercing a bare string
// into the argument shape the tool declares.
func (a *Agent) toolInput(thought Thought) map[string]any {
	if thought.Input.IsText {
		return a.tools.CoerceInput(thought.Action, thought.Input.Text)
	}
	if thought.Input.Args == nil {
		return map[string]any{}
	}
	return thought.Input.Args
}

func (a *Agent) reasonRequest(s *State) *ModelRequest {
	system := strings.Join([]string{
		a.instructions,
		"Available tools:\n" + a.tools.Describe(),
		responseInstructions,
	}, "\n\n")
	messages := append(append([]Message{}, s.Messages...), Message{
		Role:    RoleUser,
		Content: fmt.Sprintf("Reasoning history so far:\n%s\n\nDecide the next step.", s.FormatReasoningHistory()),
	})
	return &ModelRequest{
		System:   system,
		Messages: messages,
		Format:   FormatJSON,
		Schema:   ThoughtSchema,
	}
}

func (a *Agent) answerRequest(s *State) *ModelRequest {
	messages := append(append([]Message{}, s.Messages...), Message{
		Role:    RoleUser,
		Content: fmt.Sprintf("Reasoning history:\n%s\n\nWrite the final answer based on the collected information.", s.FormatReasoningHistory()),
	})
	return &ModelRequest{
		System:   answerInstructions,
		Messages: messages,
		Format:   FormatText,
	}
}

func (a *Agent) generate(ctx context.Context, req *ModelRequest) (string, error) {
	if a.modelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.modelTimeout)
		defer cancel()
	}
	out, err := a.model.Generate(ctx, req)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", WrapError(ErrorTypeTimeout, fmt.Errorf("model call timed out after %s: %w", a.modelTimeout, err))
	}
	return out, err
}

func (a *Agent) invoke(ctx context.Context, name string, args map[string]any) (result string, err error) {
	if a.toolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.toolTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			result = ""
			err = WrapError(ErrorTypeToolFailed, fmt.Errorf("tool %s panicked: %v", name, r))
		}
	}()
	result, err = a.tools.Invoke(ctx, name, args)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", WrapError(ErrorTypeTimeout, fmt.Errorf("tool %s timed out after %s: %w", name, a.toolTimeout, err))
	}
	return result, err
}

func (a *Agent) logToolCall(ctx context.Context, event *ToolCallEvent, callID string) {
	id, err := typeid.WithPrefix("call")
	entryID := callID
	if err == nil {
		entryID = id.String()
	}
	entry := &ToolLogEntry{
		ID:         entryID,
		RunID:      event.RunID,
		ThreadID:   event.ThreadID,
		Tool:       event.ToolName,
		Iteration:  event.Iteration,
		Parameters: event.Arguments,
		Result:     event.Result,
		StartTime:  event.StartTime,
		Duration:   event.Duration.Seconds(),
	}
	if event.Error != nil {
		entry.Error = event.Error.Error()
	}
	if err := a.toolLogger.LogToolCall(ctx, entry); err != nil {
		a.logger.Warn("failed to log tool call", "tool", event.ToolName, "error", err)
	}
}
