package agent

import (
	"context"
	"time"
)

// Callbacks defines the callback interface for agent run events
type Callbacks interface {
	// Run-level callbacks
	BeforeRun(ctx context.Context, event *RunEvent)
	AfterRun(ctx context.Context, event *RunEvent)

	// Step-level callbacks
	BeforeStep(ctx context.Context, event *StepEvent)
	AfterStep(ctx context.Context, event *StepEvent)

	// Tool-level callbacks
	BeforeToolCall(ctx context.Context, event *ToolCallEvent)
	AfterToolCall(ctx context.Context, event *ToolCallEvent)
}

// RunEvent provides context for run-level events
type RunEvent struct {
	RunID       string
	ThreadID    string
	Query       string
	ResumedFrom string
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	Summary     *Summary
	Error       error
}

// StepEvent provides context for step-level events
type StepEvent struct {
	RunID     string
	ThreadID  string
	Step      StepName
	Iteration int
	NextStep  StepName
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Error     string
}

// ToolCallEvent provides context for tool invocations
type ToolCallEvent struct {
	RunID     string
	ThreadID  string
	ToolName  string
	Arguments map[string]any
	Result    string
	Iteration int
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Error     error
}

// BaseCallbacks provides a default implementation that does nothing
type BaseCallbacks struct{}

func (n *BaseCallbacks) BeforeRun(ctx context.Context, event *RunEvent) {
	// noop
}

func (n *BaseCallbacks) AfterRun(ctx context.Context, event *RunEvent) {
	// noop
}

func (n *BaseCallbacks) BeforeStep(ctx context.Context, event *StepEvent) {
	// noop
}

func (n *BaseCallbacks) AfterStep(ctx context.Context, event *StepEvent) {
	// noop
}

func (n *BaseCallbacks) BeforeToolCall(ctx context.Context, event *ToolCallEvent) {
	// noop
}

func (n *BaseCallbacks) AfterToolCall(ctx context.Context, event *ToolCallEvent) {
	// noop
}

// NewBaseCallbacks creates a new no-op callbacks implementation.
// Embed this in your own callbacks to get a default implementation that does nothing.
func NewBaseCallbacks() Callbacks {
	return &BaseCallbacks{}
}

// CallbackChain allows chaining multiple callback implementations
type CallbackChain struct {
	callbacks []Callbacks
}

// NewCallbackChain creates a new callback chain
func NewCallbackChain(callbacks ...Callbacks) *CallbackChain {
	return &CallbackChain{callbacks: callbacks}
}

// Add adds a callback to the chain
func (c *CallbackChain) Add(callback Callbacks) {
	c.callbacks = append(c.callbacks, callback)
}

func (c *CallbackChain) BeforeRun(ctx context.Context, event *RunEvent) {
	for _, callback := range c.callbacks {
		callback.BeforeRun(ctx, event)
	}
}

func (c *CallbackChain) AfterRun(ctx context.Context, event *RunEvent) {
	for _, callback := range c.callbacks {
		callback.AfterRun(ctx, event)
	}
}

func (c *CallbackChain) BeforeStep(ctx context.Context, event *StepEvent) {
	for _, callback := range c.callbacks {
		callback.BeforeStep(ctx, event)
	}
}

func (c *CallbackChain) AfterStep(ctx context.Context, event *StepEvent) {
	for _, callback := range c.callbacks {
		callback.AfterStep(ctx, event)
	}
}

func (c *CallbackChain) BeforeToolCall(ctx context.Context, event *ToolCallEvent) {
	for _, callback := range c.callbacks {
		callback.BeforeToolCall(ctx, event)
	}
}

func (c *CallbackChain) AfterToolCall(ctx context.Context, event *ToolCallEvent) {
	for _, callback := range c.callbacks {
		callback.AfterToolCall(ctx, event)
	}
}
