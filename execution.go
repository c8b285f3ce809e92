package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.jetify.com/typeid"
)

// DefaultMaxIterations is the reasoning budget of a run when none is given.
const DefaultMaxIterations = 10

// NewRunID returns a new id for a single run
func NewRunID() string {
	id, err := typeid.WithPrefix("run")
	if err != nil {
		panic(err)
	}
	return id.String()
}

// NewThreadID returns a new id for a conversation thread
func NewThreadID() string {
	id, err := typeid.WithPrefix("thread")
	if err != nil {
		panic(err)
	}
	return id.String()
}

// DriverOptions configures a new Driver
type DriverOptions struct {
	Model        Model
	Tools        *ToolRegistry
	Checkpointer Checkpointer
	Logger       *slog.Logger
	Formatter    StepFormatter
	Callbacks    Callbacks
	ToolLogger   ToolLogger

	// MaxIterations is the default reasoning budget of a run
	MaxIterations int

	// CheckpointEvery is the number of iterations between periodic
	// checkpoints. Zero uses the default and a negative value disables them.
	CheckpointEvery int

	// MaxSteps bounds the number of graph steps of a run. Zero derives the
	// bound from the run's iteration budget.
	MaxSteps int

	ModelTimeout time.Duration
	ToolTimeout  time.Duration
	Instructions string
}

// RunOptions selects what a run does. A run either starts from Query or
// resumes from CheckpointID.
type RunOptions struct {
	Query         string
	MaxIterations int
	ThreadID      string
	CheckpointID  string
}

// Driver runs the agent graph to completion, checkpointing along the way.
type Driver struct {
	agent           *Agent
	graph           *Graph
	checkpointer    Checkpointer
	logger          *slog.Logger
	formatter       StepFormatter
	callbacks       Callbacks
	maxIterations   int
	checkpointEvery int
	maxSteps        int

	mutex   sync.Mutex
	threads map[string]struct{}
}

// NewDriver creates a new driver
func NewDriver(opts DriverOptions) (*Driver, error) {
	if opts.Model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if opts.MaxIterations < 0 {
		return nil, fmt.Errorf("max iterations must not be negative")
	}
	if opts.MaxIterations == 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.CheckpointEvery == 0 {
		opts.CheckpointEvery = DefaultCheckpointEvery
	}
	if opts.Logger == nil {
		opts.Logger = NewDiscardLogger()
	}
	if opts.Checkpointer == nil {
		opts.Checkpointer = NewNullCheckpointer()
	}
	if opts.Callbacks == nil {
		opts.Callbacks = &BaseCallbacks{}
	}

	agent, err := NewAgent(AgentOptions{
		Model:        opts.Model,
		Tools:        opts.Tools,
		Logger:       opts.Logger,
		Callbacks:    opts.Callbacks,
		ToolLogger:   opts.ToolLogger,
		ModelTimeout: opts.ModelTimeout,
		ToolTimeout:  opts.ToolTimeout,
		Instructions: opts.Instructions,
	})
	if err != nil {
		return nil, err
	}

	d := &Driver{
		agent:           agent,
		checkpointer:    opts.Checkpointer,
		logger:          opts.Logger,
		formatter:       opts.Formatter,
		callbacks:       opts.Callbacks,
		maxIterations:   opts.MaxIterations,
		checkpointEvery: opts.CheckpointEvery,
		maxSteps:        opts.MaxSteps,
		threads:         map[string]struct{}{},
	}
	d.graph, err = NewGraph(StepStart,
		&Node{Name: StepStart, Run: reactNode(agent.Start), Next: StepReason},
		&Node{Name: StepReason, Run: reactNode(agent.Reason), Route: RouteAfterReason},
		&Node{Name: StepAct, Run: reactNode(agent.Act), Next: StepObserve},
		&Node{Name: StepObserve, Run: reactNode(agent.Observe), Route: RouteAfterObserve(opts.CheckpointEvery)},
		&Node{Name: StepAnswer, Run: reactNode(agent.Answer), Next: StepCheckpoint},
		&Node{Name: StepCheckpoint, Run: d.checkpoint, Route: RouteAfterCheckpoint},
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Agent returns the agent whose steps the driver runs.
func (d *Driver) Agent() *Agent {
	return d.agent
}

// Checkpointer returns the checkpointer used by the driver.
func (d *Driver) Checkpointer() Checkpointer {
	return d.checkpointer
}

// Run executes a run to completion and returns its summary. Failures inside
// the run are reported in the summary. An error is returned only when the
// run cannot start: a missing query, an unknown checkpoint or a busy thread.
func (d *Driver) Run(ctx context.Context, opts RunOptions) (*Summary, error) {
	threadID := opts.ThreadID
	if threadID == "" {
		threadID = NewThreadID()
	}
	if !d.acquireThread(threadID) {
		return nil, fmt.Errorf("%w: %s", ErrThreadBusy, threadID)
	}
	defer d.releaseThread(threadID)

	runID := NewRunID()
	logger := d.logger.With("run_id", runID, "thread_id", threadID)

	state, err := d.initialState(ctx, opts)
	if err != nil {
		return nil, err
	}
	state.Metadata.RunID = runID
	state.Metadata.ThreadID = threadID
	if state.Done() {
		logger.Info("checkpoint already holds a finished run", "checkpoint_id", opts.CheckpointID)
		return state.Summary(), nil
	}

	ctx = WithLogger(ctx, logger)
	ctx = WithThreadID(ctx, threadID)
	ctx = WithRunID(ctx, runID)

	event := &RunEvent{
		RunID:       runID,
		ThreadID:    threadID,
		Query:       state.Metadata.Query,
		ResumedFrom: state.Metadata.ResumedFrom,
		StartTime:   time.Now(),
	}
	d.callbacks.BeforeRun(ctx, event)
	logger.Info("run started",
		"query", state.Metadata.Query,
		"max_iterations", state.MaxIterations,
		"resumed_from", state.Metadata.ResumedFrom)

	summary := d.execute(ctx, state, logger)

	event.EndTime = time.Now()
	event.Duration = event.EndTime.Sub(event.StartTime)
	event.Summary = summary
	if summary.Error != "" {
		event.Error = errors.New(summary.Error)
	}
	d.callbacks.AfterRun(ctx, event)
	logger.Info("run finished",
		"iterations", summary.Iterations,
		"tool_calls", summary.ToolCalls,
		"duration", event.Duration,
		"error", summary.Error)
	return summary, nil
}

func (d *Driver) initialState(ctx context.Context, opts RunOptions) (*State, error) {
	if opts.CheckpointID == "" {
		if opts.Query == "" {
			return nil, fmt.Errorf("query is required")
		}
		maxIterations := opts.MaxIterations
		if maxIterations <= 0 {
			maxIterations = d.maxIterations
		}
		return NewState(opts.Query, maxIterations), nil
	}

	record, err := d.checkpointer.Load(ctx, opts.CheckpointID)
	if err != nil {
		return nil, fmt.Errorf("failed to resume from checkpoint: %w", err)
	}
	if record.State == nil {
		return nil, fmt.Errorf("checkpoint %s has no state", opts.CheckpointID)
	}
	state := record.State.Clone()
	state.Metadata.ResumedFrom = record.ID
	return state, nil
}

// execute drives the graph, converting driver failures and panics into a
// degraded summary.
func (d *Driver) execute(ctx context.Context, state *State, logger *slog.Logger) (summary *Summary) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("run panicked", "panic", r)
			summary = degradedSummary(state, fmt.Errorf("agent run panicked: %v", r))
		}
	}()
	if err := d.drive(ctx, state, logger); err != nil {
		logger.Error("run failed", "error", err)
		return degradedSummary(state, err)
	}
	return state.Summary()
}

func (d *Driver) drive(ctx context.Context, state *State, logger *slog.Logger) error {
	budget := d.maxSteps
	if budget <= 0 {
		// Each iteration takes at most reason, act, observe and two
		// checkpoints; the rest covers start, answer and the final
		// checkpoint.
		budget = 5*(state.MaxIterations+1) + 4
	}

	step := d.graph.Entry()
	for steps := 0; step != StepEnd; steps++ {
		if steps >= budget {
			return fmt.Errorf("run did not terminate within %d steps", budget)
		}
		if err := ctx.Err(); err != nil {
			d.cancel(ctx, state, err, logger)
			return nil
		}
		node, ok := d.graph.Node(step)
		if !ok {
			return fmt.Errorf("unknown step %q", step)
		}
		if step.IsReAct() {
			state.CurrentStep = step
		}
		if err := d.runStep(ctx, node, state); err != nil {
			return err
		}
		next, err := d.graph.Next(step, state)
		if err != nil {
			return err
		}
		step = next
	}
	return nil
}

func (d *Driver) runStep(ctx context.Context, node *Node, state *State) error {
	runID, _ := GetRunIDFromContext(ctx)
	threadID, _ := GetThreadIDFromContext(ctx)
	event := &StepEvent{
		RunID:     runID,
		ThreadID:  threadID,
		Step:      node.Name,
		Iteration: state.IterationCount,
		StartTime: time.Now(),
	}
	d.callbacks.BeforeStep(ctx, event)
	if d.formatter != nil {
		d.formatter.PrintStepStart(node.Name, state.IterationCount)
	}

	before := markState(state)
	if err := node.Run(ctx, state); err != nil {
		return fmt.Errorf("step %s failed: %w", node.Name, err)
	}

	event.EndTime = time.Now()
	event.Duration = event.EndTime.Sub(event.StartTime)
	event.Iteration = state.IterationCount
	event.NextStep = state.NextStep
	event.Error = state.Error
	d.callbacks.AfterStep(ctx, event)

	if d.formatter != nil {
		if output, ok := stepOutput(node.Name, state, before); ok {
			d.formatter.PrintStepOutput(node.Name, output)
		}
		if state.Error != "" && state.Error != before.err {
			d.formatter.PrintStepError(node.Name, errors.New(state.Error))
		}
	}
	return nil
}

// checkpoint saves a snapshot of the state. Failures are logged and never
// affect the run.
func (d *Driver) checkpoint(ctx context.Context, state *State) error {
	logger := LoggerFromContext(ctx)
	metadata := map[string]any{
		"run_id":    state.Metadata.RunID,
		"thread_id": state.Metadata.ThreadID,
	}
	if state.Metadata.ResumedFrom != "" {
		metadata["resumed_from"] = state.Metadata.ResumedFrom
	}
	state.Metadata.LastCheckpointIteration = state.IterationCount
	id, err := d.checkpointer.Save(ctx, state, string(state.CurrentStep), state.IterationCount, metadata)
	if err != nil {
		logger.Warn("failed to save checkpoint", "step", state.CurrentStep, "error", err)
		return nil
	}
	if id != "" {
		state.Metadata.LastCheckpointID = id
		logger.Debug("checkpoint saved", "checkpoint_id", id, "iteration", state.IterationCount)
	}
	return nil
}

// cancel moves a canceled run to an error-tagged terminal state and saves a
// final checkpoint despite the cancellation.
func (d *Driver) cancel(ctx context.Context, state *State, cause error, logger *slog.Logger) {
	if !state.Done() {
		if state.Error == "" {
			state.Error = "run canceled: " + cause.Error()
		}
		state.SetFinalAnswer(Apology(state.Error))
		state.Metadata.PendingAction = nil
		state.NextStep = ""
		state.Metadata.EndTime = time.Now()
	}
	logger.Warn("run canceled", "step", state.CurrentStep, "error", cause)
	d.checkpoint(context.WithoutCancel(ctx), state)
}

func (d *Driver) acquireThread(threadID string) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if _, busy := d.threads[threadID]; busy {
		return false
	}
	d.threads[threadID] = struct{}{}
	return true
}

func (d *Driver) releaseThread(threadID string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	delete(d.threads, threadID)
}

// degradedSummary reports a run that the driver could not finish.
func degradedSummary(state *State, err error) *Summary {
	summary := state.Summary()
	summary.Answer = fmt.Sprintf("Error: %s", err.Error())
	summary.Error = err.Error()
	return summary
}

func reactNode(step func(ctx context.Context, s *State)) NodeFunc {
	return func(ctx context.Context, s *State) error {
		step(ctx, s)
		return nil
	}
}
