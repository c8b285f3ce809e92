package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/deepnoodle-ai/agent"
	"github.com/fatih/color"
)

var stepColors = map[agent.StepName]*color.Color{
	agent.StepStart:      color.New(color.FgBlue),
	agent.StepReason:     color.New(color.FgCyan),
	agent.StepAct:        color.New(color.FgYellow),
	agent.StepObserve:    color.New(color.FgMagenta),
	agent.StepAnswer:     color.New(color.FgGreen, color.Bold),
	agent.StepCheckpoint: color.New(color.FgWhite),
}

// consoleFormatter prints each step of a run in color.
type consoleFormatter struct {
	out io.Writer
}

func newConsoleFormatter(out io.Writer) *consoleFormatter {
	return &consoleFormatter{out: out}
}

func stepColor(step agent.StepName) *color.Color {
	if c, ok := stepColors[step]; ok {
		return c
	}
	return color.New(color.Reset)
}

func (f *consoleFormatter) PrintStepStart(step agent.StepName, iteration int) {
	stepColor(step).Fprintf(f.out, "[%s] iteration %d\n", strings.ToUpper(string(step)), iteration)
}

func (f *consoleFormatter) PrintStepOutput(step agent.StepName, content any) {
	switch v := content.(type) {
	case agent.ReasoningStep:
		f.printReasoning(&v)
	case *agent.ReasoningStep:
		f.printReasoning(v)
	case agent.ToolCall:
		f.printToolCall(&v)
	case *agent.ToolCall:
		f.printToolCall(v)
	case string:
		if step == agent.StepCheckpoint {
			fmt.Fprintf(f.out, "  saved %s\n", v)
		} else {
			fmt.Fprintf(f.out, "  %s\n", v)
		}
	default:
		fmt.Fprintf(f.out, "  %v\n", v)
	}
}

func (f *consoleFormatter) printReasoning(step *agent.ReasoningStep) {
	fmt.Fprintf(f.out, "  thought: %s\n", step.Thought)
	if step.Action != "" {
		fmt.Fprintf(f.out, "  action:  %s\n", step.Action)
	}
}

func (f *consoleFormatter) printToolCall(call *agent.ToolCall) {
	args, err := json.Marshal(call.Arguments)
	if err != nil {
		args = []byte(fmt.Sprintf("%v", call.Arguments))
	}
	fmt.Fprintf(f.out, "  %s %s\n", call.ToolName, args)
	if call.Error != "" {
		color.New(color.FgRed).Fprintf(f.out, "  error: %s\n", call.Error)
		return
	}
	fmt.Fprintf(f.out, "  result: %s\n", call.Result)
}

func (f *consoleFormatter) PrintStepError(step agent.StepName, err error) {
	color.New(color.FgRed).Fprintf(f.out, "[%s] error: %v\n", strings.ToUpper(string(step)), err)
}

// summaryCallbacks prints the run header and footer.
type summaryCallbacks struct {
	agent.BaseCallbacks
	out io.Writer
}

func newSummaryCallbacks(out io.Writer) *summaryCallbacks {
	return &summaryCallbacks{out: out}
}

func (c *summaryCallbacks) BeforeRun(ctx context.Context, event *agent.RunEvent) {
	if event.ResumedFrom != "" {
		color.New(color.FgBlue).Fprintf(c.out, "Resuming run %s from %s\n", event.RunID, event.ResumedFrom)
		return
	}
	color.New(color.FgBlue).Fprintf(c.out, "Starting run %s (thread %s)\n", event.RunID, event.ThreadID)
}

func (c *summaryCallbacks) AfterRun(ctx context.Context, event *agent.RunEvent) {
	fmt.Fprintf(c.out, "Run completed in %v\n", event.Duration.Round(time.Millisecond))
}

// printSummary writes the outcome of a run, as JSON when asJSON is set.
func printSummary(out io.Writer, summary *agent.Summary, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	fmt.Fprintln(out)
	color.New(color.FgMagenta).Fprintln(out, "Answer:")
	fmt.Fprintln(out, summary.Answer)
	fmt.Fprintf(out, "\nIterations: %d  Reasoning steps: %d  Tool calls: %d\n",
		summary.Iterations, summary.ReasoningSteps, summary.ToolCalls)
	if summary.Failed() {
		color.New(color.FgRed).Fprintf(out, "Error: %s\n", summary.Error)
	}
	return nil
}
