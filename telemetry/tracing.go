// Package telemetry exports agent runs as OpenTelemetry traces.
package telemetry

import (
	"context"
	"fmt"
	"sync"

	"github.com/deepnoodle-ai/agent"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies spans produced by this package
const TracerName = "github.com/deepnoodle-ai/agent"

var _ agent.Callbacks = (*TracingCallbacks)(nil)

// TracingCallbacks records a span per run with child spans per step and per
// tool call. Callbacks do not return a context, so open spans are tracked by
// run id until their matching After callback.
type TracingCallbacks struct {
	tracer trace.Tracer
	mutex  sync.Mutex
	spans  map[string]trace.Span
}

// NewTracingCallbacks uses the tracer provider tp, or the global provider if
// tp is nil.
func NewTracingCallbacks(tp trace.TracerProvider) *TracingCallbacks {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &TracingCallbacks{
		tracer: tp.Tracer(TracerName),
		spans:  map[string]trace.Span{},
	}
}

func runKey(runID string) string {
	return "run/" + runID
}

func stepKey(runID string, step agent.StepName) string {
	return fmt.Sprintf("step/%s/%s", runID, step)
}

func toolKey(runID, tool string, iteration int) string {
	return fmt.Sprintf("tool/%s/%s/%d", runID, tool, iteration)
}

func (c *TracingCallbacks) start(ctx context.Context, parentKey, key, name string, attrs ...attribute.KeyValue) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if parent, ok := c.spans[parentKey]; ok {
		ctx = trace.ContextWithSpan(ctx, parent)
	}
	_, span := c.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	c.spans[key] = span
}

func (c *TracingCallbacks) end(key string, errText string, attrs ...attribute.KeyValue) {
	c.mutex.Lock()
	span, ok := c.spans[key]
	delete(c.spans, key)
	c.mutex.Unlock()
	if !ok {
		return
	}
	span.SetAttributes(attrs...)
	if errText != "" {
		span.SetStatus(codes.Error, errText)
	}
	span.End()
}

func (c *TracingCallbacks) BeforeRun(ctx context.Context, event *agent.RunEvent) {
	c.start(ctx, "", runKey(event.RunID), "agent.run",
		attribute.String("agent.run_id", event.RunID),
		attribute.String("agent.thread_id", event.ThreadID),
		attribute.String("agent.query", event.Query),
		attribute.String("agent.resumed_from", event.ResumedFrom))
}

func (c *TracingCallbacks) AfterRun(ctx context.Context, event *agent.RunEvent) {
	var attrs []attribute.KeyValue
	if event.Summary != nil {
		attrs = append(attrs,
			attribute.Int("agent.iterations", event.Summary.Iterations),
			attribute.Int("agent.tool_calls", event.Summary.ToolCalls))
	}
	var errText string
	if event.Error != nil {
		errText = event.Error.Error()
	}
	c.end(runKey(event.RunID), errText, attrs...)
}

func (c *TracingCallbacks) BeforeStep(ctx context.Context, event *agent.StepEvent) {
	c.start(ctx, runKey(event.RunID), stepKey(event.RunID, event.Step), "agent.step."+string(event.Step),
		attribute.String("agent.step", string(event.Step)),
		attribute.Int("agent.iteration", event.Iteration))
}

func (c *TracingCallbacks) AfterStep(ctx context.Context, event *agent.StepEvent) {
	c.end(stepKey(event.RunID, event.Step), event.Error,
		attribute.String("agent.next_step", string(event.NextStep)))
}

func (c *TracingCallbacks) BeforeToolCall(ctx context.Context, event *agent.ToolCallEvent) {
	c.start(ctx, stepKey(event.RunID, agent.StepAct), toolKey(event.RunID, event.ToolName, event.Iteration),
		"agent.tool."+event.ToolName,
		attribute.String("agent.tool", event.ToolName),
		attribute.Int("agent.iteration", event.Iteration))
}

func (c *TracingCallbacks) AfterToolCall(ctx context.Context, event *agent.ToolCallEvent) {
	var errText string
	if event.Error != nil {
		errText = event.Error.Error()
	}
	c.end(toolKey(event.RunID, event.ToolName, event.Iteration), errText,
		attribute.Int("agent.result_length", len(event.Result)))
}

// Open returns the number of spans started but not yet ended
func (c *TracingCallbacks) Open() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.spans)
}
