package telemetry

import (
	"context"
	"strings"
	"testing"

	"github.com/deepnoodle-ai/agent"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracingCallbacks(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	callbacks := NewTracingCallbacks(provider)

	responses := []string{
		`{"reasoning":"look it up","action_needed":true,"action":"upper","action_input":"go","is_final_answer":false}`,
		`{"reasoning":"done","action_needed":false,"is_final_answer":true,"final_answer":"GO"}`,
	}
	model := agent.ModelFunc(func(ctx context.Context, req *agent.ModelRequest) (string, error) {
		next := responses[0]
		responses = responses[1:]
		return next, nil
	})
	upper := agent.NewFuncTool("upper", "Upper-cases text", nil,
		func(ctx context.Context, args map[string]any) (string, error) {
			text, _ := args["input"].(string)
			return strings.ToUpper(text), nil
		})
	registry, err := agent.NewToolRegistry(upper)
	require.NoError(t, err)

	driver, err := agent.NewDriver(agent.DriverOptions{
		Model:     model,
		Tools:     registry,
		Callbacks: callbacks,
	})
	require.NoError(t, err)

	summary, err := driver.Run(context.Background(), agent.RunOptions{Query: "shout go"})
	require.NoError(t, err)
	require.Equal(t, "GO", summary.Answer)
	require.Zero(t, callbacks.Open())

	spans := recorder.Ended()
	byName := map[string]sdktrace.ReadOnlySpan{}
	for _, span := range spans {
		byName[span.Name()] = span
	}
	run := byName["agent.run"]
	require.NotNil(t, run)
	require.False(t, run.Parent().IsValid())

	act := byName["agent.step.act"]
	require.NotNil(t, act)
	require.Equal(t, run.SpanContext().SpanID(), act.Parent().SpanID())

	tool := byName["agent.tool.upper"]
	require.NotNil(t, tool)
	require.Equal(t, act.SpanContext().SpanID(), tool.Parent().SpanID())
	require.Equal(t, run.SpanContext().TraceID(), tool.SpanContext().TraceID())
}

func TestTracingCallbacksRecordErrors(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	callbacks := NewTracingCallbacks(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

	ctx := context.Background()
	callbacks.BeforeRun(ctx, &agent.RunEvent{RunID: "r1"})
	callbacks.BeforeStep(ctx, &agent.StepEvent{RunID: "r1", Step: agent.StepReason})
	callbacks.AfterStep(ctx, &agent.StepEvent{RunID: "r1", Step: agent.StepReason, Error: "reasoning error: boom"})
	callbacks.AfterRun(ctx, &agent.RunEvent{RunID: "r1"})

	// Unmatched After callbacks are ignored
	callbacks.AfterStep(ctx, &agent.StepEvent{RunID: "r2", Step: agent.StepAct})

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	require.Equal(t, "agent.step.reason", spans[0].Name())
	require.Equal(t, codes.Error, spans[0].Status().Code)
	require.Equal(t, "reasoning error: boom", spans[0].Status().Description)
	require.Equal(t, codes.Unset, spans[1].Status().Code)
}
