package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestLogExporter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(NewLogExporter(logger)))

	tracer := provider.Tracer("test")
	ctx, parent := tracer.Start(context.Background(), "agent.run")
	_, child := tracer.Start(ctx, "agent.tool.calculator")
	child.SetAttributes(attribute.String("agent.tool", "calculator"))
	child.SetStatus(codes.Error, "division by zero")
	child.End()
	parent.End()
	require.NoError(t, provider.Shutdown(context.Background()))

	out := buf.String()
	require.Contains(t, out, `msg="span agent.tool.calculator"`)
	require.Contains(t, out, "agent.tool=calculator")
	require.Contains(t, out, `status="division by zero"`)
	require.Contains(t, out, "parent_id="+parent.SpanContext().SpanID().String())
	require.Contains(t, out, `msg="span agent.run"`)
}
