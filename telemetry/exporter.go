package telemetry

import (
	"context"
	"log/slog"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

var _ sdktrace.SpanExporter = (*LogExporter)(nil)

// LogExporter writes finished spans to a logger at debug level. It is used
// when no collector is configured.
type LogExporter struct {
	logger *slog.Logger
}

func NewLogExporter(logger *slog.Logger) *LogExporter {
	return &LogExporter{logger: logger}
}

func (e *LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		attrs := []any{
			"trace_id", span.SpanContext().TraceID().String(),
			"span_id", span.SpanContext().SpanID().String(),
			"duration", span.EndTime().Sub(span.StartTime()),
		}
		if parent := span.Parent(); parent.IsValid() {
			attrs = append(attrs, "parent_id", parent.SpanID().String())
		}
		for _, kv := range span.Attributes() {
			attrs = append(attrs, string(kv.Key), kv.Value.Emit())
		}
		if status := span.Status(); status.Description != "" {
			attrs = append(attrs, "status", status.Description)
		}
		e.logger.DebugContext(ctx, "span "+span.Name(), attrs...)
	}
	return nil
}

func (e *LogExporter) Shutdown(ctx context.Context) error {
	return nil
}
