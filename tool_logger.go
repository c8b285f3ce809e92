package agent

import (
	"context"
	"time"
)

// ToolLogEntry records one tool invocation made during a run
type ToolLogEntry struct {
	ID         string         `json:"id"`
	RunID      string         `json:"run_id"`
	ThreadID   string         `json:"thread_id,omitempty"`
	Tool       string         `json:"tool"`
	Iteration  int            `json:"iteration"`
	Parameters map[string]any `json:"parameters"`
	Result     string         `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartTime  time.Time      `json:"start_time"`
	Duration   float64        `json:"duration"`
}

// ToolLogger persists an audit trail of tool invocations
type ToolLogger interface {
	// LogToolCall logs a completed tool call
	LogToolCall(ctx context.Context, entry *ToolLogEntry) error

	// GetToolHistory retrieves the tool log for a run
	GetToolHistory(ctx context.Context, runID string) ([]*ToolLogEntry, error)
}

// NullToolLogger discards all entries
type NullToolLogger struct{}

func NewNullToolLogger() *NullToolLogger {
	return &NullToolLogger{}
}

func (l *NullToolLogger) LogToolCall(ctx context.Context, entry *ToolLogEntry) error {
	return nil
}

func (l *NullToolLogger) GetToolHistory(ctx context.Context, runID string) ([]*ToolLogEntry, error) {
	return nil, nil
}
