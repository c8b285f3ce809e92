package agent

import "context"

// ResponseFormat constrains the shape of a model response.
type ResponseFormat string

const (
	FormatText ResponseFormat = "text"
	FormatJSON ResponseFormat = "json"
)

// ModelRequest is a single prompt sent to a language model.
type ModelRequest struct {
	// System holds the system instructions
	System string

	// Messages is the ordered conversation, oldest first
	Messages []Message

	// Format requests plain text or a JSON object
	Format ResponseFormat

	// Schema optionally describes the expected JSON object
	Schema map[string]any
}

// Model generates a response for a prompt. Implementations must honor
// context cancellation.
type Model interface {
	Generate(ctx context.Context, req *ModelRequest) (string, error)
}

// ModelFunc adapts a function to the Model interface.
type ModelFunc func(ctx context.Context, req *ModelRequest) (string, error)

func (f ModelFunc) Generate(ctx context.Context, req *ModelRequest) (string, error) {
	return f(ctx, req)
}
