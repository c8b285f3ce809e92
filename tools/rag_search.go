package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/deepnoodle-ai/agent"
)

// Defaults for rag_search arguments the model leaves out
const (
	DefaultTopK           = 5
	DefaultScoreThreshold = 0.3
)

// RAGSearchOptions configures the rag_search tool
type RAGSearchOptions struct {
	Searcher       Searcher
	TopK           int
	ScoreThreshold float64
}

// RAGSearchParams are the rag_search arguments
type RAGSearchParams struct {
	Query          string   `json:"query"`
	TopK           *int     `json:"top_k,omitempty"`
	ScoreThreshold *float64 `json:"score_threshold,omitempty"`
}

// RAGSearch searches the internal document collection
type RAGSearch struct {
	opts RAGSearchOptions
}

// NewRAGSearch returns the rag_search tool
func NewRAGSearch(opts RAGSearchOptions) (agent.Tool, error) {
	if opts.Searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.ScoreThreshold <= 0 {
		opts.ScoreThreshold = DefaultScoreThreshold
	}
	return agent.NewTypedTool[RAGSearchParams](&RAGSearch{opts: opts}), nil
}

func (t *RAGSearch) Name() string {
	return "rag_search"
}

func (t *RAGSearch) Description() string {
	return "Search internal documents for relevant information"
}

func (t *RAGSearch) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":           stringSchema("The search query"),
			"top_k":           map[string]any{"type": "integer", "minimum": 1},
			"score_threshold": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		},
		"required": []any{"query"},
	}
}

func (t *RAGSearch) CoerceStringInput(input string) (map[string]any, bool) {
	return map[string]any{"query": input}, true
}

func (t *RAGSearch) Execute(ctx context.Context, params RAGSearchParams) (string, error) {
	if strings.TrimSpace(params.Query) == "" {
		return "", fmt.Errorf("query cannot be empty")
	}
	topK := t.opts.TopK
	if params.TopK != nil && *params.TopK > 0 {
		topK = *params.TopK
	}
	threshold := t.opts.ScoreThreshold
	if params.ScoreThreshold != nil {
		threshold = *params.ScoreThreshold
	}

	docs, err := t.opts.Searcher.Search(ctx, params.Query, topK)
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}

	var sb strings.Builder
	n := 0
	for _, doc := range docs {
		if doc.Score < threshold {
			continue
		}
		n++
		if n > 1 {
			sb.WriteString("\n\n")
		}
		source := doc.Source
		if source == "" {
			source = "Unknown"
		}
		fmt.Fprintf(&sb, "[Result %d] (score: %.3f)\nContent: %s\nSource: %s",
			n, doc.Score, truncate(doc.Content, 500), source)
	}
	if n == 0 {
		return "No relevant documents found", nil
	}
	return sb.String(), nil
}
