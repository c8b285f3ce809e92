// Package tools provides the built-in tools available to the agent.
package tools

import (
	"fmt"

	"github.com/deepnoodle-ai/agent"
)

// Options selects the built-in tools to create. A nil entry disables the
// corresponding tool.
type Options struct {
	Calculator *CalculatorOptions
	Files      *FileOptions
	WebSearch  *WebSearchOptions
	RAGSearch  *RAGSearchOptions
}

// New creates the enabled built-in tools.
func New(opts Options) ([]agent.Tool, error) {
	var tools []agent.Tool
	if opts.Calculator != nil {
		calculator, err := NewCalculator(*opts.Calculator)
		if err != nil {
			return nil, fmt.Errorf("calculator: %w", err)
		}
		tools = append(tools, calculator)
	}
	if opts.Files != nil {
		tools = append(tools, NewReadFile(*opts.Files), NewWriteFile(*opts.Files))
	}
	if opts.WebSearch != nil {
		search, err := NewWebSearch(*opts.WebSearch)
		if err != nil {
			return nil, fmt.Errorf("web_search: %w", err)
		}
		tools = append(tools, search)
	}
	if opts.RAGSearch != nil {
		search, err := NewRAGSearch(*opts.RAGSearch)
		if err != nil {
			return nil, fmt.Errorf("rag_search: %w", err)
		}
		tools = append(tools, search)
	}
	return tools, nil
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func stringSchema(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}
