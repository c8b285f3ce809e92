package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/deepnoodle-ai/agent"
	"github.com/deepnoodle-ai/agent/retry"
)

// DefaultTavilyURL is the Tavily search endpoint
const DefaultTavilyURL = "https://api.tavily.com/search"

// DefaultMaxResults is the number of web results returned when the model
// does not ask for a specific count.
const DefaultMaxResults = 3

// WebSearchOptions configures the web_search tool
type WebSearchOptions struct {
	APIKey     string
	URL        string
	HTTPClient *http.Client
	MaxResults int
	MaxRetries int
	RetryWait  time.Duration
}

// WebSearchParams are the web_search arguments
type WebSearchParams struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

type tavilyRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// WebSearch searches the web through the Tavily API
type WebSearch struct {
	opts WebSearchOptions
}

// NewWebSearch returns the web_search tool. An API key is required.
func NewWebSearch(opts WebSearchOptions) (agent.Tool, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if opts.URL == "" {
		opts.URL = DefaultTavilyURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 500 * time.Millisecond
	}
	return agent.NewTypedTool[WebSearchParams](&WebSearch{opts: opts}), nil
}

func (t *WebSearch) Name() string {
	return "web_search"
}

func (t *WebSearch) Description() string {
	return "Search the internet for current information"
}

func (t *WebSearch) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":       stringSchema("The search query"),
			"max_results": map[string]any{"type": "integer", "minimum": 1, "maximum": 20},
		},
		"required": []any{"query"},
	}
}

func (t *WebSearch) CoerceStringInput(input string) (map[string]any, bool) {
	return map[string]any{"query": input}, true
}

func (t *WebSearch) Execute(ctx context.Context, params WebSearchParams) (string, error) {
	if strings.TrimSpace(params.Query) == "" {
		return "", fmt.Errorf("query cannot be empty")
	}
	if params.MaxResults <= 0 {
		params.MaxResults = t.opts.MaxResults
	}
	body, err := json.Marshal(tavilyRequest{
		APIKey:     t.opts.APIKey,
		Query:      params.Query,
		MaxResults: params.MaxResults,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var result tavilyResponse
	err = retry.Do(ctx, func() error {
		return t.post(ctx, body, &result)
	}, retry.WithMaxRetries(t.opts.MaxRetries), retry.WithBaseWait(t.opts.RetryWait))
	if err != nil {
		return "", fmt.Errorf("web search failed: %w", err)
	}

	if len(result.Results) == 0 {
		return "No search results found", nil
	}
	var sb strings.Builder
	for i, r := range result.Results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[Result %d]\nTitle: %s\nURL: %s\nSummary: %s",
			i+1, orNA(r.Title), orNA(r.URL), truncate(orNA(r.Content), 300))
	}
	return sb.String(), nil
}

func (t *WebSearch) post(ctx context.Context, body []byte, out *tavilyResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.opts.URL, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("search api: %w", &retry.StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       truncate(string(data), 200),
		})
	}
	if err := json.Unmarshal(data, out); err != nil {
		return retry.Permanent(fmt.Errorf("invalid search response: %w", err))
	}
	return nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
