// Package llm adapts hosted language models to the agent.Model interface.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/deepnoodle-ai/agent"
	"github.com/deepnoodle-ai/agent/retry"
	"github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when no model name is configured
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIOptions configures an OpenAIModel
type OpenAIOptions struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float32
	MaxTokens   int
	MaxRetries  int
	RetryWait   time.Duration
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// OpenAIModel generates responses with the OpenAI chat completions API or
// any server compatible with it.
type OpenAIModel struct {
	client *openai.Client
	opts   OpenAIOptions
}

// NewOpenAIModel returns a model backed by the chat completions API
func NewOpenAIModel(opts OpenAIOptions) (*OpenAIModel, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if opts.Model == "" {
		opts.Model = DefaultOpenAIModel
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = agent.NewDiscardLogger()
	}
	config := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		config.BaseURL = opts.BaseURL
	}
	if opts.HTTPClient != nil {
		config.HTTPClient = opts.HTTPClient
	}
	return &OpenAIModel{
		client: openai.NewClientWithConfig(config),
		opts:   opts,
	}, nil
}

// Name returns the configured model name
func (m *OpenAIModel) Name() string {
	return m.opts.Model
}

func (m *OpenAIModel) Generate(ctx context.Context, req *agent.ModelRequest) (string, error) {
	request, err := m.chatRequest(req)
	if err != nil {
		return "", err
	}

	var content string
	err = retry.Do(ctx, func() error {
		resp, err := m.client.CreateChatCompletion(ctx, request)
		if err != nil {
			m.opts.Logger.Warn("openai api call failed", "model", m.opts.Model, "error", err)
			return classify(err)
		}
		if len(resp.Choices) == 0 {
			return retry.Permanent(fmt.Errorf("openai returned no choices"))
		}
		m.opts.Logger.Debug("openai response",
			"model", m.opts.Model,
			"finish_reason", resp.Choices[0].FinishReason,
			"total_tokens", resp.Usage.TotalTokens)
		content = resp.Choices[0].Message.Content
		return nil
	}, retry.WithMaxRetries(m.opts.MaxRetries), retry.WithBaseWait(m.opts.RetryWait))
	if err != nil {
		return "", fmt.Errorf("openai api call failed: %w", err)
	}
	return content, nil
}

func (m *OpenAIModel) chatRequest(req *agent.ModelRequest) (openai.ChatCompletionRequest, error) {
	request := openai.ChatCompletionRequest{
		Model:       m.opts.Model,
		Temperature: m.opts.Temperature,
	}
	if m.opts.MaxTokens > 0 {
		request.MaxCompletionTokens = m.opts.MaxTokens
	}
	if req.Format == agent.FormatJSON {
		request.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	if req.System != "" {
		request.Messages = append(request.Messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, msg := range req.Messages {
		converted, err := convertMessage(msg)
		if err != nil {
			return request, err
		}
		request.Messages = append(request.Messages, converted)
	}
	return request, nil
}

func convertMessage(msg agent.Message) (openai.ChatCompletionMessage, error) {
	switch msg.Role {
	case agent.RoleSystem:
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: msg.Content}, nil
	case agent.RoleUser:
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: msg.Content}, nil
	case agent.RoleAssistant:
		converted := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: msg.Content}
		if msg.ToolCallID != "" {
			args, err := json.Marshal(msg.ToolArgs)
			if err != nil {
				return converted, fmt.Errorf("failed to marshal tool arguments: %w", err)
			}
			converted.ToolCalls = []openai.ToolCall{{
				ID:   msg.ToolCallID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      msg.ToolName,
					Arguments: string(args),
				},
			}}
		}
		return converted, nil
	case agent.RoleTool:
		return openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}, nil
	default:
		return openai.ChatCompletionMessage{}, fmt.Errorf("unknown message role %q", msg.Role)
	}
}

// classify marks rate limiting and server errors as recoverable.
func classify(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return err
	}
	if retry.RecoverableStatus(status) {
		return retry.Recoverable(err)
	}
	return retry.Permanent(err)
}
