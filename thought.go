package agent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Thought is the structured decision the model returns from a reasoning
// pass.
type Thought struct {
	Reasoning     string
	ActionNeeded  bool
	Action        string
	Input         ActionInput
	IsFinalAnswer bool
	FinalAnswer   string
}

// ActionInput holds the tool input of a thought. The model may send either
// an argument map or a bare string.
type ActionInput struct {
	Args   map[string]any
	Text   string
	IsText bool
}

// ParseResult is the outcome of interpreting a model response. It is one of
// Structured, Unstructured or Failed.
type ParseResult interface {
	parseResult()
}

// Structured is a response that decoded into a Thought.
type Structured struct {
	Thought Thought
}

// Unstructured is free text that announces a final answer.
type Unstructured struct {
	Text string
}

// Failed is a response that could not be interpreted.
type Failed struct {
	Err error
}

func (Structured) parseResult()   {}
func (Unstructured) parseResult() {}
func (Failed) parseResult()       {}

// finalAnswerMarkers are phrases that identify a final answer in free text.
var finalAnswerMarkers = []string{"final answer", "最終回答"}

// ThoughtSchema describes the JSON object expected from a reasoning pass.
var ThoughtSchema = map[string]any{
	"type":     "object",
	"required": []any{"reasoning"},
	"properties": map[string]any{
		"reasoning":       map[string]any{"type": "string", "description": "analysis of the current situation"},
		"action_needed":   map[string]any{"type": "boolean", "description": "whether a tool must be called"},
		"action":          map[string]any{"type": "string", "description": "name of the tool to call"},
		"action_input":    map[string]any{"description": "arguments for the tool"},
		"is_final_answer": map[string]any{"type": "boolean", "description": "whether the question can be answered now"},
		"final_answer":    map[string]any{"description": "the answer, when is_final_answer is true"},
	},
}

type thoughtJSON struct {
	Reasoning     *string         `json:"reasoning"`
	ActionNeeded  bool            `json:"action_needed"`
	Action        string          `json:"action"`
	ActionInput   json.RawMessage `json:"action_input"`
	IsFinalAnswer bool            `json:"is_final_answer"`
	FinalAnswer   json.RawMessage `json:"final_answer"`
}

// ParseThought interprets a raw model response.
func ParseThought(raw string) ParseResult {
	thought, err := decodeThought(raw)
	if err == nil {
		return Structured{Thought: thought}
	}
	if mentionsFinalAnswer(raw) {
		return Unstructured{Text: strings.TrimSpace(raw)}
	}
	return Failed{Err: err}
}

func decodeThought(raw string) (Thought, error) {
	body := extractJSONObject(raw)
	if body == "" {
		return Thought{}, errors.New("response does not contain a JSON object")
	}
	var decoded thoughtJSON
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return Thought{}, fmt.Errorf("invalid thought JSON: %w", err)
	}
	if decoded.Reasoning == nil {
		return Thought{}, errors.New("thought is missing the reasoning field")
	}
	input, err := decodeActionInput(decoded.ActionInput)
	if err != nil {
		return Thought{}, err
	}
	answer, err := decodeFinalAnswer(decoded.FinalAnswer)
	if err != nil {
		return Thought{}, err
	}
	return Thought{
		Reasoning:     *decoded.Reasoning,
		ActionNeeded:  decoded.ActionNeeded,
		Action:        strings.TrimSpace(decoded.Action),
		Input:         input,
		IsFinalAnswer: decoded.IsFinalAnswer,
		FinalAnswer:   answer,
	}, nil
}

func decodeActionInput(raw json.RawMessage) (ActionInput, error) {
	if isNullJSON(raw) {
		return ActionInput{}, nil
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return ActionInput{}, fmt.Errorf("invalid action_input: %w", err)
	}
	switch v := value.(type) {
	case map[string]any:
		return ActionInput{Args: v}, nil
	case string:
		return ActionInput{Text: v, IsText: true}, nil
	default:
		// Numbers and lists are passed on as their JSON text
		return ActionInput{Text: string(bytes.TrimSpace(raw)), IsText: true}, nil
	}
}

// decodeFinalAnswer accepts a string or re-serializes any other JSON value.
func decodeFinalAnswer(raw json.RawMessage) (string, error) {
	if isNullJSON(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", fmt.Errorf("invalid final_answer: %w", err)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("invalid final_answer: %w", err)
	}
	return string(data), nil
}

func isNullJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// extractJSONObject returns the outermost {...} span of s, which tolerates
// code fences and surrounding prose.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func mentionsFinalAnswer(s string) bool {
	lower := strings.ToLower(s)
	for _, marker := range finalAnswerMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
