package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error type constants for classification and matching
const (
	// ErrorTypeParse indicates the model response could not be interpreted
	ErrorTypeParse = "parse"

	// ErrorTypeToolNotFound indicates the model chose a tool that is not registered
	ErrorTypeToolNotFound = "tool_not_found"

	// ErrorTypeToolFailed matches any tool invocation failure
	ErrorTypeToolFailed = "tool_failed"

	// ErrorTypeGeneration indicates the language model call failed
	ErrorTypeGeneration = "generation"

	// ErrorTypeTimeout matches a deadline exceeded error
	ErrorTypeTimeout = "timeout"

	// ErrorTypeCanceled matches a canceled run
	ErrorTypeCanceled = "canceled"

	// ErrorTypeCheckpoint indicates a checkpoint storage failure
	ErrorTypeCheckpoint = "checkpoint"
)

var (
	// ErrCheckpointNotFound is returned when a checkpoint id is unknown or its
	// data is missing from the store.
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrToolNotFound is returned when a tool name is not registered.
	ErrToolNotFound = errors.New("tool not found")

	// ErrThreadBusy is returned when a run is started on a thread that
	// already has a run in flight.
	ErrThreadBusy = errors.New("thread already has a run in progress")

	// ErrNoPendingAction is recorded when the act step has nothing to run.
	ErrNoPendingAction = errors.New("no pending action")
)

// AgentError represents a classified error raised inside a run.
// It supports Go's error wrapping patterns with Unwrap() method
type AgentError struct {
	Type    string `json:"type"`
	Cause   string `json:"cause"`
	Wrapped error  `json:"-"`
}

// Error implements the error interface
func (e *AgentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Cause)
}

// Unwrap implements the error unwrapping interface for Go's errors.Is and errors.As
func (e *AgentError) Unwrap() error {
	return e.Wrapped
}

// NewAgentError creates a new AgentError with the specified type and cause.
func NewAgentError(errorType, cause string) *AgentError {
	return &AgentError{Type: errorType, Cause: cause}
}

// WrapError classifies err under the given type, keeping it for errors.Is.
func WrapError(errorType string, err error) *AgentError {
	return &AgentError{Type: errorType, Cause: err.Error(), Wrapped: err}
}

// ClassifyError attempts to classify a regular error into an AgentError
func ClassifyError(err error) *AgentError {
	var agentError *AgentError
	if errors.As(err, &agentError) {
		return agentError
	}
	switch {
	case errors.Is(err, ErrToolNotFound):
		return WrapError(ErrorTypeToolNotFound, err)
	case errors.Is(err, ErrCheckpointNotFound):
		return WrapError(ErrorTypeCheckpoint, err)
	case errors.Is(err, context.Canceled):
		return WrapError(ErrorTypeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded),
		strings.Contains(strings.ToLower(err.Error()), "timeout"):
		return WrapError(ErrorTypeTimeout, err)
	}
	return WrapError(ErrorTypeToolFailed, err)
}

// IsErrorType reports whether err classifies as the given type.
func IsErrorType(err error, errorType string) bool {
	if err == nil {
		return false
	}
	return ClassifyError(err).Type == errorType
}
