package assistant

import (
	"errors"
	"fmt"
)

// ErrDuplicateTool is returned by Registry.Register when a tool name is
// already taken.
var ErrDuplicateTool = errors.New("duplicate tool registration")

// ErrorKind classifies dispatch failures. Every failure the dispatcher can
// produce maps to one of these; none of them escape as panics.
type ErrorKind string

const (
	// ErrUnknownTool means the call named a tool that is not registered.
	ErrUnknownTool ErrorKind = "unknown_tool"

	// ErrMissingParameter means a required parameter was absent.
	ErrMissingParameter ErrorKind = "missing_parameter"

	// ErrTransport covers collaborator failures: network errors,
	// non-success statuses and per-tool timeouts.
	ErrTransport ErrorKind = "transport_error"
)

// ToolError is a dispatch failure returned as data. It is folded into the
// follow-up prompt so the model can narrate the failure; it never aborts
// the turn.
type ToolError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewToolError builds a ToolError with a formatted message.
func NewToolError(kind ErrorKind, format string, args ...any) *ToolError {
	return &ToolError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
