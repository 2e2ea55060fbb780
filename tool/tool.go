// Package tool implements the tool calling subsystem: structured
// capabilities the model can invoke with schema validated arguments,
// uniform error handling and a registry that aggregates local and
// provider-discovered tools.
package tool

import (
	"fmt"

	"convo/core"
	"convo/internal/util"
)

// Error codes attached to ToolError. The turn state machine converts all of
// these into failure results fed back to the model; none of them abort the
// turn.
const (
	CodeUnknownTool      = "UNKNOWN_TOOL"
	CodeInvalidArguments = "INVALID_ARGUMENTS"
	CodeExecutionError   = "EXECUTION_ERROR"
	CodeToolUnavailable  = "TOOL_UNAVAILABLE"
	CodeTimeout          = "TIMEOUT"
	CodeCancelled        = "CANCELLED"
)

// Tool is a named capability the model may invoke during a turn.
//
// Implementations should:
//   - Use snake_case names unique within a registry
//   - Describe themselves so the model knows when to call them
//   - Declare a JSON schema for their arguments
//   - Be safe for concurrent calls
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description provided to the
	// model.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Call executes the tool. Arguments are decoded from the model's JSON
	// and validated against the schema before the call.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ValidationError re-exports the schema validation error type.
type ValidationError = util.ValidationError

// ToolError is the uniform failure type for tool execution. It never escapes
// to the caller of a turn; it is rendered into the failing call's result.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a ToolError with the given code.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}
