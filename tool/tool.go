// Package tool implements the callable operation catalog exposed to the
// completion service: schema-typed tools with validated arguments, structured
// results and uniform error codes. Tool failures are values, never panics,
// so the dispatch loop can always fold them back into the conversation.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/caremesh/internal/util"
)

// Error codes carried by ToolError.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeExecution       = "EXECUTION_ERROR"
)

// Tool is a named, schema-typed callable operation.
//
// Implementations must be safe for concurrent use: a single tool instance is
// shared by every session.
type Tool interface {
	// Name returns the unique tool identifier (snake_case).
	Name() string

	// Description is the natural-language summary shown to the model.
	Description() string

	// Parameters returns a minimal JSON-Schema-like map describing the
	// accepted arguments.
	Parameters() map[string]any

	// Call executes the tool with already-decoded arguments. Failures are
	// returned as *ToolError with a stable Code.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// ValidationError represents a single-argument validation failure.
type ValidationError = util.ValidationError

// ToolError is the uniform failure value for tool execution.
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
