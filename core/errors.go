package core

import (
	"errors"
	"fmt"
)

// GenerationError indicates the generation service itself failed (network,
// auth, malformed response). It is fatal to the current turn and must surface
// to the caller; it is never converted into a tool result.
type GenerationError struct {
	Err error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation service error: %v", e.Err)
}

// Unwrap exposes the underlying provider error.
func (e *GenerationError) Unwrap() error { return e.Err }

// NewGenerationError wraps a provider failure.
func NewGenerationError(err error) *GenerationError { return &GenerationError{Err: err} }

// IsGenerationError reports whether err is (or wraps) a GenerationError.
func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}

// DuplicateToolError is returned when two tools are registered under the same
// name within one session's registry. Registration collisions are programming
// or configuration mistakes and should prevent session start.
type DuplicateToolError struct {
	Name string
}

// Error implements the error interface.
func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q already registered", e.Name)
}

// UnknownToolError is returned when resolving a name absent from the registry.
type UnknownToolError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// ErrRegistryFrozen is returned for registration attempts after the registry
// has been frozen for a session.
var ErrRegistryFrozen = errors.New("tool registry is frozen for this session")

// ErrRoundLimit is returned when a turn exceeds the configured maximum number
// of reasoning rounds.
var ErrRoundLimit = errors.New("maximum reasoning rounds exceeded")

// ErrOrphanToolResult is returned when a tool-role event answers a call id
// that the immediately preceding assistant event never issued. The pairing is
// a hard history invariant; the store refuses the append.
var ErrOrphanToolResult = errors.New("tool result does not match a pending tool call")
