// Package flow implements the turn state machine: the alternation of
// reasoning rounds and tool execution that drives a single user turn from
// input to final answer.
package flow

import (
	"convo/core"
	"convo/model"
)

// Flow runs one turn. Execute starts the turn asynchronously: progress is
// emitted through the turn context's Emit channel, and the returned channel
// carries at most one fatal error (a generation failure or an exhausted
// round limit). The returned channel is closed when the turn ends, which is
// how the caller learns the flow finished.
type Flow interface {
	Execute(turnCtx *core.TurnContext) (<-chan error, error)
}

// FlowAgent is the view of an agent the flow needs: identity, model, tool
// surface and instruction resolution.
type FlowAgent interface {
	// GetName returns the agent's display name, used as event author.
	GetName() string

	// GetModel returns the reasoning backend.
	GetModel() model.Model

	// ResolveInstructions produces the system instructions for a turn.
	ResolveInstructions(turnCtx *core.TurnContext) (string, error)

	// ToolDefinitions returns the tool surface presented to the model.
	ToolDefinitions() []model.ToolDefinition

	// ExecuteTool runs a named tool with raw JSON arguments.
	ExecuteTool(toolCtx *core.ToolContext, name, args string) (any, error)

	// IsStreamingEnabled reports whether partial responses should be
	// requested.
	IsStreamingEnabled() bool

	// MaxHistoryMessages caps how much history is replayed to the model.
	MaxHistoryMessages() int
}

// RequestProcessor mutates the model request before generation.
type RequestProcessor interface {
	// Name identifies the processor in errors and logs.
	Name() string
	// ProcessRequest modifies the request before it reaches the model.
	ProcessRequest(turnCtx *core.TurnContext, req *model.Request, agent FlowAgent) error
}
