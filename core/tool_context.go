package core

import (
	"context"

	"convo/logging"
)

// ToolContext is the restricted view of a turn handed to tool executions.
// Tools see identifiers, conversation-scoped stores and a state staging
// area, but not the emission channels.
type ToolContext struct {
	turnCtx *TurnContext
	callID  string
	actions *EventActions
}

// NewToolContext derives a ToolContext from a TurnContext for one call.
func NewToolContext(tc *TurnContext, callID string) *ToolContext {
	return &ToolContext{
		turnCtx: tc,
		callID:  callID,
		actions: &EventActions{StateDelta: map[string]any{}},
	}
}

// Context returns the cancellation context governing the call.
func (t *ToolContext) Context() context.Context { return t.turnCtx.Context }

// ConversationID returns the owning conversation's identifier.
func (t *ToolContext) ConversationID() string { return t.turnCtx.ConversationID }

// TurnID returns the identifier of the turn that triggered the call.
func (t *ToolContext) TurnID() string { return t.turnCtx.TurnID }

// CallID returns the model-assigned identifier of this tool call.
func (t *ToolContext) CallID() string { return t.callID }

// Logger exposes the turn's logger for tool implementations.
func (t *ToolContext) Logger() logging.Logger {
	return t.turnCtx.turnLogger.logger
}

// GetState reads a checkpoint value, preferring values staged by this call.
func (t *ToolContext) GetState(k string) (any, bool) {
	if v, ok := t.actions.StateDelta[k]; ok {
		return v, true
	}

	return t.turnCtx.GetState(k)
}

// SetState stages a checkpoint mutation to be carried on the tool result
// event.
func (t *ToolContext) SetState(k string, v any) {
	t.actions.StateDelta[k] = v
}

// Actions returns the actions staged by this call so far.
func (t *ToolContext) Actions() EventActions { return *t.actions }

// ApplyActionsTo merges the staged actions onto an outgoing event, normally
// the tool result event, so the runner persists them with it.
func (t *ToolContext) ApplyActionsTo(ev *Event) {
	if len(t.actions.StateDelta) == 0 {
		return
	}
	if ev.Actions.StateDelta == nil {
		ev.Actions.StateDelta = map[string]any{}
	}
	for k, v := range t.actions.StateDelta {
		ev.Actions.StateDelta[k] = v
	}
}

// SearchKnowledge queries indexed document content for this conversation.
func (t *ToolContext) SearchKnowledge(query string, limit int) ([]Snippet, error) {
	return t.turnCtx.SearchKnowledge(query, limit)
}

// SaveDocument stores raw document bytes under this conversation.
func (t *ToolContext) SaveDocument(docID string, data []byte) error {
	return t.turnCtx.SaveDocument(docID, data)
}

// ListDocuments lists document ids stored for this conversation.
func (t *ToolContext) ListDocuments() ([]string, error) {
	if t.turnCtx.Documents == nil {
		return []string{}, nil
	}

	return t.turnCtx.Documents.List(t.turnCtx.ConversationID)
}
