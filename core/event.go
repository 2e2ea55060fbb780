package core

import (
	"time"

	"github.com/google/uuid"
)

// EventActions encodes side-effects attached to an Event. Fields are optional
// so absence can be distinguished from zero values. The runner applies these
// after persistence (currently only checkpoint state deltas).
type EventActions struct {
	StateDelta map[string]any `json:"state_delta,omitempty"`
}

// Event is the primary unit of communication between the turn state machine,
// the runner and external consumers. After emission it should be treated as
// immutable. It captures:
//   - Correlation (TurnID, ID, Author)
//   - Conversational content (optional role-based Parts)
//   - Checkpoint directives (Actions)
//   - Error / interruption metadata
//   - High precision UTC timestamp
//
// Content may be nil for control or error-only events.
type Event struct {
	ID           string            `json:"id"`
	TurnID       string            `json:"turn_id"`
	Author       string            `json:"author"`
	Actions      EventActions      `json:"actions"`
	Timestamp    time.Time         `json:"timestamp"`
	Content      *Content          `json:"content,omitempty"`
	Partial      *bool             `json:"partial,omitempty"`
	TurnComplete *bool             `json:"turn_complete,omitempty"`
	ErrorCode    *string           `json:"error_code,omitempty"`
	ErrorMessage *string           `json:"error_message,omitempty"`
	Interrupted  *bool             `json:"interrupted,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// NewEvent creates a bare event authored by 'author' bound to a turn.
// Prefer helper constructors for common semantic categories.
func NewEvent(turnID, author string) Event {
	return Event{
		ID:        NewID(),
		TurnID:    turnID,
		Author:    author,
		Timestamp: time.Now().UTC(),
		Actions:   EventActions{},
	}
}

// NewUserMessageEvent creates a user-authored text message event.
func NewUserMessageEvent(turnID, message string) Event {
	e := NewEvent(turnID, RoleUser)
	e.Content = &Content{Role: RoleUser, Parts: []Part{TextPart{Text: message}}}
	return e
}

// NewUserContentEvent creates a user-authored event with arbitrary Content.
func NewUserContentEvent(turnID string, content *Content) Event {
	e := NewEvent(turnID, RoleUser)
	e.Content = content
	return e
}

// NewAssistantMessageEvent creates an assistant message event with a single text part.
func NewAssistantMessageEvent(turnID, author, message string) Event {
	e := NewEvent(turnID, author)
	e.Content = &Content{Role: RoleAssistant, Parts: []Part{TextPart{Text: message}}}
	return e
}

// NewToolResultEvent records the completion result (or error) of a tool
// invocation. If err is non-nil its message is copied into the result's Error
// field so the model can observe the failure on the next round.
func NewToolResultEvent(turnID, author, callID, toolName string, response any, err error) Event {
	e := NewEvent(turnID, author)
	tr := ToolResult{ID: callID, Name: toolName, Response: response}
	if err != nil {
		tr.Error = err.Error()
	}
	e.Content = &Content{Role: RoleTool, Parts: []Part{ToolResultPart{ToolResult: tr}}}
	return e
}

// NewErrorEvent creates a terminal error event carrying a taxonomy code and a
// human-readable message.
func NewErrorEvent(turnID, author, code, message string) Event {
	e := NewEvent(turnID, author)
	e.ErrorCode = &code
	e.ErrorMessage = &message
	return e
}

// NewID generates a new UUID-based unique identifier for events and turns.
func NewID() string { return uuid.NewString() }

// IsPartial reports whether this event represents a streaming fragment that
// will be followed by additional events composing the final assistant turn.
func (e Event) IsPartial() bool { return e.Partial != nil && *e.Partial }

// GetToolCalls returns any ToolCall parts contained within the event content
// preserving their original order.
func (e Event) GetToolCalls() []ToolCall {
	if e.Content == nil {
		return nil
	}
	var calls []ToolCall
	for _, p := range e.Content.Parts {
		if tc, ok := p.(ToolCallPart); ok {
			calls = append(calls, tc.ToolCall)
		}
	}
	return calls
}

// GetToolResults returns any ToolResult parts contained within the event
// content preserving their original order.
func (e Event) GetToolResults() []ToolResult {
	if e.Content == nil {
		return nil
	}
	var results []ToolResult
	for _, p := range e.Content.Parts {
		if tr, ok := p.(ToolResultPart); ok {
			results = append(results, tr.ToolResult)
		}
	}
	return results
}

// IsFinalAnswer reports whether this event terminates a turn: a complete
// assistant message with no pending tool calls or results.
func (e Event) IsFinalAnswer() bool {
	return len(e.GetToolCalls()) == 0 &&
		len(e.GetToolResults()) == 0 &&
		!e.IsPartial()
}

// UnixSeconds returns the timestamp as fractional seconds since Unix epoch.
func (e Event) UnixSeconds() float64 { return float64(e.Timestamp.UnixNano()) / 1e9 }
