package core

import (
	"fmt"
	"sync"
	"time"
)

// Conversation is the per-conversation state container: a mutable checkpoint
// map plus an ordered, append-only event history. It is safe for concurrent
// access.
//
// Contract:
//   - Events are only ever appended, never edited or reordered
//   - AddEvent enforces the tool-call/tool-result pairing invariant
//   - Events returns a defensive copy to avoid external mutation
//   - History filters events to user/assistant/tool roles and excludes
//     partial streaming fragments
//   - Clone performs deep copies of maps/slices for safe divergence
type Conversation struct {
	ID       string            `json:"id"`
	State    map[string]any    `json:"state"`
	Events   []Event           `json:"events"`
	Created  time.Time         `json:"created"`
	Updated  time.Time         `json:"updated"`
	Metadata map[string]string `json:"metadata"`
	mu       sync.RWMutex
}

// NewConversation creates an empty conversation with the given ID.
func NewConversation(id string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:       id,
		State:    map[string]any{},
		Events:   []Event{},
		Created:  now,
		Updated:  now,
		Metadata: map[string]string{},
	}
}

// GetState returns the value and existence flag for a checkpoint key.
func (c *Conversation) GetState(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.State[key]
	return v, ok
}

// SetState sets a key/value pair in the checkpoint updating the Updated timestamp.
func (c *Conversation) SetState(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.State[key] = value
	c.Updated = time.Now()
}

// MergeState merges the provided key/value pairs into State.
func (c *Conversation) MergeState(delta map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range delta {
		c.State[k] = v
	}
	c.Updated = time.Now()
}

// AddEvent appends an event to the history. Tool-role events are checked
// against the pending tool calls of the most recent assistant event; an
// unmatched result is refused with ErrOrphanToolResult rather than silently
// corrupting the pairing invariant.
func (c *Conversation) AddEvent(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ev.Content != nil && ev.Content.Role == RoleTool {
		for _, tr := range ev.GetToolResults() {
			if !c.pendingCallLocked(tr.ID) {
				return fmt.Errorf("%w: call id %q", ErrOrphanToolResult, tr.ID)
			}
		}
	}
	c.Events = append(c.Events, ev)
	c.Updated = time.Now()
	return nil
}

// pendingCallLocked reports whether callID was issued by the most recent
// assistant event carrying tool calls and has not yet been answered by a
// later tool-role event. Caller must hold at least a read lock.
func (c *Conversation) pendingCallLocked(callID string) bool {
	answered := map[string]bool{}
	for i := len(c.Events) - 1; i >= 0; i-- {
		ev := c.Events[i]
		if ev.Content == nil {
			continue
		}
		switch ev.Content.Role {
		case RoleTool:
			for _, tr := range ev.GetToolResults() {
				answered[tr.ID] = true
			}
		case RoleAssistant:
			calls := ev.GetToolCalls()
			if len(calls) == 0 {
				return false
			}
			for _, tc := range calls {
				if tc.ID == callID && !answered[tc.ID] {
					return true
				}
			}
			return false
		}
	}
	return false
}

// PendingToolCalls returns the calls issued by the most recent assistant
// event that have not yet been answered, in request order. The turn state
// machine uses this to resume mid-loop after a restart: a non-empty result
// means the next step is tool execution, not reasoning.
func (c *Conversation) PendingToolCalls() []ToolCall {
	c.mu.RLock()
	defer c.mu.RUnlock()
	answered := map[string]bool{}
	for i := len(c.Events) - 1; i >= 0; i-- {
		ev := c.Events[i]
		if ev.Content == nil {
			continue
		}
		switch ev.Content.Role {
		case RoleTool:
			for _, tr := range ev.GetToolResults() {
				answered[tr.ID] = true
			}
		case RoleAssistant:
			var pending []ToolCall
			for _, tc := range ev.GetToolCalls() {
				if !answered[tc.ID] {
					pending = append(pending, tc)
				}
			}
			return pending
		}
	}
	return nil
}

// GetEvents returns a defensive copy of the full event slice.
func (c *Conversation) GetEvents() []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	events := make([]Event, len(c.Events))
	copy(events, c.Events)
	return events
}

// History returns filtered events suitable for providing conversational
// context to the model (excludes partials and non-conversational roles).
func (c *Conversation) History() []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	allowed := map[string]bool{RoleUser: true, RoleAssistant: true, RoleTool: true}
	res := make([]Event, 0, len(c.Events))
	for _, ev := range c.Events {
		if ev.Content == nil || !allowed[ev.Content.Role] {
			continue
		}
		if ev.IsPartial() {
			continue
		}
		res = append(res, ev)
	}
	return res
}

// Clone returns a deep copy of the conversation safe for independent mutation.
func (c *Conversation) Clone() *Conversation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	clone := &Conversation{
		ID:       c.ID,
		State:    make(map[string]any, len(c.State)),
		Events:   make([]Event, len(c.Events)),
		Created:  c.Created,
		Updated:  c.Updated,
		Metadata: make(map[string]string, len(c.Metadata)),
	}
	for k, v := range c.State {
		clone.State[k] = v
	}
	copy(clone.Events, c.Events)
	for k, v := range c.Metadata {
		clone.Metadata[k] = v
	}
	return clone
}

// ConversationStore persists conversations and their evolving checkpoint
// state / event history. Implementations must serialize appends to the same
// conversation id while never blocking appends to different ids, and must
// guarantee that no operation on one id touches state stored under another.
type ConversationStore interface {
	// Get returns the conversation for id, creating an empty one on first
	// access. The returned value is a snapshot: later appends are not
	// observable through it.
	Get(id string) (*Conversation, error)
	// AppendEvent atomically appends one event to the identified conversation.
	AppendEvent(conversationID string, event Event) error
	// ApplyDelta merges a key/value delta into the conversation checkpoint.
	ApplyDelta(conversationID string, delta map[string]any) error
}
