package core

import (
	"context"
	"fmt"
	"maps"

	"convo/logging"
)

// TurnContext carries execution state & helpers for one user turn. It
// encapsulates the mutable, per-turn execution scope passed to the agent's
// Run method. It aggregates:
//   - The ambient cancellation Context
//   - Identifiers (ConversationID, TurnID)
//   - Input user Content
//   - Emission / resumption coordination channels
//   - Backing services (conversations, documents, knowledge)
//   - A working Conversation snapshot and pending checkpoint StateDelta
//
// State mutations performed via SetState accumulate in StateDelta until an
// emitted event carries them to the store. The Emit/Resume pair sequences
// persistence: the flow emits an event, the runner appends it to the store
// and signals Resume, and only then does the flow continue. This keeps
// history strictly append-ordered across rounds.
type TurnContext struct {
	Context        context.Context
	ConversationID string
	TurnID         string
	UserContent    Content
	MaxRounds      int
	Emit           chan<- Event
	Resume         <-chan struct{}
	Conversations  ConversationStore
	Documents      DocumentStore
	Knowledge      KnowledgeStore
	Rounds         *RoundLimiter
	Conversation   *Conversation
	StateDelta     map[string]any

	*turnLogger
}

// NewTurnContext constructs a TurnContext with an empty checkpoint delta.
func NewTurnContext(
	ctx context.Context,
	conversationID, turnID string,
	userContent Content,
	maxRounds int,
	emit chan<- Event,
	resume <-chan struct{},
	conv *Conversation,
	conversations ConversationStore,
	documents DocumentStore,
	knowledge KnowledgeStore,
	logger logging.Logger,
) *TurnContext {
	return &TurnContext{
		Context:        ctx,
		ConversationID: conversationID,
		TurnID:         turnID,
		UserContent:    userContent,
		MaxRounds:      maxRounds,
		Emit:           emit,
		Resume:         resume,
		Conversation:   conv,
		Conversations:  conversations,
		Documents:      documents,
		Knowledge:      knowledge,
		Rounds:         NewRoundLimiter(maxRounds),
		StateDelta:     map[string]any{},
		turnLogger:     newTurnLogger(logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (tc *TurnContext) Done() <-chan struct{} { return tc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (tc *TurnContext) Err() error { return tc.Context.Err() }

// GetState returns a staged (delta) value if present, else the persisted
// conversation checkpoint value.
func (tc *TurnContext) GetState(k string) (any, bool) {
	if v, ok := tc.StateDelta[k]; ok {
		return v, true
	}

	if tc.Conversation != nil {
		return tc.Conversation.GetState(k)
	}

	return nil, false
}

// SetState stages a checkpoint mutation in the in-memory delta buffer.
func (tc *TurnContext) SetState(k string, v any) { tc.StateDelta[k] = v }

// ApplyStateDelta merges all pairs from d into the staged StateDelta.
func (tc *TurnContext) ApplyStateDelta(d map[string]any) {
	maps.Copy(tc.StateDelta, d)
}

// RefreshConversation reloads the conversation snapshot from the store so the
// next round sees events appended since the last snapshot.
func (tc *TurnContext) RefreshConversation() error {
	if tc.Conversations == nil {
		return fmt.Errorf("conversation store not configured")
	}

	c, err := tc.Conversations.Get(tc.ConversationID)
	if err != nil {
		return err
	}

	tc.Conversation = c

	return nil
}

// History returns all historical events from the current snapshot.
func (tc *TurnContext) History() []Event {
	if tc.Conversation == nil {
		return []Event{}
	}

	return tc.Conversation.GetEvents()
}

// SearchKnowledge queries the KnowledgeStore scoped to this conversation.
func (tc *TurnContext) SearchKnowledge(q string, limit int) ([]Snippet, error) {
	if tc.Knowledge == nil {
		return []Snippet{}, nil
	}

	return tc.Knowledge.Search(tc.Context, tc.ConversationID, q, limit)
}

// SaveDocument stores raw uploaded bytes in the DocumentStore.
func (tc *TurnContext) SaveDocument(docID string, data []byte) error {
	if tc.Documents == nil {
		return fmt.Errorf("document store not configured")
	}

	return tc.Documents.Save(tc.ConversationID, docID, data)
}

// EmitEvent merges the pending StateDelta into the event and emits it. The
// delta buffer is cleared only after a successful emit.
func (tc *TurnContext) EmitEvent(ev Event) error {
	if len(tc.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}
		maps.Copy(ev.Actions.StateDelta, tc.StateDelta)
	}

	select {
	case <-tc.Context.Done():
		return tc.Context.Err()
	case tc.Emit <- ev:
	}

	tc.StateDelta = map[string]any{}

	return nil
}

// WaitForResume blocks until the runner confirms persistence of the last
// emitted event, or the turn is cancelled.
func (tc *TurnContext) WaitForResume() error {
	if tc.Resume == nil {
		return nil
	}

	select {
	case <-tc.Resume:
		return nil
	case <-tc.Context.Done():
		return tc.Context.Err()
	}
}
