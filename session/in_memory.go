// Package session provides conversation persistence backends.
package session

import (
	"sync"

	"convo/core"
)

// InMemoryStore is a volatile ConversationStore implementation holding
// conversations in a process local map. It is safe for concurrent access and
// best suited for tests or single-process deployments. Each returned
// conversation is a clone so callers cannot mutate internal state; mutation
// happens only through AppendEvent and ApplyDelta, which serialize per
// conversation through the conversation's own mutex. The store lock guards
// only the id lookup, so appends to different ids never contend.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*core.Conversation
}

// NewInMemoryStore constructs an empty in-memory conversation store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{conversations: make(map[string]*core.Conversation)}
}

// Get returns a snapshot of an existing conversation or lazily creates an
// empty one on first access.
func (s *InMemoryStore) Get(id string) (*core.Conversation, error) {
	return s.resolve(id).Clone(), nil
}

// Delete removes a conversation and all its history.
func (s *InMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, id)
	return nil
}

// List returns the ids of all stored conversations.
func (s *InMemoryStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.conversations))
	for id := range s.conversations {
		ids = append(ids, id)
	}
	return ids
}

// AppendEvent adds an event to an existing or newly created conversation.
// The pairing invariant is enforced by the conversation itself; a rejected
// event leaves the history untouched.
func (s *InMemoryStore) AppendEvent(conversationID string, ev core.Event) error {
	return s.resolve(conversationID).AddEvent(ev)
}

// ApplyDelta merges a key/value delta into the conversation checkpoint.
func (s *InMemoryStore) ApplyDelta(conversationID string, delta map[string]any) error {
	s.resolve(conversationID).MergeState(delta)
	return nil
}

// resolve returns the conversation for id, creating it on first access. Only
// the map lookup holds the store lock; history and state mutation are
// serialized by the conversation itself.
func (s *InMemoryStore) resolve(id string) *core.Conversation {
	s.mu.RLock()
	conv, ok := s.conversations[id]
	s.mu.RUnlock()
	if ok {
		return conv
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.conversations[id]; ok {
		return conv
	}
	conv = core.NewConversation(id)
	s.conversations[id] = conv
	return conv
}
