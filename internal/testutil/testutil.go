// Package testutil provides shared builders for package tests.
package testutil

import (
	"context"
	"sync"

	"convo/core"
)

// ConversationStore is a minimal in-memory core.ConversationStore for tests.
type ConversationStore struct {
	mu    sync.Mutex
	convs map[string]*core.Conversation
}

// NewConversationStore creates an empty store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{convs: map[string]*core.Conversation{}}
}

func (s *ConversationStore) get(id string) *core.Conversation {
	c, ok := s.convs[id]
	if !ok {
		c = core.NewConversation(id)
		s.convs[id] = c
	}
	return c
}

// Get implements core.ConversationStore.
func (s *ConversationStore) Get(id string) (*core.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id).Clone(), nil
}

// AppendEvent implements core.ConversationStore.
func (s *ConversationStore) AppendEvent(conversationID string, event core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(conversationID).AddEvent(event)
}

// ApplyDelta implements core.ConversationStore.
func (s *ConversationStore) ApplyDelta(conversationID string, delta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(conversationID).MergeState(delta)
	return nil
}

// KnowledgeStore is a canned core.KnowledgeStore recording the scope of
// each search.
type KnowledgeStore struct {
	mu        sync.Mutex
	Snippets  []core.Snippet
	Err       error
	LastScope string
	LastQuery string
	stored    map[string][]string
}

// NewKnowledgeStore creates an empty canned store.
func NewKnowledgeStore(snippets ...core.Snippet) *KnowledgeStore {
	return &KnowledgeStore{Snippets: snippets, stored: map[string][]string{}}
}

// Store implements core.KnowledgeStore.
func (k *KnowledgeStore) Store(_ context.Context, conversationID, content string, _ map[string]string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.stored[conversationID] = append(k.stored[conversationID], content)
	return k.Err
}

// Search implements core.KnowledgeStore.
func (k *KnowledgeStore) Search(_ context.Context, conversationID, query string, limit int) ([]core.Snippet, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.LastScope = conversationID
	k.LastQuery = query
	if k.Err != nil {
		return nil, k.Err
	}
	if limit > 0 && len(k.Snippets) > limit {
		return k.Snippets[:limit], nil
	}
	return k.Snippets, nil
}

// Delete implements core.KnowledgeStore.
func (k *KnowledgeStore) Delete(_ context.Context, conversationID string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.stored, conversationID)
	return k.Err
}

// Stored returns the contents stored for a conversation.
func (k *KnowledgeStore) Stored(conversationID string) []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.stored[conversationID]
}

// NewTurnContext builds a TurnContext wired to fresh in-memory stores with
// buffered channels, suitable for direct method-level tests.
func NewTurnContext(ctx context.Context, conversationID, turnID string, knowledge core.KnowledgeStore) *core.TurnContext {
	store := NewConversationStore()
	conv, _ := store.Get(conversationID)
	return core.NewTurnContext(
		ctx,
		conversationID,
		turnID,
		core.NewUserContent("test input"),
		8,
		make(chan core.Event, 64),
		make(chan struct{}, 64),
		conv,
		store,
		nil,
		knowledge,
		nil,
	)
}

// NewToolContext builds a ToolContext backed by NewTurnContext.
func NewToolContext(ctx context.Context, conversationID, callID string, knowledge core.KnowledgeStore) *core.ToolContext {
	return core.NewToolContext(NewTurnContext(ctx, conversationID, "turn-test", knowledge), callID)
}
