package core

import (
	"context"
	"testing"
)

type stubKnowledgeStore struct {
	lastConversationID string
	lastQuery          string
	snippets           []Snippet
}

func (s *stubKnowledgeStore) Store(ctx context.Context, conversationID, content string, metadata map[string]string) error {
	return nil
}

func (s *stubKnowledgeStore) Search(ctx context.Context, conversationID, query string, limit int) ([]Snippet, error) {
	s.lastConversationID = conversationID
	s.lastQuery = query
	return s.snippets, nil
}

func (s *stubKnowledgeStore) Delete(ctx context.Context, conversationID string) error {
	return nil
}

func TestToolContext_Identifiers(t *testing.T) {
	tc, _ := newTestTurnContext(context.Background(), make(chan Event, 1), make(chan struct{}, 1))
	toolCtx := NewToolContext(tc, "call-7")

	if toolCtx.ConversationID() != "conv-1" {
		t.Fatalf("unexpected conversation id: %q", toolCtx.ConversationID())
	}
	if toolCtx.TurnID() != "turn-1" {
		t.Fatalf("unexpected turn id: %q", toolCtx.TurnID())
	}
	if toolCtx.CallID() != "call-7" {
		t.Fatalf("unexpected call id: %q", toolCtx.CallID())
	}
	if toolCtx.Logger() == nil {
		t.Fatal("logger must never be nil")
	}
}

func TestToolContext_StateStagedOnActions(t *testing.T) {
	tc, _ := newTestTurnContext(context.Background(), make(chan Event, 1), make(chan struct{}, 1))
	tc.Conversation.SetState("shared", 1)

	toolCtx := NewToolContext(tc, "call-1")

	if v, ok := toolCtx.GetState("shared"); !ok || v.(int) != 1 {
		t.Fatalf("expected checkpoint visible through tool context: %v %v", v, ok)
	}

	toolCtx.SetState("shared", 2)
	if v, _ := toolCtx.GetState("shared"); v.(int) != 2 {
		t.Fatalf("staged value should shadow checkpoint: %v", v)
	}

	actions := toolCtx.Actions()
	if actions.StateDelta["shared"] != 2 {
		t.Fatalf("mutation not staged on actions: %+v", actions)
	}

	// Staging is call-local until the result event is appended.
	if v, _ := tc.Conversation.GetState("shared"); v.(int) != 1 {
		t.Fatalf("tool staging leaked into checkpoint: %v", v)
	}
}

func TestToolContext_KnowledgeScopedToConversation(t *testing.T) {
	ks := &stubKnowledgeStore{snippets: []Snippet{{ID: "s1", Content: "go is fun", Score: 0.9}}}
	store := &stubConversationStore{conv: NewConversation("conv-1")}
	conv, _ := store.Get("conv-1")
	tc := NewTurnContext(context.Background(), "conv-1", "turn-1", NewUserContent("hi"), 8,
		make(chan Event, 1), make(chan struct{}, 1), conv, store, nil, ks, nil)

	toolCtx := NewToolContext(tc, "call-1")
	snippets, err := toolCtx.SearchKnowledge("fun", 4)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if ks.lastConversationID != "conv-1" {
		t.Fatalf("search not scoped to owning conversation: %q", ks.lastConversationID)
	}
	if ks.lastQuery != "fun" || len(snippets) != 1 {
		t.Fatalf("unexpected search behavior: %q %d", ks.lastQuery, len(snippets))
	}
}
