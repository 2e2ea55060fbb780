package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"convo/core"
)

// Interface compliance (compile-time assertion)
var _ core.ConversationStore = (*InMemoryStore)(nil)

func TestInMemoryStore_LazyCreateAndSnapshot(t *testing.T) {
	s := NewInMemoryStore()

	conv, err := s.Get("conv-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if conv.ID != "conv-1" {
		t.Fatalf("expected id conv-1, got %s", conv.ID)
	}

	if err := s.AppendEvent("conv-1", core.NewUserMessageEvent("turn-1", "hello")); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}

	// The earlier snapshot must not observe the append.
	if got := len(conv.GetEvents()); got != 0 {
		t.Fatalf("snapshot grew to %d events", got)
	}

	fresh, _ := s.Get("conv-1")
	if got := len(fresh.GetEvents()); got != 1 {
		t.Fatalf("expected 1 event, got %d", got)
	}
}

func TestInMemoryStore_IsolationBetweenConversations(t *testing.T) {
	s := NewInMemoryStore()
	_ = s.AppendEvent("conv-a", core.NewUserMessageEvent("turn-1", "for a"))
	_ = s.ApplyDelta("conv-a", map[string]any{"owner": "a"})

	convB, _ := s.Get("conv-b")
	if got := len(convB.GetEvents()); got != 0 {
		t.Fatalf("conv-b sees %d foreign events", got)
	}
	if _, ok := convB.GetState("owner"); ok {
		t.Fatal("conv-b sees foreign state")
	}
}

func TestInMemoryStore_RejectsOrphanToolResult(t *testing.T) {
	s := NewInMemoryStore()
	_ = s.AppendEvent("conv-1", core.NewUserMessageEvent("turn-1", "hi"))

	orphan := core.NewToolResultEvent("turn-1", "chat", "call-x", "calculator", "4", nil)
	err := s.AppendEvent("conv-1", orphan)
	if !errors.Is(err, core.ErrOrphanToolResult) {
		t.Fatalf("expected ErrOrphanToolResult, got %v", err)
	}

	conv, _ := s.Get("conv-1")
	if got := len(conv.GetEvents()); got != 1 {
		t.Fatalf("rejected event was persisted, history len %d", got)
	}
}

func TestInMemoryStore_ApplyDelta(t *testing.T) {
	s := NewInMemoryStore()
	_ = s.ApplyDelta("conv-1", map[string]any{"count": 1, "name": "first"})
	_ = s.ApplyDelta("conv-1", map[string]any{"count": 2})

	conv, _ := s.Get("conv-1")
	if v, _ := conv.GetState("count"); v != 2 {
		t.Fatalf("expected count 2, got %v", v)
	}
	if v, _ := conv.GetState("name"); v != "first" {
		t.Fatalf("expected name first, got %v", v)
	}
}

func TestInMemoryStore_DeleteAndList(t *testing.T) {
	s := NewInMemoryStore()
	_ = s.AppendEvent("conv-1", core.NewUserMessageEvent("turn-1", "hi"))
	_ = s.AppendEvent("conv-2", core.NewUserMessageEvent("turn-1", "hi"))

	if got := len(s.List()); got != 2 {
		t.Fatalf("expected 2 conversations, got %d", got)
	}

	if err := s.Delete("conv-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := s.List(); len(got) != 1 || got[0] != "conv-2" {
		t.Fatalf("unexpected list after delete: %v", got)
	}

	// A deleted conversation comes back empty.
	conv, _ := s.Get("conv-1")
	if got := len(conv.GetEvents()); got != 0 {
		t.Fatalf("deleted conversation retained %d events", got)
	}
}

func TestInMemoryStore_ConcurrentAppends(t *testing.T) {
	s := NewInMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = s.AppendEvent("conv-1", core.NewUserMessageEvent(fmt.Sprintf("turn-%d", n), "msg"))
		}(i)
	}
	wg.Wait()

	conv, _ := s.Get("conv-1")
	if got := len(conv.GetEvents()); got != 20 {
		t.Fatalf("expected 20 events, got %d", got)
	}
}

func TestInMemoryStore_ConcurrentAppendsAcrossConversations(t *testing.T) {
	s := NewInMemoryStore()
	const conversations = 8
	const perConversation = 25

	var wg sync.WaitGroup
	for c := 0; c < conversations; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			id := fmt.Sprintf("conv-%d", c)
			for n := 0; n < perConversation; n++ {
				if err := s.AppendEvent(id, core.NewUserMessageEvent(fmt.Sprintf("turn-%d", n), "msg")); err != nil {
					t.Errorf("append to %s: %v", id, err)
					return
				}
				// Concurrent reads must not observe another id's events.
				conv, _ := s.Get(id)
				if conv.ID != id {
					t.Errorf("got conversation %s, want %s", conv.ID, id)
					return
				}
			}
		}(c)
	}
	wg.Wait()

	for c := 0; c < conversations; c++ {
		conv, _ := s.Get(fmt.Sprintf("conv-%d", c))
		if got := len(conv.GetEvents()); got != perConversation {
			t.Fatalf("conv-%d has %d events, want %d", c, got, perConversation)
		}
	}
}
