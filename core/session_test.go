package core

import (
	"errors"
	"testing"
)

func assistantCallEvent(turnID string, calls ...ToolCall) Event {
	e := NewEvent(turnID, "chat")
	parts := make([]Part, 0, len(calls))
	for _, c := range calls {
		parts = append(parts, ToolCallPart{ToolCall: c})
	}
	e.Content = &Content{Role: RoleAssistant, Parts: parts}
	return e
}

func TestConversation_StateOperations(t *testing.T) {
	c := NewConversation("conv-1")

	if _, ok := c.GetState("missing"); ok {
		t.Fatal("expected missing key to report absent")
	}

	c.SetState("counter", 1)
	if v, ok := c.GetState("counter"); !ok || v.(int) != 1 {
		t.Fatalf("SetState/GetState round trip failed: %v %v", v, ok)
	}

	c.MergeState(map[string]any{"counter": 2, "name": "alice"})
	if v, _ := c.GetState("counter"); v.(int) != 2 {
		t.Fatalf("MergeState did not overwrite: %v", v)
	}
	if v, _ := c.GetState("name"); v.(string) != "alice" {
		t.Fatalf("MergeState did not add: %v", v)
	}
}

func TestConversation_AddEventPairing(t *testing.T) {
	c := NewConversation("conv-1")

	if err := c.AddEvent(NewUserMessageEvent("t1", "what is 2+2?")); err != nil {
		t.Fatalf("user event refused: %v", err)
	}

	// Result with no preceding call must be refused.
	orphan := NewToolResultEvent("t1", "chat", "call-x", "calculator", 4, nil)
	if err := c.AddEvent(orphan); !errors.Is(err, ErrOrphanToolResult) {
		t.Fatalf("expected ErrOrphanToolResult, got %v", err)
	}

	if err := c.AddEvent(assistantCallEvent("t1",
		ToolCall{ID: "call-1", Name: "calculator", Arguments: `{"op":"add","a":2,"b":2}`},
	)); err != nil {
		t.Fatalf("assistant call event refused: %v", err)
	}

	if err := c.AddEvent(NewToolResultEvent("t1", "chat", "call-1", "calculator", 4, nil)); err != nil {
		t.Fatalf("matching result refused: %v", err)
	}

	// Same call id cannot be answered twice.
	dup := NewToolResultEvent("t1", "chat", "call-1", "calculator", 4, nil)
	if err := c.AddEvent(dup); !errors.Is(err, ErrOrphanToolResult) {
		t.Fatalf("expected duplicate result to be refused, got %v", err)
	}

	if len(c.GetEvents()) != 3 {
		t.Fatalf("expected 3 accepted events, got %d", len(c.GetEvents()))
	}
}

func TestConversation_PendingToolCalls(t *testing.T) {
	c := NewConversation("conv-1")

	if pending := c.PendingToolCalls(); len(pending) != 0 {
		t.Fatalf("empty conversation should have no pending calls: %+v", pending)
	}

	_ = c.AddEvent(NewUserMessageEvent("t1", "hi"))
	_ = c.AddEvent(assistantCallEvent("t1",
		ToolCall{ID: "c1", Name: "calculator"},
		ToolCall{ID: "c2", Name: "web_search"},
	))

	pending := c.PendingToolCalls()
	if len(pending) != 2 || pending[0].ID != "c1" || pending[1].ID != "c2" {
		t.Fatalf("expected both calls pending in order: %+v", pending)
	}

	_ = c.AddEvent(NewToolResultEvent("t1", "chat", "c1", "calculator", 1, nil))
	pending = c.PendingToolCalls()
	if len(pending) != 1 || pending[0].ID != "c2" {
		t.Fatalf("expected only c2 pending: %+v", pending)
	}

	_ = c.AddEvent(NewToolResultEvent("t1", "chat", "c2", "web_search", "ok", nil))
	if pending = c.PendingToolCalls(); len(pending) != 0 {
		t.Fatalf("expected no pending calls after all answered: %+v", pending)
	}

	// A later plain assistant message closes the window entirely.
	_ = c.AddEvent(NewAssistantMessageEvent("t1", "chat", "the answer is 4"))
	if pending = c.PendingToolCalls(); len(pending) != 0 {
		t.Fatalf("final answer should leave nothing pending: %+v", pending)
	}
}

func TestConversation_HistoryFiltersPartials(t *testing.T) {
	c := NewConversation("conv-1")
	_ = c.AddEvent(NewUserMessageEvent("t1", "hello"))

	partial := true
	frag := NewAssistantMessageEvent("t1", "chat", "hel")
	frag.Partial = &partial
	_ = c.AddEvent(frag)

	_ = c.AddEvent(NewAssistantMessageEvent("t1", "chat", "hello there"))

	control := NewEvent("t1", "runner")
	_ = c.AddEvent(control)

	h := c.History()
	if len(h) != 2 {
		t.Fatalf("expected 2 history events, got %d", len(h))
	}
	if h[1].Content.Text() != "hello there" {
		t.Fatalf("unexpected history tail: %q", h[1].Content.Text())
	}
}

func TestConversation_CloneIsIndependent(t *testing.T) {
	c := NewConversation("conv-1")
	c.SetState("k", "v")
	_ = c.AddEvent(NewUserMessageEvent("t1", "hi"))

	clone := c.Clone()
	clone.SetState("k", "changed")
	_ = clone.AddEvent(NewAssistantMessageEvent("t1", "chat", "hello"))

	if v, _ := c.GetState("k"); v.(string) != "v" {
		t.Fatalf("clone mutation leaked into original state: %v", v)
	}
	if len(c.GetEvents()) != 1 {
		t.Fatalf("clone append leaked into original events: %d", len(c.GetEvents()))
	}
}
