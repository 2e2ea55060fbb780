package document

import (
	"errors"
	"testing"

	"convo/core"
)

// Interface compliance (compile-time assertion)
var _ core.DocumentStore = (*InMemoryStore)(nil)

func TestInMemoryStore_SaveGetIsolation(t *testing.T) {
	s := NewInMemoryStore()
	data := []byte("hello")
	if err := s.Save("conv-1", "notes.txt", data); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Mutating the input after save must not affect the stored copy.
	data[0] = 'H'
	out, err := s.Get("conv-1", "notes.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(out) != "hello" {
		t.Fatalf("expected 'hello', got %q", string(out))
	}

	// Mutating the returned slice must not affect the stored copy either.
	out[0] = 'x'
	out2, _ := s.Get("conv-1", "notes.txt")
	if string(out2) != "hello" {
		t.Fatalf("expected isolation, got %q", string(out2))
	}
}

func TestInMemoryStore_NotFound(t *testing.T) {
	s := NewInMemoryStore()
	if _, err := s.Get("conv-1", "missing.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Delete("conv-1", "missing.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInMemoryStore_ListSortedAndScoped(t *testing.T) {
	s := NewInMemoryStore()
	_ = s.Save("conv-1", "b.pdf", []byte("2"))
	_ = s.Save("conv-1", "a.pdf", []byte("1"))
	_ = s.Save("conv-2", "other.pdf", []byte("3"))

	ids, err := s.List("conv-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a.pdf" || ids[1] != "b.pdf" {
		t.Fatalf("unexpected ids: %v", ids)
	}

	empty, _ := s.List("conv-3")
	if len(empty) != 0 {
		t.Fatalf("expected empty list, got %v", empty)
	}
}

func TestInMemoryStore_Delete(t *testing.T) {
	s := NewInMemoryStore()
	_ = s.Save("conv-1", "a.pdf", []byte("1"))

	if err := s.Delete("conv-1", "a.pdf"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get("conv-1", "a.pdf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestInMemoryStore_Overwrite(t *testing.T) {
	s := NewInMemoryStore()
	_ = s.Save("conv-1", "a.pdf", []byte("v1"))
	_ = s.Save("conv-1", "a.pdf", []byte("v2"))

	out, err := s.Get("conv-1", "a.pdf")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(out) != "v2" {
		t.Fatalf("expected v2, got %q", string(out))
	}
}
