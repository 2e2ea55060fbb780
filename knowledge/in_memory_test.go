package knowledge

import (
	"context"
	"testing"

	"convo/core"
)

var _ core.KnowledgeStore = (*InMemoryStore)(nil)

func TestInMemoryStore_ScopedSearch(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	_ = s.Store(ctx, "conv-a", "the quarterly revenue grew by ten percent", map[string]string{"filename": "report.pdf"})
	_ = s.Store(ctx, "conv-b", "revenue numbers for a different customer", nil)

	results, err := s.Search(ctx, "conv-a", "revenue", 4)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Metadata["filename"] != "report.pdf" {
		t.Fatalf("metadata lost: %v", results[0].Metadata)
	}

	// The other conversation's material must never leak in.
	results, _ = s.Search(ctx, "conv-c", "revenue", 4)
	if len(results) != 0 {
		t.Fatalf("unscoped leak: %d results", len(results))
	}
}

func TestInMemoryStore_RankingAndLimit(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	_ = s.Store(ctx, "conv-1", "alpha beta gamma", nil)
	_ = s.Store(ctx, "conv-1", "alpha only here", nil)
	_ = s.Store(ctx, "conv-1", "nothing relevant", nil)
	_ = s.Store(ctx, "conv-1", "alpha beta together", nil)

	results, err := s.Search(ctx, "conv-1", "alpha beta", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("limit not applied: %d results", len(results))
	}
	// Both returned chunks contain both terms; the single-term chunk lost.
	for _, r := range results {
		if r.Score != 1.0 {
			t.Fatalf("expected full-match score 1.0, got %v for %q", r.Score, r.Content)
		}
	}
}

func TestInMemoryStore_CaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	_ = s.Store(ctx, "conv-1", "The Annual Report", nil)

	results, _ := s.Search(ctx, "conv-1", "annual report", 4)
	if len(results) != 1 {
		t.Fatalf("case-insensitive match failed: %d results", len(results))
	}
}

func TestInMemoryStore_EmptyQuery(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	_ = s.Store(ctx, "conv-1", "content", nil)

	results, err := s.Search(ctx, "conv-1", "   ", 4)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("blank query matched %d chunks", len(results))
	}
}

func TestInMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	_ = s.Store(ctx, "conv-1", "to be removed", nil)
	_ = s.Store(ctx, "conv-2", "to be kept", nil)

	if err := s.Delete(ctx, "conv-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := s.Count("conv-1"); got != 0 {
		t.Fatalf("conv-1 still holds %d chunks", got)
	}
	if got := s.Count("conv-2"); got != 1 {
		t.Fatalf("conv-2 lost its chunk: %d", got)
	}
}
