package knowledge

import (
	"context"
	"strings"
	"testing"

	"convo/core"
)

// axisEmbedder maps texts onto fixed axes so similarity is fully
// deterministic without any embedding service.
type axisEmbedder struct{}

func axisVector(text string) []float32 {
	switch {
	case strings.Contains(text, "rocket"):
		return []float32{1, 0, 0}
	case strings.Contains(text, "garden"):
		return []float32{0.2, 1, 0}
	default:
		return []float32{0, 0, 1}
	}
}

func (axisEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return axisVector(text), nil
}

func (axisEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = axisVector(text)
	}
	return out, nil
}

func newTestChromemStore(t *testing.T) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore(VectorStoreConfig{}, axisEmbedder{})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	return store
}

func TestChromemStore_SearchScopedToConversation(t *testing.T) {
	var _ core.KnowledgeStore = (*ChromemStore)(nil)

	store := newTestChromemStore(t)
	ctx := context.Background()

	if err := store.Store(ctx, "conv-a", "the garden needs watering", map[string]string{"filename": "garden.txt"}); err != nil {
		t.Fatalf("store failed: %v", err)
	}
	if err := store.Store(ctx, "conv-a", "garden gnomes are decorative", nil); err != nil {
		t.Fatalf("store failed: %v", err)
	}
	if err := store.Store(ctx, "conv-b", "the rocket launch is tomorrow", nil); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	// The query embeds closest to conv-b's chunk; the filter must still
	// keep the results inside conv-a.
	snippets, err := store.Search(ctx, "conv-a", "rocket launch schedule", 2)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(snippets) == 0 {
		t.Fatal("expected conv-a snippets")
	}
	for _, s := range snippets {
		if strings.Contains(s.Content, "rocket") {
			t.Fatalf("conv-b content leaked into conv-a results: %q", s.Content)
		}
		if got := s.Metadata["conversation_id"]; got != "conv-a" {
			t.Fatalf("snippet tagged %q, want conv-a", got)
		}
	}
}

func TestChromemStore_SearchEmptyCollection(t *testing.T) {
	store := newTestChromemStore(t)

	snippets, err := store.Search(context.Background(), "conv-a", "anything", 4)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(snippets) != 0 {
		t.Fatalf("expected no snippets, got %d", len(snippets))
	}
}

func TestChromemStore_SearchKeepsMetadata(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	if err := store.Store(ctx, "conv-a", "the garden shed", map[string]string{"filename": "shed.txt", "chunk": "0"}); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	snippets, err := store.Search(ctx, "conv-a", "garden", 1)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(snippets) != 1 {
		t.Fatalf("expected one snippet, got %d", len(snippets))
	}
	if snippets[0].Metadata["filename"] != "shed.txt" || snippets[0].Metadata["chunk"] != "0" {
		t.Fatalf("ingest metadata lost: %+v", snippets[0].Metadata)
	}
	if snippets[0].Score <= 0 {
		t.Fatalf("expected a positive similarity, got %f", snippets[0].Score)
	}
}

func TestChromemStore_DeleteScopedToConversation(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	if err := store.Store(ctx, "conv-a", "garden chunk one", nil); err != nil {
		t.Fatalf("store failed: %v", err)
	}
	if err := store.Store(ctx, "conv-b", "rocket chunk", nil); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	if err := store.Delete(ctx, "conv-a"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if got := store.Count(); got != 1 {
		t.Fatalf("expected one surviving chunk, got %d", got)
	}

	snippets, err := store.Search(ctx, "conv-a", "garden", 1)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(snippets) != 0 {
		t.Fatalf("deleted conversation still returns chunks: %d", len(snippets))
	}

	snippets, err = store.Search(ctx, "conv-b", "rocket", 1)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(snippets) != 1 {
		t.Fatalf("conv-b chunks lost on conv-a delete: %d", len(snippets))
	}
}
