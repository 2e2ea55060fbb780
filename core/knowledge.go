package core

import "context"

// Snippet represents a retrieved piece of ingested document content with a
// relevance score and arbitrary metadata (filename, chunk index, ...).
type Snippet struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]string
}

// KnowledgeStore defines persistence + retrieval for ingested reference
// material. Every stored chunk is tagged with the conversation id it was
// ingested under; Search must filter on that tag so one conversation never
// observes another's material. Implementations can back search with
// embeddings, keywords or any heuristic.
type KnowledgeStore interface {
	// Store appends one content chunk under the conversation id.
	Store(ctx context.Context, conversationID, content string, metadata map[string]string) error
	// Search returns up to limit snippets relevant to query, restricted to
	// chunks ingested under conversationID. An empty slice means nothing
	// matched; that is not an error.
	Search(ctx context.Context, conversationID, query string, limit int) ([]Snippet, error)
	// Delete removes all chunks ingested under the conversation id.
	Delete(ctx context.Context, conversationID string) error
}
