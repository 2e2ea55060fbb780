package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"convo/core"
)

type storedChunk struct {
	id       string
	content  string
	metadata map[string]string
}

// InMemoryStore is a process-local core.KnowledgeStore with keyword scoring.
// It keeps chunks per conversation in insertion order and ranks matches by
// how many query terms appear in the chunk. No embeddings, no persistence;
// use it for tests or when no embedding provider is configured.
type InMemoryStore struct {
	mu     sync.RWMutex
	chunks map[string][]storedChunk
}

// NewInMemoryStore creates an empty keyword-backed knowledge store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{chunks: make(map[string][]storedChunk)}
}

// Store implements core.KnowledgeStore.
func (s *InMemoryStore) Store(_ context.Context, conversationID, content string, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := fmt.Sprintf("%s-%d", conversationID, len(s.chunks[conversationID]))
	s.chunks[conversationID] = append(s.chunks[conversationID], storedChunk{
		id:       id,
		content:  content,
		metadata: cloneMetadata(metadata),
	})
	return nil
}

// Search implements core.KnowledgeStore. A chunk scores by the fraction of
// query terms it contains (case insensitive); zero-score chunks are omitted.
func (s *InMemoryStore) Search(_ context.Context, conversationID, query string, limit int) ([]core.Snippet, error) {
	if limit <= 0 {
		limit = 4
	}

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []core.Snippet
	for _, chunk := range s.chunks[conversationID] {
		haystack := strings.ToLower(chunk.content)
		hits := 0
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		matches = append(matches, core.Snippet{
			ID:       chunk.id,
			Content:  chunk.content,
			Score:    float64(hits) / float64(len(terms)),
			Metadata: cloneMetadata(chunk.metadata),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Delete implements core.KnowledgeStore.
func (s *InMemoryStore) Delete(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, conversationID)
	return nil
}

// Count returns the number of chunks stored under a conversation.
func (s *InMemoryStore) Count(conversationID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks[conversationID])
}
