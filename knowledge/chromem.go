package knowledge

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"convo/core"
)

// metadataConversationKey tags every stored chunk with its owning
// conversation; Search and Delete filter on it.
const metadataConversationKey = "conversation_id"

// VectorStoreConfig holds vector store configuration.
type VectorStoreConfig struct {
	// PersistPath enables gob persistence under this directory; empty keeps
	// everything in memory.
	PersistPath string
	// Collection names the chromem collection (default "knowledge").
	Collection string
}

// ChromemStore is a core.KnowledgeStore backed by chromem-go with embeddings
// from the configured Embedder.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewChromemStore creates a vector-backed knowledge store.
func NewChromemStore(cfg VectorStoreConfig, embedder Embedder) (*ChromemStore, error) {
	if cfg.Collection == "" {
		cfg.Collection = "knowledge"
	}

	var db *chromem.DB
	var err error
	if cfg.PersistPath != "" {
		db, err = chromem.NewPersistentDB(filepath.Join(cfg.PersistPath, "chromem.gob"), false)
		if err != nil {
			return nil, fmt.Errorf("create persistent DB: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	embeddingFunc := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}

	collection, err := db.GetOrCreateCollection(cfg.Collection, nil, embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemStore{db: db, collection: collection}, nil
}

// Store implements core.KnowledgeStore.
func (s *ChromemStore) Store(ctx context.Context, conversationID, content string, metadata map[string]string) error {
	md := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		md[k] = v
	}
	md[metadataConversationKey] = conversationID

	err := s.collection.AddDocument(ctx, chromem.Document{
		ID:       conversationID + "-" + uuid.NewString(),
		Content:  content,
		Metadata: md,
	})
	if err != nil {
		return fmt.Errorf("add chunk: %w", err)
	}
	return nil
}

// Search implements core.KnowledgeStore. Results are restricted to chunks
// stored under conversationID.
func (s *ChromemStore) Search(ctx context.Context, conversationID, query string, limit int) ([]core.Snippet, error) {
	if limit <= 0 {
		limit = 4
	}
	// chromem refuses nResults larger than the collection size.
	if count := s.collection.Count(); count == 0 {
		return nil, nil
	} else if limit > count {
		limit = count
	}

	where := map[string]string{metadataConversationKey: conversationID}
	results, err := s.collection.Query(ctx, query, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	snippets := make([]core.Snippet, 0, len(results))
	for _, r := range results {
		snippets = append(snippets, core.Snippet{
			ID:       r.ID,
			Content:  r.Content,
			Score:    float64(r.Similarity),
			Metadata: r.Metadata,
		})
	}
	return snippets, nil
}

// Delete implements core.KnowledgeStore, removing every chunk stored under
// the conversation id.
func (s *ChromemStore) Delete(ctx context.Context, conversationID string) error {
	where := map[string]string{metadataConversationKey: conversationID}
	if err := s.collection.Delete(ctx, where, nil); err != nil {
		return fmt.Errorf("delete conversation chunks: %w", err)
	}
	return nil
}

// Count returns the total number of stored chunks across conversations.
func (s *ChromemStore) Count() int { return s.collection.Count() }
