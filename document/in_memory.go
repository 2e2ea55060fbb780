// Package document provides storage backends for raw uploaded files.
package document

import (
	"errors"
	"sort"
	"sync"
)

// ErrNotFound indicates the requested document does not exist for the
// conversation.
var ErrNotFound = errors.New("document not found")

// InMemoryStore is a process-local DocumentStore keeping raw uploads in a
// nested map guarded by an RWMutex. Bytes are copied on save and retrieval so
// callers cannot mutate internal buffers.
//
// Layout: conversationID -> docID -> raw bytes
//
// It enforces no retention limits or size quotas; for durable deployments
// back it with object storage instead.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string][]byte
}

// NewInMemoryStore returns an empty in-memory document store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{docs: make(map[string]map[string][]byte)}
}

// Save stores (or overwrites) the document bytes for the conversation and id.
func (s *InMemoryStore) Save(conversationID, docID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[conversationID]; !ok {
		s.docs[conversationID] = make(map[string][]byte)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.docs[conversationID][docID] = cp
	return nil
}

// Get returns a copy of the stored bytes or ErrNotFound.
func (s *InMemoryStore) Get(conversationID, docID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.docs[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	data, ok := m[docID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// List returns the sorted document ids stored for the conversation.
func (s *InMemoryStore) List(conversationID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.docs[conversationID]
	if !ok {
		return []string{}, nil
	}
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes the document if present or returns ErrNotFound.
func (s *InMemoryStore) Delete(conversationID, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.docs[conversationID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := m[docID]; !ok {
		return ErrNotFound
	}
	delete(m, docID)
	return nil
}
