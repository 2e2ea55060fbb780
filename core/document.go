package core

// DocumentStore persists raw uploaded files keyed by conversation id and
// document id (usually the filename). It retains the original bytes so a
// conversation's source material can be re-chunked or audited later; derived
// chunks live in the KnowledgeStore.
type DocumentStore interface {
	Save(conversationID, docID string, data []byte) error
	Get(conversationID, docID string) ([]byte, error)
	List(conversationID string) ([]string, error)
	Delete(conversationID, docID string) error
}
