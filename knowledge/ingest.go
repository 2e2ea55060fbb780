package knowledge

import (
	"context"
	"fmt"
	"strconv"

	"convo/core"
	"convo/logging"
)

// Ingestor turns an uploaded document into retrievable knowledge: the raw
// bytes land in the DocumentStore, the chunked text in the KnowledgeStore,
// both keyed by the conversation that uploaded it.
type Ingestor struct {
	chunker   *Chunker
	documents core.DocumentStore
	knowledge core.KnowledgeStore
	logger    logging.Logger
}

// NewIngestor wires a chunker to the two stores. documents may be nil when
// raw retention is not needed.
func NewIngestor(chunker *Chunker, documents core.DocumentStore, knowledge core.KnowledgeStore, logger logging.Logger) *Ingestor {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Ingestor{chunker: chunker, documents: documents, knowledge: knowledge, logger: logger}
}

// Ingest stores the document and indexes its chunks under conversationID.
// It returns the number of chunks indexed.
func (i *Ingestor) Ingest(ctx context.Context, conversationID, filename string, data []byte) (int, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("document %q is empty", filename)
	}

	if i.documents != nil {
		if err := i.documents.Save(conversationID, filename, data); err != nil {
			return 0, fmt.Errorf("save document %q: %w", filename, err)
		}
	}

	chunks := i.chunker.ChunkText(string(data), map[string]string{"filename": filename})
	for _, chunk := range chunks {
		md := chunk.Metadata
		md["chunk"] = strconv.Itoa(chunk.Index)
		if err := i.knowledge.Store(ctx, conversationID, chunk.Text, md); err != nil {
			return 0, fmt.Errorf("index chunk %d of %q: %w", chunk.Index, filename, err)
		}
	}

	i.logger.Info("knowledge.ingest.complete",
		"conversation_id", conversationID,
		"filename", filename,
		"bytes", len(data),
		"chunks", len(chunks),
	)
	return len(chunks), nil
}
