// Package knowledge implements ingestion and retrieval of conversation-scoped
// reference material: token-window chunking, embedding, and vector or keyword
// backed search. Every stored chunk is tagged with its conversation id so
// retrieval never crosses conversations.
package knowledge

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// ChunkerConfig holds chunking configuration.
type ChunkerConfig struct {
	ChunkSize    int // Tokens per chunk (default: 1000)
	ChunkOverlap int // Token overlap between consecutive chunks (default: 200)
}

// Chunk is one slice of a source document.
type Chunk struct {
	Text     string
	Index    int
	Metadata map[string]string
}

// Tokenizer abstracts the token codec so tests can substitute a local one.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

type tiktokenCodec struct {
	enc *tiktoken.Tiktoken
}

func (c tiktokenCodec) Encode(text string) []int   { return c.enc.Encode(text, nil, nil) }
func (c tiktokenCodec) Decode(tokens []int) string { return c.enc.Decode(tokens) }

// Chunker splits document text into overlapping token windows.
type Chunker struct {
	cfg   ChunkerConfig
	codec Tokenizer
}

// NewChunker creates a chunker backed by the cl100k_base encoding.
func NewChunker(cfg ChunkerConfig) (*Chunker, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("get encoding: %w", err)
	}
	return NewChunkerWithTokenizer(cfg, tiktokenCodec{enc: enc}), nil
}

// NewChunkerWithTokenizer creates a chunker with an explicit token codec.
func NewChunkerWithTokenizer(cfg ChunkerConfig, codec Tokenizer) *Chunker {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
	}
	if cfg.ChunkOverlap == 0 {
		cfg.ChunkOverlap = 200
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 2
	}
	return &Chunker{cfg: cfg, codec: codec}
}

// CountTokens returns the token count for text.
func (c *Chunker) CountTokens(text string) int {
	return len(c.codec.Encode(text))
}

// ChunkText splits text into overlapping windows of at most ChunkSize tokens,
// stepping ChunkSize-ChunkOverlap tokens per chunk. Metadata is copied onto
// every chunk; the chunk index is tracked separately so callers can make ids.
func (c *Chunker) ChunkText(text string, metadata map[string]string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	tokens := c.codec.Encode(text)
	if len(tokens) <= c.cfg.ChunkSize {
		return []Chunk{{Text: text, Index: 0, Metadata: cloneMetadata(metadata)}}
	}

	step := c.cfg.ChunkSize - c.cfg.ChunkOverlap
	var chunks []Chunk
	for start := 0; start < len(tokens); start += step {
		end := start + c.cfg.ChunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, Chunk{
			Text:     c.codec.Decode(tokens[start:end]),
			Index:    len(chunks),
			Metadata: cloneMetadata(metadata),
		})
		if end == len(tokens) {
			break
		}
	}
	return chunks
}

func cloneMetadata(md map[string]string) map[string]string {
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
