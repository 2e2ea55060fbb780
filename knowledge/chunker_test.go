package knowledge

import (
	"strings"
	"testing"
)

// wordCodec is a deterministic whitespace tokenizer so chunker tests run
// without the real BPE tables.
type wordCodec struct {
	words map[int]string
	ids   map[string]int
}

func newWordCodec() *wordCodec {
	return &wordCodec{words: map[int]string{}, ids: map[string]int{}}
}

func (c *wordCodec) Encode(text string) []int {
	var tokens []int
	for _, w := range strings.Fields(text) {
		id, ok := c.ids[w]
		if !ok {
			id = len(c.ids)
			c.ids[w] = id
			c.words[id] = w
		}
		tokens = append(tokens, id)
	}
	return tokens
}

func (c *wordCodec) Decode(tokens []int) string {
	parts := make([]string, len(tokens))
	for i, id := range tokens {
		parts[i] = c.words[id]
	}
	return strings.Join(parts, " ")
}

func makeWords(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "w" + string(rune('a'+i%26)) + string(rune('a'+(i/26)%26)) + string(rune('a'+(i/676)%26))
	}
	return strings.Join(parts, " ")
}

func TestChunker_ShortTextSingleChunk(t *testing.T) {
	c := NewChunkerWithTokenizer(ChunkerConfig{ChunkSize: 10, ChunkOverlap: 2}, newWordCodec())

	chunks := c.ChunkText("just a few words", map[string]string{"filename": "a.txt"})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "just a few words" {
		t.Fatalf("short text must pass through unmodified, got %q", chunks[0].Text)
	}
	if chunks[0].Metadata["filename"] != "a.txt" {
		t.Fatal("metadata not preserved")
	}
}

func TestChunker_EmptyText(t *testing.T) {
	c := NewChunkerWithTokenizer(ChunkerConfig{}, newWordCodec())
	if chunks := c.ChunkText("   \n ", nil); chunks != nil {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}

func TestChunker_OverlappingWindows(t *testing.T) {
	codec := newWordCodec()
	c := NewChunkerWithTokenizer(ChunkerConfig{ChunkSize: 10, ChunkOverlap: 4}, codec)

	text := makeWords(25)
	chunks := c.ChunkText(text, nil)

	// Step is 6 tokens: windows [0,10) [6,16) [12,22) [18,25).
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.Index != i {
			t.Errorf("chunk %d has index %d", i, chunk.Index)
		}
		if n := len(codec.Encode(chunk.Text)); n > 10 {
			t.Errorf("chunk %d has %d tokens, cap is 10", i, n)
		}
	}

	// Consecutive chunks share the 4-token overlap.
	firstTokens := strings.Fields(chunks[0].Text)
	secondTokens := strings.Fields(chunks[1].Text)
	tail := strings.Join(firstTokens[len(firstTokens)-4:], " ")
	head := strings.Join(secondTokens[:4], " ")
	if tail != head {
		t.Fatalf("no overlap between chunks: tail %q, head %q", tail, head)
	}
}

func TestChunker_MetadataIsolatedPerChunk(t *testing.T) {
	c := NewChunkerWithTokenizer(ChunkerConfig{ChunkSize: 5, ChunkOverlap: 1}, newWordCodec())

	chunks := c.ChunkText(makeWords(12), map[string]string{"filename": "b.txt"})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	chunks[0].Metadata["filename"] = "mutated"
	if chunks[1].Metadata["filename"] != "b.txt" {
		t.Fatal("chunk metadata maps are shared")
	}
}

func TestChunker_DefaultsApplied(t *testing.T) {
	c := NewChunkerWithTokenizer(ChunkerConfig{}, newWordCodec())
	if c.cfg.ChunkSize != 1000 || c.cfg.ChunkOverlap != 200 {
		t.Fatalf("unexpected defaults: size %d overlap %d", c.cfg.ChunkSize, c.cfg.ChunkOverlap)
	}

	// Overlap >= size would never advance.
	c = NewChunkerWithTokenizer(ChunkerConfig{ChunkSize: 10, ChunkOverlap: 10}, newWordCodec())
	if c.cfg.ChunkOverlap >= c.cfg.ChunkSize {
		t.Fatalf("overlap %d not clamped below size %d", c.cfg.ChunkOverlap, c.cfg.ChunkSize)
	}
}

func TestChunker_CountTokens(t *testing.T) {
	c := NewChunkerWithTokenizer(ChunkerConfig{}, newWordCodec())
	if got := c.CountTokens("one two three"); got != 3 {
		t.Fatalf("expected 3 tokens, got %d", got)
	}
}
