package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convo/core"
	"convo/internal/testutil"
)

func TestRetrieval_ScopedToConversation(t *testing.T) {
	knowledge := testutil.NewKnowledgeStore(
		core.Snippet{ID: "s1", Content: "invoices are due in 30 days", Score: 0.92},
		core.Snippet{ID: "s2", Content: "late fees apply after 60 days", Score: 0.71},
	)
	toolCtx := testutil.NewToolContext(context.Background(), "conv-42", "call-1", knowledge)

	retrieval := NewRetrieval()
	result, err := retrieval.Call(toolCtx, map[string]any{"query": "payment terms"})
	require.NoError(t, err)

	// Scope comes from the tool context, not from model arguments.
	assert.Equal(t, "conv-42", knowledge.LastScope)
	assert.Equal(t, "payment terms", knowledge.LastQuery)

	payload := result.(map[string]any)
	passages := payload["context"].([]string)
	require.Len(t, passages, 2)
	assert.Equal(t, "invoices are due in 30 days", passages[0])
}

func TestRetrieval_NoMatches(t *testing.T) {
	toolCtx := testutil.NewToolContext(context.Background(), "conv-42", "call-1", testutil.NewKnowledgeStore())

	retrieval := NewRetrieval()
	result, err := retrieval.Call(toolCtx, map[string]any{"query": "anything"})
	require.NoError(t, err)

	payload := result.(map[string]any)
	assert.Equal(t, NoMatchMarker, payload["context"])
}

func TestRetrieval_EmptyQuery(t *testing.T) {
	toolCtx := testutil.NewToolContext(context.Background(), "conv-42", "call-1", testutil.NewKnowledgeStore())

	retrieval := NewRetrieval()
	_, err := retrieval.Call(toolCtx, map[string]any{"query": ""})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeInvalidArguments, toolErr.Code)
}
