package openai

import (
	"fmt"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convo/core"
	"convo/model"
)

func toolCallIDs(content core.Content) []string {
	var ids []string
	for _, part := range content.Parts {
		if tc, ok := part.(core.ToolCallPart); ok {
			ids = append(ids, tc.ToolCall.ID)
		}
	}
	return ids
}

func TestEmitFinal_ToolCallsInDeltaIndexOrder(t *testing.T) {
	m := &Model{}
	want := []string{"call-0", "call-1", "call-2", "call-3"}

	// Map iteration order is randomized, so repeat to catch a shuffle.
	for run := 0; run < 25; run++ {
		pending := map[int64]*pendingCall{}
		for i := int64(0); i < 4; i++ {
			pending[i] = &pendingCall{
				id:   fmt.Sprintf("call-%d", i),
				name: "calculator",
				args: `{"first_num":1}`,
			}
		}

		out := make(chan model.Response, 1)
		m.emitFinal(openai.ChatCompletionChunkChoice{FinishReason: "tool_calls"}, &strings.Builder{}, pending, out)

		resp := <-out
		require.Equal(t, want, toolCallIDs(resp.Content), "run %d", run)
	}
}

func TestEmitFinal_TextPrecedesToolCalls(t *testing.T) {
	m := &Model{}
	var text strings.Builder
	text.WriteString("thinking")
	pending := map[int64]*pendingCall{
		0: {id: "call-0", name: "web_search", args: `{"query":"go"}`},
	}

	out := make(chan model.Response, 1)
	m.emitFinal(openai.ChatCompletionChunkChoice{FinishReason: "tool_calls"}, &text, pending, out)

	resp := <-out
	require.Len(t, resp.Content.Parts, 2)
	assert.Equal(t, "thinking", resp.Content.Text())
	assert.Equal(t, []string{"call-0"}, toolCallIDs(resp.Content))
	assert.Equal(t, "tool_calls", resp.FinishReason)
}
