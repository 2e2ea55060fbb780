package tool

import (
	"strings"

	"convo/core"
)

// NoMatchMarker is returned when retrieval finds nothing so the model gets
// an explicit signal instead of an empty payload.
const NoMatchMarker = "No document info found."

const defaultRetrievalLimit = 4

type retrievalArgs struct {
	Query string `json:"query" description:"What to look for in the uploaded documents"`
}

// NewRetrieval returns a tool that searches content indexed for the current
// conversation. The conversation scope comes from the ToolContext, never
// from the model's arguments, so one conversation can not read another's
// documents.
func NewRetrieval() *FunctionTool {
	return NewFunctionToolFromStruct(
		"retrieve_documents",
		"Search the documents uploaded to this conversation for relevant content.",
		retrievalArgs{},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			if strings.TrimSpace(query) == "" {
				return nil, NewToolError("retrieve_documents", "query must not be empty", CodeInvalidArguments)
			}

			snippets, err := toolCtx.SearchKnowledge(query, defaultRetrievalLimit)
			if err != nil {
				return nil, err
			}
			if len(snippets) == 0 {
				return map[string]any{"context": NoMatchMarker}, nil
			}

			passages := make([]string, len(snippets))
			for i, s := range snippets {
				passages[i] = s.Content
			}

			return map[string]any{"context": passages}, nil
		},
	)
}
