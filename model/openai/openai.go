// Package openai implements model.Model on the OpenAI Chat Completions API,
// including streaming and tool calling. It translates the normalized
// Request/Response structures into the SDK's message format and back.
package openai

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/openai/openai-go"

	"convo/core"
	"convo/model"
)

// pendingCall aggregates tool call streaming deltas (id, name, argument
// fragments) so complete tool call parts can be reconstructed at finish.
type pendingCall struct{ id, name, args string }

// Options configure the adapter. Kept to the parameters the runtime
// actually tunes.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Model drives OpenAI chat completions behind the generic model.Model
// interface.
type Model struct {
	client *openai.Client
	opts   Options
}

// New creates an adapter using the default client (API key from env).
func New(optFns ...func(o *Options)) *Model {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates an adapter from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements model.Model for both streaming and non-streaming
// requests.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		results, order := collectToolResults(req)
		messages := buildMessages(req, results, order)
		params := m.buildParams(req, messages)

		if req.Stream {
			m.generateStreaming(ctx, params, out, errCh)
			return
		}
		m.generateOnce(ctx, params, out, errCh)
	}()

	return out, errCh
}

// collectToolResults indexes tool results by call id preserving first-seen
// order so they can be re-attached after their originating assistant message.
func collectToolResults(req model.Request) (map[string]string, []string) {
	results := map[string]string{}
	var order []string
	for _, c := range req.Contents {
		if c.Role != core.RoleTool {
			continue
		}
		for _, p := range c.Parts {
			tr, ok := p.(core.ToolResultPart)
			if !ok || tr.ToolResult.ID == "" {
				continue
			}
			if _, seen := results[tr.ToolResult.ID]; seen {
				continue
			}
			results[tr.ToolResult.ID] = renderResult(tr.ToolResult)
			order = append(order, tr.ToolResult.ID)
		}
	}
	return results, order
}

// renderResult flattens a tool result for the provider. Failures are
// surfaced as text so the model can react to them.
func renderResult(tr core.ToolResult) string {
	if tr.Error != "" {
		return fmt.Sprintf("error: %s", tr.Error)
	}
	if s, ok := tr.Response.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", tr.Response)
}

// buildMessages converts normalized contents into chat messages, pairing
// each assistant tool-call message with its tool result messages.
func buildMessages(
	req model.Request,
	results map[string]string,
	order []string,
) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion

	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}

	for _, c := range req.Contents {
		if c.Role == core.RoleTool {
			continue
		}

		text := c.Text()

		switch c.Role {
		case core.RoleSystem:
			messages = append(messages, openai.SystemMessage(text))
		case core.RoleUser:
			messages = append(messages, openai.UserMessage(text))
		case core.RoleAssistant:
			toolCalls, callIDs := extractToolCalls(c)
			if len(toolCalls) == 0 {
				messages = append(messages, openai.AssistantMessage(text))
				continue
			}
			messages = append(
				messages,
				openai.ChatCompletionMessageParamUnion{OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role:      "assistant",
					ToolCalls: toolCalls,
				}},
			)
			for _, id := range callIDs {
				if resp, ok := results[id]; ok {
					messages = append(messages, openai.ToolMessage(resp, id))
					delete(results, id)
				}
			}
		default:
			if text != "" {
				messages = append(messages, openai.UserMessage(text))
			}
		}
	}

	// Results whose call never appeared keep their original order at the end.
	for _, id := range order {
		if resp, ok := results[id]; ok {
			messages = append(messages, openai.ToolMessage(resp, id))
		}
	}

	return messages
}

func extractToolCalls(c core.Content) ([]openai.ChatCompletionMessageToolCallParam, []string) {
	var toolCalls []openai.ChatCompletionMessageToolCallParam
	var callIDs []string
	for _, p := range c.Parts {
		tc, ok := p.(core.ToolCallPart)
		if !ok {
			continue
		}
		toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
			ID:   tc.ToolCall.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.ToolCall.Name,
				Arguments: tc.ToolCall.Arguments,
			},
		})
		callIDs = append(callIDs, tc.ToolCall.ID)
	}
	return toolCalls, callIDs
}

func (m *Model) buildParams(
	req model.Request,
	messages []openai.ChatCompletionMessageParamUnion,
) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}
	if len(req.Tools) == 0 {
		return params
	}
	tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
	for i, tdef := range req.Tools {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tdef.Function.Name,
				Description: openai.String(tdef.Function.Description),
				Parameters:  tdef.Function.Parameters,
			},
		}
	}
	params.Tools = tools
	return params
}

func (m *Model) generateStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	var text strings.Builder
	pending := map[int64]*pendingCall{}

	for stream.Next() {
		chunk := stream.Current()
		for _, choice := range chunk.Choices {
			m.emitTextDelta(choice, &text, out)
			m.accumulateToolCalls(choice, pending)
			if choice.FinishReason != "" {
				m.emitFinal(choice, &text, pending, out)
			}
		}
	}
	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("openai stream: %w", err)
	}
}

func (m *Model) emitTextDelta(
	choice openai.ChatCompletionChunkChoice,
	text *strings.Builder,
	out chan<- model.Response,
) {
	if choice.Delta.Content == "" {
		return
	}
	text.WriteString(choice.Delta.Content)
	out <- model.Response{
		Partial: true,
		Content: core.Content{
			Role:  core.RoleAssistant,
			Parts: []core.Part{core.TextPart{Text: choice.Delta.Content}},
		},
	}
}

func (m *Model) accumulateToolCalls(choice openai.ChatCompletionChunkChoice, pending map[int64]*pendingCall) {
	for _, tc := range choice.Delta.ToolCalls {
		pc, ok := pending[tc.Index]
		if !ok {
			pc = &pendingCall{}
			pending[tc.Index] = pc
		}
		if tc.ID != "" {
			pc.id = tc.ID
		}
		if tc.Function.Name != "" {
			pc.name = tc.Function.Name
		}
		pc.args += tc.Function.Arguments
	}
}

func (m *Model) emitFinal(
	choice openai.ChatCompletionChunkChoice,
	text *strings.Builder,
	pending map[int64]*pendingCall,
	out chan<- model.Response,
) {
	parts := make([]core.Part, 0, len(pending)+1)
	if text.Len() > 0 {
		parts = append(parts, core.TextPart{Text: text.String()})
	}
	// Emit calls in delta-index order so downstream pairing sees the same
	// ordering the model produced.
	indices := make([]int64, 0, len(pending))
	for idx := range pending {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	for _, idx := range indices {
		pc := pending[idx]
		parts = append(parts, core.ToolCallPart{ToolCall: core.ToolCall{
			ID:        pc.id,
			Name:      pc.name,
			Arguments: pc.args,
		}})
	}
	out <- model.Response{
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: choice.FinishReason,
	}
}

func (m *Model) generateOnce(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		errCh <- fmt.Errorf("openai api: %w", err)
		return
	}
	if len(resp.Choices) == 0 {
		errCh <- fmt.Errorf("openai api: no choices returned")
		return
	}

	choice := resp.Choices[0]
	parts := make([]core.Part, 0, len(choice.Message.ToolCalls)+1)
	if choice.Message.Content != "" {
		parts = append(parts, core.TextPart{Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		parts = append(parts, core.ToolCallPart{ToolCall: core.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}})
	}

	out <- model.Response{
		ID:           resp.ID,
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: choice.FinishReason,
		Usage: &model.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
}

// Info returns metadata describing this adapter.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}
