package model

import (
	"context"
	"fmt"

	"convo/core"
)

// ToolDefinition declaratively exposes a callable tool to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual tool surface: name, human
// description and a JSON Schema object for its arguments.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request is the normalized provider-agnostic model input assembled by the
// turn state machine: system instructions, conversational contents and the
// tool surface.
type Request struct {
	Instructions string           `json:"instructions"`
	Contents     []core.Content   `json:"contents"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// TokenUsage captures token accounting for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is one (partial or final) chunk emitted by a model. A final
// response may carry tool calls in its Content parts.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls"
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info describes a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock"
	SupportsTools bool   `json:"supports_tools"`
}

// Model abstracts a reasoning backend. Generate returns a response channel
// and an error channel; both are closed when generation finishes. A value on
// the error channel is fatal for the request.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	Info() Info
}

// MockModel is a scriptable in-memory Model for tests. Besides canned text
// completions it supports scripted turns: a queue of full responses (which
// may contain tool calls) consumed one per Generate call.
type MockModel struct {
	info      Info
	responses map[string]string
	script    []Response
	calls     int
	err       error
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      "mock",
			SupportsTools: true,
		},
		responses: map[string]string{},
	}
}

// AddResponse registers a canned completion keyed on the latest user text.
func (m *MockModel) AddResponse(prompt, response string) { m.responses[prompt] = response }

// Script appends responses consumed in order, one per Generate call. Scripted
// responses take precedence over canned completions.
func (m *MockModel) Script(responses ...Response) { m.script = append(m.script, responses...) }

// ScriptToolCall appends a scripted response requesting a single tool call.
func (m *MockModel) ScriptToolCall(callID, name, arguments string) {
	m.Script(Response{
		Content: core.Content{
			Role:  core.RoleAssistant,
			Parts: []core.Part{core.ToolCallPart{ToolCall: core.ToolCall{ID: callID, Name: name, Arguments: arguments}}},
		},
		FinishReason: "tool_calls",
	})
}

// ScriptText appends a scripted final text response.
func (m *MockModel) ScriptText(text string) {
	m.Script(Response{
		Content: core.Content{
			Role:  core.RoleAssistant,
			Parts: []core.Part{core.TextPart{Text: text}},
		},
		FinishReason: "stop",
	})
}

// FailWith makes every subsequent Generate call report err.
func (m *MockModel) FailWith(err error) { m.err = err }

// Calls returns how many times Generate has been invoked.
func (m *MockModel) Calls() int { return m.calls }

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	m.calls++
	scripted := Response{}
	hasScripted := false
	if len(m.script) > 0 {
		scripted, m.script = m.script[0], m.script[1:]
		hasScripted = true
	}

	go func() {
		defer close(respCh)
		defer close(errCh)

		if m.err != nil {
			errCh <- m.err
			return
		}

		if hasScripted {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
			case respCh <- scripted:
			}
			return
		}

		if len(req.Contents) == 0 {
			errCh <- fmt.Errorf("no contents provided")
			return
		}

		last := req.Contents[len(req.Contents)-1]
		full := m.responses[last.Text()]
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", last.Text())
		}

		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{
					Partial: true,
					Content: core.Content{
						Role:  core.RoleAssistant,
						Parts: []core.Part{core.TextPart{Text: string(r)}},
					},
				}:
				}
			}
		}

		respCh <- Response{
			Content: core.Content{
				Role:  core.RoleAssistant,
				Parts: []core.Part{core.TextPart{Text: full}},
			},
			FinishReason: "stop",
		}
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
