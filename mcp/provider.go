package mcp

import (
	"context"
	"fmt"

	"convo/core"
	"convo/tool"
)

// caller is the slice of Client the adapter needs, extracted so tests can
// substitute a fake server.
type caller interface {
	Name() string
	Initialized() bool
	ListTools(ctx context.Context) ([]ToolSchema, error)
	CallTool(ctx context.Context, name string, arguments map[string]any) (*ToolCallResult, error)
}

// Provider exposes an MCP server's tools to the tool registry. Discovery is
// soft: if the server is down or the handshake failed, Discover reports the
// error and the registry continues without the server's tools.
type Provider struct {
	client caller
}

// NewProvider wraps a started client.
func NewProvider(client *Client) *Provider {
	return &Provider{client: client}
}

// Name implements tool.Provider.
func (p *Provider) Name() string { return p.client.Name() }

// Discover implements tool.Provider by listing the server's tools and
// wrapping each in a registry-compatible adapter.
func (p *Provider) Discover(ctx context.Context) ([]tool.Tool, error) {
	if !p.client.Initialized() {
		return nil, fmt.Errorf("mcp server %q unavailable", p.client.Name())
	}

	schemas, err := p.client.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	tools := make([]tool.Tool, 0, len(schemas))
	for _, schema := range schemas {
		tools = append(tools, &remoteTool{client: p.client, schema: schema})
	}

	return tools, nil
}

// remoteTool adapts one MCP tool schema to the Tool interface. Transport
// failures are reported as TOOL_UNAVAILABLE; a result the server itself
// flags as an error becomes EXECUTION_ERROR. Both reach the model as
// failure results rather than aborting the turn.
type remoteTool struct {
	client caller
	schema ToolSchema
}

func (t *remoteTool) Name() string { return t.schema.Name }

func (t *remoteTool) Description() string {
	if t.schema.Description != "" {
		return t.schema.Description
	}
	return fmt.Sprintf("Remote tool %q provided by MCP server %q.", t.schema.Name, t.client.Name())
}

func (t *remoteTool) Parameters() map[string]any {
	if t.schema.InputSchema != nil {
		return t.schema.InputSchema
	}
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (t *remoteTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	if !t.client.Initialized() {
		return nil, tool.NewToolError(t.schema.Name,
			fmt.Sprintf("mcp server %q is not available", t.client.Name()), tool.CodeToolUnavailable)
	}

	result, err := t.client.CallTool(toolCtx.Context(), t.schema.Name, args)
	if err != nil {
		return nil, tool.NewToolError(t.schema.Name, err.Error(), tool.CodeToolUnavailable)
	}
	if result.IsError {
		return nil, tool.NewToolError(t.schema.Name, result.Text(), tool.CodeExecutionError)
	}

	return result.Text(), nil
}
