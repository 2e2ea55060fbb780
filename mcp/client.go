package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"convo/logging"
)

// protocolVersion is the MCP revision this client speaks.
const protocolVersion = "2024-11-05"

const (
	defaultCallTimeout = 30 * time.Second
	stopTimeout        = 5 * time.Second
)

// ServerInfo identifies the remote server, reported during initialize.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerCapabilities lists what the server supports. Only tools matter
// here; other capabilities are ignored.
type ServerCapabilities struct {
	Tools *struct {
		ListChanged bool `json:"listChanged,omitempty"`
	} `json:"tools,omitempty"`
}

type initializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
	Capabilities    ServerCapabilities `json:"capabilities"`
}

// ToolSchema is an MCP tool definition as reported by tools/list.
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ToolCallResult is the payload returned by tools/call.
type ToolCallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// ContentBlock is one piece of tool output.
type ContentBlock struct {
	Type     string `json:"type"` // "text", "image", "resource"
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// Text concatenates all text blocks of a result.
func (r *ToolCallResult) Text() string {
	var out string
	for _, block := range r.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out
}

// Client is an MCP client over stdio. One client owns one server
// subprocess; concurrent calls are multiplexed over the pipe and routed
// back by request id.
type Client struct {
	cfg     ServerConfig
	proc    *process
	ids     requestIDs
	logger  logging.Logger
	timeout time.Duration

	mu          sync.RWMutex
	pending     map[any]chan *Response
	initialized bool
	serverInfo  *ServerInfo
}

// NewClient creates a client for the given server configuration.
func NewClient(cfg ServerConfig, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Client{
		cfg:     cfg,
		proc:    newProcess(cfg, logger),
		logger:  logger,
		timeout: defaultCallTimeout,
		pending: map[any]chan *Response{},
	}
}

// Start launches the server process and performs the initialize handshake.
// On handshake failure the process is torn down again.
func (c *Client) Start(ctx context.Context) error {
	if err := c.proc.start(); err != nil {
		return err
	}

	go c.readLoop()

	if err := c.initialize(ctx); err != nil {
		_ = c.proc.stop(stopTimeout)
		return fmt.Errorf("mcp server %q: initialize: %w", c.cfg.Name, err)
	}

	return nil
}

// Stop shuts the server process down.
func (c *Client) Stop() error {
	return c.proc.stop(stopTimeout)
}

// Name returns the configured server name.
func (c *Client) Name() string { return c.cfg.Name }

// Initialized reports whether the handshake completed.
func (c *Client) Initialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}

func (c *Client) initialize(ctx context.Context) error {
	result, err := c.call(ctx, "initialize", map[string]any{
		"protocolVersion": protocolVersion,
		"clientInfo": map[string]any{
			"name":    "convo",
			"version": "1.0",
		},
	})
	if err != nil {
		return err
	}

	var init initializeResult
	if err := json.Unmarshal(result, &init); err != nil {
		return fmt.Errorf("parse initialize result: %w", err)
	}
	if init.ProtocolVersion != protocolVersion {
		c.logger.Warn("mcp.protocol.mismatch",
			"server", c.cfg.Name, "client", protocolVersion, "remote", init.ProtocolVersion)
	}

	c.mu.Lock()
	c.serverInfo = &init.ServerInfo
	c.initialized = true
	c.mu.Unlock()

	if err := c.notify("notifications/initialized", nil); err != nil {
		c.logger.Warn("mcp.initialized.notify_failed", "server", c.cfg.Name, "error", err.Error())
	}

	c.logger.Info("mcp.initialized", "server", c.cfg.Name,
		"remote_name", init.ServerInfo.Name, "remote_version", init.ServerInfo.Version)

	return nil
}

// ListTools fetches the server's current tool definitions.
func (c *Client) ListTools(ctx context.Context) ([]ToolSchema, error) {
	if !c.Initialized() {
		return nil, fmt.Errorf("mcp server %q: not initialized", c.cfg.Name)
	}

	result, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, fmt.Errorf("tools/list: %w", err)
	}

	var listed struct {
		Tools []ToolSchema `json:"tools"`
	}
	if err := json.Unmarshal(result, &listed); err != nil {
		return nil, fmt.Errorf("parse tools/list result: %w", err)
	}

	return listed.Tools, nil
}

// CallTool invokes a server tool by name.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (*ToolCallResult, error) {
	if !c.Initialized() {
		return nil, fmt.Errorf("mcp server %q: not initialized", c.cfg.Name)
	}

	result, err := c.call(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": arguments,
	})
	if err != nil {
		return nil, fmt.Errorf("tools/call %q: %w", name, err)
	}

	var callResult ToolCallResult
	if err := json.Unmarshal(result, &callResult); err != nil {
		return nil, fmt.Errorf("parse tools/call result: %w", err)
	}

	return &callResult, nil
}

// call sends a request frame and waits for its matching response.
func (c *Client) call(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	id := c.ids.next()

	frame, err := encodeFrame(newRequest(id, method, params))
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}

	respCh := make(chan *Response, 1)
	c.mu.Lock()
	c.pending[id] = respCh
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.proc.write(frame); err != nil {
		return nil, err
	}

	select {
	case resp := <-respCh:
		if resp.IsError() {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(c.timeout):
		return nil, fmt.Errorf("%s timed out after %s", method, c.timeout)
	}
}

func (c *Client) notify(method string, params map[string]any) error {
	frame, err := encodeFrame(newNotification(method, params))
	if err != nil {
		return err
	}
	return c.proc.write(frame)
}

// readLoop reads newline-delimited frames off stdout and routes them to the
// pending caller matching the response id.
func (c *Client) readLoop() {
	scanner := bufio.NewScanner(c.proc.stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		resp, err := decodeResponse(scanner.Bytes())
		if err != nil {
			c.logger.Warn("mcp.frame.dropped", "server", c.cfg.Name, "error", err.Error())
			continue
		}

		c.mu.RLock()
		ch, ok := c.pending[resp.ID]
		c.mu.RUnlock()
		if !ok {
			// Unsolicited frames (e.g. server notifications) are ignored.
			c.logger.Debug("mcp.frame.unmatched", "server", c.cfg.Name, "id", resp.ID)
			continue
		}

		select {
		case ch <- resp:
		default:
		}
	}

	if err := scanner.Err(); err != nil {
		c.logger.Warn("mcp.read_loop.error", "server", c.cfg.Name, "error", err.Error())
	}
}
