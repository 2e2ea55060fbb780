// Package mcp implements a minimal MCP (Model Context Protocol) client over
// stdio transport: JSON-RPC 2.0 framing, a managed server subprocess and an
// adapter that exposes discovered server tools to the registry.
package mcp

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
)

// jsonRPCVersion is the JSON-RPC version required by MCP.
const jsonRPCVersion = "2.0"

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Request is a JSON-RPC 2.0 request. A nil ID makes it a notification.
type Request struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      any            `json:"id,omitempty"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("jsonrpc error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// IsNotification reports whether the request expects no response.
func (r *Request) IsNotification() bool { return r.ID == nil }

// IsError reports whether the response carries an error object.
func (r *Response) IsError() bool { return r.Error != nil }

// newRequest builds a request with the protocol version filled in.
func newRequest(id any, method string, params map[string]any) *Request {
	return &Request{JSONRPC: jsonRPCVersion, ID: id, Method: method, Params: params}
}

// newNotification builds a notification (request without an id).
func newNotification(method string, params map[string]any) *Request {
	return &Request{JSONRPC: jsonRPCVersion, Method: method, Params: params}
}

// encodeFrame marshals a message and appends the newline delimiter used by
// the stdio transport.
func encodeFrame(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// decodeResponse parses one received line into a Response, rejecting frames
// with the wrong protocol version.
func decodeResponse(line []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, &RPCError{Code: CodeParseError, Message: "malformed response frame", Data: err.Error()}
	}
	if resp.JSONRPC != jsonRPCVersion {
		return nil, &RPCError{Code: CodeInvalidRequest, Message: fmt.Sprintf("unsupported jsonrpc version %q", resp.JSONRPC)}
	}
	return &resp, nil
}

// requestIDs issues monotonically increasing request ids.
type requestIDs struct {
	counter atomic.Int64
}

func (g *requestIDs) next() string {
	return fmt.Sprintf("%d", g.counter.Add(1))
}
