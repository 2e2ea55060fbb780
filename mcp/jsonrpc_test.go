package mcp

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestEncodeFrame_NewlineDelimited(t *testing.T) {
	frame, err := encodeFrame(newRequest("1", "tools/list", nil))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if !bytes.HasSuffix(frame, []byte("\n")) {
		t.Fatalf("frame missing newline delimiter: %q", frame)
	}

	var req Request
	if err := json.Unmarshal(frame, &req); err != nil {
		t.Fatalf("frame is not valid JSON: %v", err)
	}
	if req.JSONRPC != "2.0" || req.Method != "tools/list" || req.ID != "1" {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestNewNotification_HasNoID(t *testing.T) {
	n := newNotification("notifications/initialized", nil)
	if !n.IsNotification() {
		t.Fatal("notification should have no id")
	}

	frame, err := encodeFrame(n)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if bytes.Contains(frame, []byte(`"id"`)) {
		t.Fatalf("notification frame must omit id: %s", frame)
	}
}

func TestDecodeResponse(t *testing.T) {
	resp, err := decodeResponse([]byte(`{"jsonrpc":"2.0","id":"7","result":{"tools":[]}}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.ID != "7" || resp.IsError() {
		t.Fatalf("unexpected response: %+v", resp)
	}

	resp, err = decodeResponse([]byte(`{"jsonrpc":"2.0","id":"8","error":{"code":-32601,"message":"method not found"}}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !resp.IsError() || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected method-not-found error: %+v", resp)
	}
}

func TestDecodeResponse_Malformed(t *testing.T) {
	if _, err := decodeResponse([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}

	if _, err := decodeResponse([]byte(`{"jsonrpc":"1.0","id":"1"}`)); err == nil {
		t.Fatal("expected version error")
	}
}

func TestRequestIDs_Unique(t *testing.T) {
	var ids requestIDs
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := ids.next()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
