package mcp

import (
	"encoding/json"
	"testing"
)

func TestDecodeFrameRequest(t *testing.T) {
	frame, err := DecodeFrame([]byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.Kind != FrameRequest {
		t.Fatalf("kind = %v, want FrameRequest", frame.Kind)
	}
	if frame.Request.Method != "tools/list" {
		t.Fatalf("method = %q", frame.Request.Method)
	}
}

func TestDecodeFrameNotification(t *testing.T) {
	frame, err := DecodeFrame([]byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.Kind != FrameNotification {
		t.Fatalf("kind = %v, want FrameNotification", frame.Kind)
	}
	if !frame.Request.IsNotification() {
		t.Fatal("expected IsNotification true")
	}
}

func TestDecodeFrameResponse(t *testing.T) {
	frame, err := DecodeFrame([]byte(`{"jsonrpc":"2.0","id":7,"result":{"ok":true}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.Kind != FrameResponse {
		t.Fatalf("kind = %v, want FrameResponse", frame.Kind)
	}
}

func TestDecodeFrameRejectsBatch(t *testing.T) {
	_, err := DecodeFrame([]byte(`[{"jsonrpc":"2.0","id":1,"method":"ping"}]`))
	if err == nil {
		t.Fatal("expected error for batch array")
	}
	perr, ok := err.(*ProtocolError)
	if !ok {
		t.Fatalf("expected *ProtocolError, got %T", err)
	}
	if perr.Code != CodeInvalidRequest {
		t.Fatalf("code = %d, want %d", perr.Code, CodeInvalidRequest)
	}
}

func TestDecodeFrameRejectsBatchWithLeadingWhitespace(t *testing.T) {
	_, err := DecodeFrame([]byte("  \n[{\"jsonrpc\":\"2.0\"}]"))
	if err == nil {
		t.Fatal("expected error for whitespace-prefixed batch array")
	}
}

func TestDecodeFrameRejectsUnknownField(t *testing.T) {
	_, err := DecodeFrame([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping","bogus":true}`))
	if err == nil {
		t.Fatal("expected error for unknown top-level field")
	}
}

func TestDecodeFrameRejectsEmptyMethod(t *testing.T) {
	_, err := DecodeFrame([]byte(`{"jsonrpc":"2.0","id":1,"method":""}`))
	if err == nil {
		t.Fatal("expected error for empty method")
	}
}

func TestDecodeFrameRejectsInvalidID(t *testing.T) {
	_, err := DecodeFrame([]byte(`{"jsonrpc":"2.0","id":{"nested":true},"method":"ping"}`))
	if err == nil {
		t.Fatal("expected error for invalid id shape")
	}
}

func TestDecodeFrameRejectsResultAndError(t *testing.T) {
	_, err := DecodeFrame([]byte(`{"jsonrpc":"2.0","id":1,"result":{},"error":{"code":-32603,"message":"x"}}`))
	if err == nil {
		t.Fatal("expected error for response with both result and error")
	}
}

func TestEncodeResponseSetsVersion(t *testing.T) {
	data, err := EncodeResponse(JSONRPCResponse{ID: 1, Result: json.RawMessage(`{}`)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	frame, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("round trip decode failed: %v", err)
	}
	if frame.Response.JSONRPC != "2.0" {
		t.Fatalf("jsonrpc = %q, want 2.0", frame.Response.JSONRPC)
	}
}

func TestEncodeRequestSetsVersion(t *testing.T) {
	data, err := EncodeRequest(JSONRPCRequest{ID: float64(1), Method: "sampling/createMessage"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	frame, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("round trip decode failed: %v", err)
	}
	if frame.Request.JSONRPC != "2.0" {
		t.Fatalf("jsonrpc = %q, want 2.0", frame.Request.JSONRPC)
	}
}
