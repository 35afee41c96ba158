package mcp

import (
	"encoding/json"
	"testing"
)

func TestJSONRPCRequestHasID(t *testing.T) {
	var req JSONRPCRequest
	if err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":42,"method":"ping"}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !req.HasID() {
		t.Fatal("expected HasID true")
	}
	if req.IsNotification() {
		t.Fatal("expected IsNotification false")
	}
}

func TestJSONRPCRequestNoID(t *testing.T) {
	var req JSONRPCRequest
	if err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","method":"notifications/cancelled"}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.HasID() {
		t.Fatal("expected HasID false")
	}
	if !req.IsNotification() {
		t.Fatal("expected IsNotification true")
	}
}

func TestJSONRPCRequestExplicitNullID(t *testing.T) {
	var req JSONRPCRequest
	if err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":null,"method":"ping"}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !req.HasInvalidID() {
		t.Fatal("expected HasInvalidID true for explicit null id")
	}
}

func TestJSONRPCRequestInvalidIDType(t *testing.T) {
	var req JSONRPCRequest
	if err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":true,"method":"ping"}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !req.HasInvalidID() {
		t.Fatal("expected HasInvalidID true for boolean id")
	}
}

func TestJSONRPCErrorCarriesData(t *testing.T) {
	derr := NewDomainError(KindToolNotFound, "no such tool: frobnicate")
	jerr := derr.ToJSONRPCError()
	if jerr.Code != CodeInternalError {
		t.Fatalf("code = %d, want %d", jerr.Code, CodeInternalError)
	}
	var data ErrorData
	if err := json.Unmarshal(jerr.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data.Kind != KindToolNotFound {
		t.Fatalf("kind = %q, want %q", data.Kind, KindToolNotFound)
	}
}
