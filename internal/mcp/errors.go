// errors.go — JSON-RPC protocol errors and structured domain error codes.
// Defines the protocol-level error codes (§6), the ProtocolError type used
// throughout dispatch, and the Kind constants surfaced in ErrorData.
package mcp

import (
	"encoding/json"
	"fmt"
)

// JSON-RPC 2.0 reserved error codes, plus the MCP-specific codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// CodeServerNotInitialized is returned for any request besides initialize
	// and ping sent before the connection has completed the handshake (spec §4.3, P1).
	CodeServerNotInitialized = -32002

	// CodeCancelled is returned for a request whose cancellation token fired
	// before a result was produced. Not part of base JSON-RPC; reserved by MCP.
	CodeCancelled = -32800
)

// Domain error kinds carried in JSONRPCError.Data (ErrorData.Kind). These map
// to CodeInternalError at the wire level (spec §6); the kind lets a client
// distinguish cause without parsing the message string. Casing matches
// spec.md's own Scenario B fixture (error.data.kind = "ToolNotFound").
const (
	KindResourceNotFound    = "ResourceNotFound"
	KindToolNotFound        = "ToolNotFound"
	KindToolExecutionError  = "ToolExecutionError"
	KindPromptNotFound      = "PromptNotFound"
	KindUnsupportedVersion  = "UnsupportedVersion"
	KindSamplingUnsupported = "SamplingUnsupported"
	KindRootsUnsupported    = "RootsUnsupported"
	KindInvalidState        = "InvalidState"
	KindTimeout             = "Timeout"
)

// ProtocolError is a JSON-RPC 2.0 error returned at the transport/dispatch
// level. It satisfies the error interface so it can flow through ordinary Go
// error handling until the dispatcher turns it into a JSONRPCError on the
// wire.
type ProtocolError struct {
	Code    int
	Message string
	Data    *ErrorData
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("mcp: %s (code %d)", e.Message, e.Code)
}

// ToJSONRPCError converts a ProtocolError into the wire representation.
func (e *ProtocolError) ToJSONRPCError() *JSONRPCError {
	out := &JSONRPCError{Code: e.Code, Message: e.Message}
	if e.Data != nil {
		if raw, err := json.Marshal(e.Data); err == nil {
			out.Data = raw
		}
	}
	return out
}

// NewDomainError builds a ProtocolError carrying structured ErrorData, always
// surfaced to the client at CodeInternalError per spec §6: domain errors are
// not part of the JSON-RPC reserved range.
func NewDomainError(kind, detail string) *ProtocolError {
	return &ProtocolError{
		Code:    CodeInternalError,
		Message: kind,
		Data:    &ErrorData{Kind: kind, Detail: detail},
	}
}

// NewCancelledError builds the protocol error returned to a caller whose
// request was cancelled before completion.
func NewCancelledError(requestID any) *ProtocolError {
	return &ProtocolError{
		Code:    CodeCancelled,
		Message: "request cancelled",
		Data:    &ErrorData{Kind: "cancelled", Detail: fmt.Sprintf("id=%v", requestID)},
	}
}

// NewToolNotFoundError builds the ProtocolError for a tools/call naming a
// tool the provider doesn't recognize (spec §4.7, Scenario B): -32603 with
// the tool name carried in ErrorData.ToolName, not folded into Detail.
func NewToolNotFoundError(toolName string) *ProtocolError {
	return &ProtocolError{
		Code:    CodeInternalError,
		Message: fmt.Sprintf("tool not found: %s", toolName),
		Data:    &ErrorData{Kind: KindToolNotFound, ToolName: toolName},
	}
}

// NewToolExecutionError builds the ProtocolError for a tool that was found
// but failed while running, per spec §4.7: -32603 with the tool name
// carried in ErrorData.ToolName rather than conflated into Detail.
func NewToolExecutionError(toolName string, cause error) *ProtocolError {
	return &ProtocolError{
		Code:    CodeInternalError,
		Message: fmt.Sprintf("tool %q failed: %v", toolName, cause),
		Data:    &ErrorData{Kind: KindToolExecutionError, ToolName: toolName, Detail: cause.Error()},
	}
}
