// wire.go — wire codec: decodes a transport-delivered frame into one of
// {Request, Notification, Response, Error}, per spec §4.1.
package mcp

import (
	"encoding/json"
	"fmt"
)

// FrameKind classifies a decoded JSON-RPC frame.
type FrameKind int

const (
	// FrameRequest is a Request with a non-null id expecting a response.
	FrameRequest FrameKind = iota
	// FrameNotification is a Request with no id.
	FrameNotification
	// FrameResponse is a reply to a server-initiated request (sampling bridge).
	FrameResponse
)

// Frame is the decoded, classified form of one transport frame.
type Frame struct {
	Kind     FrameKind
	Request  *JSONRPCRequest  // set when Kind is FrameRequest or FrameNotification
	Response *JSONRPCResponse // set when Kind is FrameResponse
}

// topLevelFields enumerates the only field names the wire codec accepts at
// the top level of a frame. Anything else is an unknown field and rejected.
var topLevelFields = map[string]bool{
	"jsonrpc": true,
	"id":      true,
	"method":  true,
	"params":  true,
	"result":  true,
	"error":   true,
}

// DecodeFrame parses one raw transport frame and classifies its shape.
//
// Batch arrays are not part of this protocol and are rejected with -32600,
// per spec §4.1. Unknown top-level fields are rejected the same way.
func DecodeFrame(raw []byte) (Frame, error) {
	trimmed := jsonTrimLeadingSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return Frame{}, &ProtocolError{Code: CodeInvalidRequest, Message: "batch requests are not supported"}
	}

	var object map[string]json.RawMessage
	if err := json.Unmarshal(raw, &object); err != nil {
		return Frame{}, &ProtocolError{Code: CodeParseError, Message: "parse error: " + err.Error()}
	}
	for k := range object {
		if !topLevelFields[k] {
			return Frame{}, &ProtocolError{Code: CodeInvalidRequest, Message: "unknown field: " + k}
		}
	}

	_, hasMethod := object["method"]
	_, hasResult := object["result"]
	_, hasError := object["error"]

	switch {
	case hasMethod:
		var req JSONRPCRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return Frame{}, &ProtocolError{Code: CodeParseError, Message: "parse error: " + err.Error()}
		}
		if req.Method == "" {
			return Frame{}, &ProtocolError{Code: CodeInvalidRequest, Message: "method must not be empty"}
		}
		if req.HasInvalidID() {
			return Frame{}, &ProtocolError{Code: CodeInvalidRequest, Message: "id must be a string or number"}
		}
		if req.IsNotification() {
			return Frame{Kind: FrameNotification, Request: &req}, nil
		}
		return Frame{Kind: FrameRequest, Request: &req}, nil

	case hasResult || hasError:
		var resp JSONRPCResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return Frame{}, &ProtocolError{Code: CodeParseError, Message: "parse error: " + err.Error()}
		}
		if hasResult && hasError {
			return Frame{}, &ProtocolError{Code: CodeInvalidRequest, Message: "response must not carry both result and error"}
		}
		return Frame{Kind: FrameResponse, Response: &resp}, nil

	default:
		return Frame{}, &ProtocolError{Code: CodeInvalidRequest, Message: "frame is neither a request nor a response"}
	}
}

// EncodeResponse serializes a response frame for transport delivery.
func EncodeResponse(resp JSONRPCResponse) ([]byte, error) {
	resp.JSONRPC = "2.0"
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return data, nil
}

// EncodeRequest serializes an outbound (server-initiated) request frame.
func EncodeRequest(req JSONRPCRequest) ([]byte, error) {
	req.JSONRPC = "2.0"
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return data, nil
}

func jsonTrimLeadingSpace(b []byte) []byte {
	i := 0
	for i < len(b) {
		switch b[i] {
		case ' ', '\t', '\n', '\r':
			i++
			continue
		}
		break
	}
	return b[i:]
}
