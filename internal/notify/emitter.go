// Package notify implements the notification emitter (spec §4.11): a
// per-connection single writer path, serialized so JSON-RPC frames never
// interleave on the wire, generalized from the teacher's per-response
// single-encoder discipline (one json.Encoder write at a time per
// connection) to a mutex-guarded connection writer used for every
// server-initiated frame (resource updates, log records, progress,
// sampling requests).
package notify

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/brennhill/gasoline-mcp-core/internal/mcp"
)

// Sender is the narrow transport-write capability the emitter serializes
// access to.
type Sender interface {
	Send(frame []byte) error
}

// Emitter serializes all server-initiated writes on one connection.
type Emitter struct {
	mu     sync.Mutex
	sender Sender

	onWriteFailure func(err error)
	levelGate      *mcp.LevelGate
}

// New returns an Emitter writing through sender. onWriteFailure, if
// non-nil, is invoked (outside the write lock) each time Send fails, so the
// caller can mark the connection Closing per spec.md §4.11.
func New(sender Sender, onWriteFailure func(err error)) *Emitter {
	return &Emitter{sender: sender, onWriteFailure: onWriteFailure}
}

// SetLevelGate wires the process-wide log-level gate maintained by
// logging/setLevel into this emitter. LogMessage drops anything below the
// gate's current minimum instead of sending it. Nil disables filtering.
func (e *Emitter) SetLevelGate(gate *mcp.LevelGate) {
	e.levelGate = gate
}

func (e *Emitter) send(frame []byte) error {
	e.mu.Lock()
	err := e.sender.Send(frame)
	e.mu.Unlock()
	if err != nil && e.onWriteFailure != nil {
		e.onWriteFailure(err)
	}
	return err
}

func (e *Emitter) notify(method string, params any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("notify: marshal %s params: %w", method, err)
	}
	req := mcp.JSONRPCRequest{JSONRPC: "2.0", Method: method, Params: raw}
	frame, err := mcp.EncodeRequest(req)
	if err != nil {
		return fmt.Errorf("notify: encode %s: %w", method, err)
	}
	return e.send(frame)
}

// ResourceUpdated sends notifications/resources/updated for uri.
func (e *Emitter) ResourceUpdated(uri string) error {
	return e.notify("notifications/resources/updated", mcp.MCPResourceUpdatedParams{URI: uri})
}

// LogMessage sends notifications/message carrying a log record, unless the
// process-wide level gate (set by logging/setLevel) suppresses it.
func (e *Emitter) LogMessage(level mcp.LogLevel, logger string, data any) error {
	if e.levelGate != nil && !e.levelGate.Allows(level) {
		return nil
	}
	return e.notify("notifications/message", mcp.MCPLogMessageParams{Level: level, Logger: logger, Data: data})
}

// ProgressParams carries a progress update for a long-running request.
type ProgressParams struct {
	ProgressToken any     `json:"progressToken"`
	Progress      float64 `json:"progress"`
	Total         float64 `json:"total,omitempty"`
}

// Progress sends notifications/progress.
func (e *Emitter) Progress(p ProgressParams) error {
	return e.notify("notifications/progress", p)
}

// SendRequest serializes an outbound server-initiated request (used by the
// sampling bridge) through the same single-writer path as notifications,
// preserving write linearization (spec.md property P9).
func (e *Emitter) SendRequest(req mcp.JSONRPCRequest) error {
	frame, err := mcp.EncodeRequest(req)
	if err != nil {
		return fmt.Errorf("notify: encode request: %w", err)
	}
	return e.send(frame)
}

// SendResponse writes a response frame through the single-writer path.
func (e *Emitter) SendResponse(resp mcp.JSONRPCResponse) error {
	frame, err := mcp.EncodeResponse(resp)
	if err != nil {
		return fmt.Errorf("notify: encode response: %w", err)
	}
	return e.send(frame)
}
