// Package sampling implements the sampling bridge (spec §4.10):
// server-initiated sampling/createMessage calls to the client, correlated
// back through a pending-request map. Grounded on the approval-flow
// request/response correlation pattern in dominicnunez-codex-sdk-go's
// transport.go/dispatch.go, where the client SDK issues a server-bound
// request and blocks on a channel keyed by request id until the matching
// response arrives.
package sampling

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/brennhill/gasoline-mcp-core/internal/mcp"
)

// RequestSender is the narrow notify.Emitter capability the bridge needs:
// write one server-initiated request frame through the connection's
// single-writer path.
type RequestSender interface {
	SendRequest(req mcp.JSONRPCRequest) error
}

// pendingCall tracks one in-flight server-initiated request awaiting reply.
type pendingCall struct {
	resultCh chan mcp.JSONRPCResponse
}

// Bridge issues sampling/createMessage requests on one connection and
// correlates the client's replies, which the dispatcher routes in via
// Resolve (spec.md §4.6 step 3).
type Bridge struct {
	sender            RequestSender
	clientSupportsIt  bool

	mu      sync.Mutex
	pending map[string]*pendingCall
}

// New returns a sampling bridge for one connection. clientAdvertisedSampling
// must reflect whether the client declared the `sampling` capability at
// handshake; if false, CreateMessage fails fast with SamplingUnsupported
// (spec.md §4.10: "must be disabled... if the client did not advertise").
func New(sender RequestSender, clientAdvertisedSampling bool) *Bridge {
	return &Bridge{
		sender:           sender,
		clientSupportsIt: clientAdvertisedSampling,
		pending:          make(map[string]*pendingCall),
	}
}

// CreateMessage sends a sampling/createMessage request and blocks until the
// client replies or ctx is cancelled.
func (b *Bridge) CreateMessage(ctx context.Context, params mcp.MCPCreateMessageParams) (mcp.MCPCreateMessageResult, error) {
	if !b.clientSupportsIt {
		return mcp.MCPCreateMessageResult{}, mcp.NewDomainError(mcp.KindSamplingUnsupported, "client did not advertise sampling capability")
	}

	id := uuid.NewString()
	call := &pendingCall{resultCh: make(chan mcp.JSONRPCResponse, 1)}

	b.mu.Lock()
	b.pending[id] = call
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
	}()

	raw, err := json.Marshal(params)
	if err != nil {
		return mcp.MCPCreateMessageResult{}, fmt.Errorf("sampling: marshal params: %w", err)
	}
	req := mcp.JSONRPCRequest{JSONRPC: "2.0", ID: id, Method: "sampling/createMessage", Params: raw}
	if err := b.sender.SendRequest(req); err != nil {
		return mcp.MCPCreateMessageResult{}, fmt.Errorf("sampling: send request: %w", err)
	}

	select {
	case <-ctx.Done():
		return mcp.MCPCreateMessageResult{}, ctx.Err()
	case resp := <-call.resultCh:
		if resp.Error != nil {
			return mcp.MCPCreateMessageResult{}, fmt.Errorf("sampling: client returned error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		var result mcp.MCPCreateMessageResult
		if err := json.Unmarshal(resp.Result, &result); err != nil {
			return mcp.MCPCreateMessageResult{}, fmt.Errorf("sampling: unmarshal result: %w", err)
		}
		return result, nil
	}
}

// Resolve delivers a client response frame to the pending call matching its
// id. Returns false if no matching pending call exists (dispatcher should
// log and drop per spec.md §4.6 step 3).
func (b *Bridge) Resolve(resp mcp.JSONRPCResponse) bool {
	key := fmt.Sprintf("%v", resp.ID)
	b.mu.Lock()
	call, ok := b.pending[key]
	b.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case call.resultCh <- resp:
	default:
	}
	return true
}
