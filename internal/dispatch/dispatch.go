// Package dispatch implements the request dispatcher (spec §4.6): it
// demultiplexes inbound frames onto the handler set, enforces the
// connection-state and duplicate-id invariants, owns the per-request
// cancellation handle lifecycle, and correlates server-initiated
// request/response pairs (sampling) back to their waiting caller. Grounded
// on the teacher's mcpMethodHandlers dispatch table in
// cmd/dev-console/handler.go (method name -> handler function map, nil
// return for notifications) generalized to a Handler interface per method
// and combined with the pending/handling split used by
// golang.org/x/tools/internal/jsonrpc2's Conn (in-flight request ids
// tracked so a duplicate is rejected rather than silently overwritten).
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/brennhill/gasoline-mcp-core/internal/cancel"
	"github.com/brennhill/gasoline-mcp-core/internal/connection"
	"github.com/brennhill/gasoline-mcp-core/internal/logging"
	"github.com/brennhill/gasoline-mcp-core/internal/mcp"
	"github.com/brennhill/gasoline-mcp-core/internal/registry"
)

// Handler executes one method's business logic and returns its result
// payload (already marshalable) or an error. Cancellation is observed via
// ctx, which is derived from the request's cancellation handle.
type Handler func(ctx context.Context, conn *connection.Connection, req mcp.JSONRPCRequest) (any, error)

// ResponseRouter resolves a server-initiated request (e.g. sampling) when a
// client reply frame with a matching id arrives. Returns false if no
// pending call matches.
type ResponseRouter interface {
	Resolve(resp mcp.JSONRPCResponse) bool
}

// Dispatcher demultiplexes decoded frames for one connection onto handlers.
type Dispatcher struct {
	registry *registry.Registry
	cancels  *cancel.Registry
	log      logging.Logger

	handlersMu sync.RWMutex
	handlers   map[string]Handler

	responseRouter ResponseRouter

	inflightMu sync.Mutex
	inflight   map[string]struct{} // keyString(conn.ID(), req.ID) for requests currently being handled
}

// New returns a dispatcher bound to reg and cancels. responseRouter may be
// nil if the composition root doesn't wire server-initiated requests
// (sampling) on this connection.
func New(reg *registry.Registry, cancels *cancel.Registry, log logging.Logger, responseRouter ResponseRouter) *Dispatcher {
	if log == nil {
		log = logging.Default()
	}
	return &Dispatcher{
		registry:       reg,
		cancels:        cancels,
		log:            log,
		handlers:       make(map[string]Handler),
		responseRouter: responseRouter,
		inflight:       make(map[string]struct{}),
	}
}

// Register binds a Handler to a method name. Call during composition root
// wiring, before any frame is dispatched.
func (d *Dispatcher) Register(method string, h Handler) {
	d.handlersMu.Lock()
	d.handlers[method] = h
	d.handlersMu.Unlock()
}

func inflightKey(connID string, id any) string {
	return fmt.Sprintf("%s#%v", connID, id)
}

// missingRequiredParams reports which of required's names are absent from
// params' top-level JSON object (spec §7: a request missing a required
// param must fail with -32602, not fall through to a zero-value field).
func missingRequiredParams(params json.RawMessage, required []string) []string {
	if len(required) == 0 {
		return nil
	}
	var present map[string]json.RawMessage
	if len(params) > 0 {
		_ = json.Unmarshal(params, &present)
	}
	var missing []string
	for _, name := range required {
		if _, ok := present[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// DispatchFrame routes one decoded frame. For a Request it returns the
// response frame to write (never nil). For a Notification it returns nil,
// nil on success (spec.md: "the server must never emit a response frame for
// a notification"). For a Response/Error frame (a reply to a
// server-initiated request) it is routed through responseRouter and nil,
// nil is returned either way.
func (d *Dispatcher) DispatchFrame(ctx context.Context, conn *connection.Connection, frame mcp.Frame) (*mcp.JSONRPCResponse, error) {
	switch frame.Kind {
	case mcp.FrameResponse:
		d.handleReplyFrame(frame)
		return nil, nil
	case mcp.FrameNotification:
		d.handleNotification(ctx, conn, *frame.Request)
		return nil, nil
	case mcp.FrameRequest:
		resp := d.handleRequest(ctx, conn, *frame.Request)
		return &resp, nil
	default:
		return nil, fmt.Errorf("dispatch: unrecognized frame kind %v", frame.Kind)
	}
}

func (d *Dispatcher) handleReplyFrame(frame mcp.Frame) {
	if d.responseRouter == nil {
		d.log.Warn("dispatch: dropped unroutable reply frame, no response router wired")
		return
	}
	resp := mcp.JSONRPCResponse{ID: frame.Response.ID, Result: frame.Response.Result, Error: frame.Response.Error}
	if !d.responseRouter.Resolve(resp) {
		d.log.Warn("dispatch: reply frame matched no pending server-initiated request", "id", resp.ID)
	}
}

// handleNotification runs a notification's handler (if one is registered)
// fire-and-forget; cancel is special-cased since it acts on the
// cancellation registry rather than a domain handler.
func (d *Dispatcher) handleNotification(ctx context.Context, conn *connection.Connection, req mcp.JSONRPCRequest) {
	conn.TouchActivity(time.Now())

	if req.Method == "cancel" {
		d.handleCancelNotification(conn, req)
		return
	}

	spec, ok := d.registry.Lookup(req.Method)
	if !ok {
		d.log.Warn("dispatch: unrecognized notification", "method", req.Method)
		return
	}
	if spec.RequiresReady && conn.State() != connection.Ready {
		d.log.Warn("dispatch: notification dropped, connection not ready", "method", req.Method)
		return
	}

	d.handlersMu.RLock()
	h, ok := d.handlers[req.Method]
	d.handlersMu.RUnlock()
	if !ok {
		return
	}
	if _, err := h(ctx, conn, req); err != nil {
		d.log.Warn("dispatch: notification handler returned error", "method", req.Method, "err", err)
	}
}

type cancelParams struct {
	RequestID any    `json:"requestId"`
	Reason    string `json:"reason"`
}

func (d *Dispatcher) handleCancelNotification(conn *connection.Connection, req mcp.JSONRPCRequest) {
	var p cancelParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		d.log.Warn("dispatch: malformed cancel notification", "err", err)
		return
	}
	key := cancel.Key{ConnID: conn.ID(), ReqID: p.RequestID}
	if !d.cancels.Cancel(key, p.Reason) {
		d.log.Debug("dispatch: cancel targeted an id with no in-flight request", "requestId", p.RequestID)
	}
}

// handleRequest runs the full request path: state/duplicate checks,
// cancellation handle lifetime, handler dispatch, and error mapping.
func (d *Dispatcher) handleRequest(ctx context.Context, conn *connection.Connection, req mcp.JSONRPCRequest) mcp.JSONRPCResponse {
	conn.TouchActivity(time.Now())

	if req.HasInvalidID() {
		return errorResponse(req.ID, mcp.CodeInvalidRequest, "invalid request id")
	}

	spec, known := d.registry.Lookup(req.Method)
	if !known {
		return errorResponse(req.ID, mcp.CodeMethodNotFound, "method not found: "+req.Method)
	}

	// I1/P1: every method but initialize/ping/cancel requires Ready; spec §4.3
	// reserves -32600 for the already-initialized case below and -32002 for
	// any other request arriving before the handshake completes.
	if spec.RequiresReady && conn.State() != connection.Ready {
		return errorResponse(req.ID, mcp.CodeServerNotInitialized, "server not initialized: "+req.Method)
	}

	if req.Method == "initialize" {
		if !conn.TryBeginInitialize() {
			return errorResponse(req.ID, mcp.CodeInvalidRequest, "initialize already called on this connection")
		}
	}

	if missing := missingRequiredParams(req.Params, spec.RequiredParams); len(missing) > 0 {
		return errorResponse(req.ID, mcp.CodeInvalidParams, fmt.Sprintf("missing required param(s) for %s: %s", req.Method, strings.Join(missing, ", ")))
	}

	key := inflightKey(conn.ID(), req.ID)
	d.inflightMu.Lock()
	if _, dup := d.inflight[key]; dup {
		d.inflightMu.Unlock()
		return errorResponse(req.ID, mcp.CodeInvalidRequest, "duplicate request id already in flight")
	}
	d.inflight[key] = struct{}{}
	d.inflightMu.Unlock()
	defer func() {
		d.inflightMu.Lock()
		delete(d.inflight, key)
		d.inflightMu.Unlock()
	}()

	handle := d.cancels.Register(ctx, cancel.Key{ConnID: conn.ID(), ReqID: req.ID})
	defer d.cancels.Unregister(cancel.Key{ConnID: conn.ID(), ReqID: req.ID})

	d.handlersMu.RLock()
	h, ok := d.handlers[req.Method]
	d.handlersMu.RUnlock()
	if !ok {
		return errorResponse(req.ID, mcp.CodeMethodNotFound, "no handler registered for "+req.Method)
	}

	handlerCtx := handle.Context()
	if spec.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		handlerCtx, cancelTimeout = context.WithTimeout(handlerCtx, spec.Timeout)
		defer cancelTimeout()
	}

	result, err := d.runHandler(handlerCtx, conn, req, h)
	if err != nil {
		if handle.Cancelled() {
			return errorResponse(req.ID, mcp.CodeCancelled, mcp.NewCancelledError(req.ID).Message)
		}
		if errors.Is(handlerCtx.Err(), context.DeadlineExceeded) {
			timeoutErr := &mcp.ProtocolError{
				Code:    mcp.CodeCancelled,
				Message: fmt.Sprintf("request %s timed out after %s", req.Method, spec.Timeout),
				Data:    &mcp.ErrorData{Kind: mcp.KindTimeout},
			}
			return mcp.JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Error: timeoutErr.ToJSONRPCError()}
		}
		return toErrorResponse(req.ID, err)
	}

	raw, merr := json.Marshal(result)
	if merr != nil {
		return errorResponse(req.ID, mcp.CodeInternalError, "failed to marshal result: "+merr.Error())
	}
	return mcp.JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: raw}
}

// runHandler invokes h, recovering a panic as an internal error so one
// misbehaving handler cannot take the whole connection's read loop down.
func (d *Dispatcher) runHandler(ctx context.Context, conn *connection.Connection, req mcp.JSONRPCRequest, h Handler) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("dispatch: handler panicked", "method", req.Method, "recovered", r)
			err = fmt.Errorf("internal error handling %s", req.Method)
		}
	}()
	return h(ctx, conn, req)
}

func toErrorResponse(id any, err error) mcp.JSONRPCResponse {
	var pe *mcp.ProtocolError
	if asProtocolError(err, &pe) {
		return mcp.JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: pe.ToJSONRPCError()}
	}
	return errorResponse(id, mcp.CodeInternalError, err.Error())
}

func asProtocolError(err error, target **mcp.ProtocolError) bool {
	pe, ok := err.(*mcp.ProtocolError)
	if ok {
		*target = pe
	}
	return ok
}

func errorResponse(id any, code int, message string) mcp.JSONRPCResponse {
	return mcp.JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &mcp.JSONRPCError{Code: code, Message: message},
	}
}
