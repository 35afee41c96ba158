// Package cancel implements the cancellation registry (spec §4.5): a
// concurrent map from (connection id, request id) to a cancellation handle
// that a handler polls cooperatively.
package cancel

import (
	"context"
	"fmt"
	"sync"
)

// Key identifies one in-flight request.
type Key struct {
	ConnID string
	ReqID  any
}

func keyString(k Key) string {
	return fmt.Sprintf("%s#%v", k.ConnID, k.ReqID)
}

// Handle is what a handler observes to learn whether it has been asked to
// stop. It wraps a context so handlers that already take a context.Context
// compose naturally with ctx.Err()/errors.Is(ctx.Err(), context.Canceled).
type Handle struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
}

// Context returns the per-request context; cancelled when Cancel fires.
func (h *Handle) Context() context.Context { return h.ctx }

// Cancelled reports whether this handle's context has been cancelled.
func (h *Handle) Cancelled() bool {
	return h.ctx.Err() != nil
}

// ErrCancelled is the cause set on a handle's context when cancel() is
// invoked through the registry (as opposed to parent-context cancellation).
var ErrCancelled = fmt.Errorf("request cancelled")

// Registry maps in-flight request keys to their cancellation handle.
type Registry struct {
	mu      sync.Mutex
	handles map[string]*Handle
}

// New returns an empty cancellation registry.
func New() *Registry {
	return &Registry{handles: make(map[string]*Handle)}
}

// Register creates and stores a cancellation handle derived from parent,
// scoped to key. The caller must Unregister on every exit path (response
// emission or cancellation completion), per spec.md §3 "Request in flight".
func (r *Registry) Register(parent context.Context, key Key) *Handle {
	ctx, cancel := context.WithCancelCause(parent)
	h := &Handle{ctx: ctx, cancel: cancel}
	r.mu.Lock()
	r.handles[keyString(key)] = h
	r.mu.Unlock()
	return h
}

// Cancel signals the handle registered for key, if one exists. Returns true
// if a live record was found and signalled.
func (r *Registry) Cancel(key Key, reason string) bool {
	r.mu.Lock()
	h, ok := r.handles[keyString(key)]
	r.mu.Unlock()
	if !ok {
		return false
	}
	cause := ErrCancelled
	if reason != "" {
		cause = fmt.Errorf("%w: %s", ErrCancelled, reason)
	}
	h.cancel(cause)
	return true
}

// Unregister removes the record for key. After Unregister, subsequent Cancel
// calls for the same key return false, per spec.md §4.5.
func (r *Registry) Unregister(key Key) {
	r.mu.Lock()
	delete(r.handles, keyString(key))
	r.mu.Unlock()
}

// TokenFor returns the handle currently registered for key, if any.
func (r *Registry) TokenFor(key Key) (*Handle, bool) {
	r.mu.Lock()
	h, ok := r.handles[keyString(key)]
	r.mu.Unlock()
	return h, ok
}

// CancelAllForConnection cancels and removes every in-flight record whose
// key belongs to connID. Used on connection close (spec.md §3, §4.12).
func (r *Registry) CancelAllForConnection(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ks, h := range r.handles {
		prefix := connID + "#"
		if len(ks) >= len(prefix) && ks[:len(prefix)] == prefix {
			h.cancel(ErrCancelled)
			delete(r.handles, ks)
		}
	}
}
