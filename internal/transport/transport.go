// Package transport defines the byte-framing collaborator (spec §6) the
// connection core consumes: one decoded message at a time in, one message
// to send out. Transport byte-level framing itself is out of scope for the
// core; this package supplies the interface plus a stdio reference
// implementation for the process entrypoint to use.
package transport

import "context"

// Transport delivers one decoded message at a time and accepts one message
// to send. Implementations (stdio, WebSocket, HTTP) live outside the core.
type Transport interface {
	// Receive blocks until the next frame arrives, the transport closes, or
	// ctx is cancelled. Returns io.EOF-wrapping error on clean close.
	Receive(ctx context.Context) ([]byte, error)
	// Send writes one complete frame. Implementations are not required to
	// be safe for concurrent use; the connection core serializes writes.
	Send(frame []byte) error
	// Close releases underlying resources. Idempotent.
	Close() error
}
