// Package connection models one client session: its state machine
// (spec §3, §4.3), negotiated version, capabilities, and metadata.
package connection

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brennhill/gasoline-mcp-core/internal/mcp"
)

// State is a connection's lifecycle stage. Transitions are monotone through
// the ordered sequence below (spec.md invariant I2).
type State int

const (
	Connecting State = iota
	Connected
	Ready
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Ready:
		return "Ready"
	case Closing:
		return "Closing"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// rank gives each state its position in the monotone ordering.
func (s State) rank() int { return int(s) }

// Transport is the byte-framing collaborator a Connection exclusively owns.
// Out of scope per spec.md §1; consumed here only as an interface.
type Transport interface {
	Send(frame []byte) error
	Close() error
}

// Sender is the narrow slice of Transport the notification emitter needs.
type Sender interface {
	Send(frame []byte) error
}

// Connection is one client session over a single Transport.
type Connection struct {
	mu sync.RWMutex

	id        string
	state     State
	transport Transport

	negotiatedVersion string
	clientCapability  mcp.MCPCapabilities
	metadata          map[string]any

	connectedAt    time.Time
	lastActivityAt time.Time

	initializeCalled bool
}

// New allocates a Connection with a fresh id, in state Connecting.
func New(transport Transport) *Connection {
	return &Connection{
		id:        uuid.NewString(),
		state:     Connecting,
		transport: transport,
		metadata:  make(map[string]any),
	}
}

// ID returns the connection's opaque, immutable identity.
func (c *Connection) ID() string { return c.id }

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Transport returns the owned transport handle.
func (c *Connection) Transport() Transport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.transport
}

// Accept transitions Connecting → Connected and stamps timestamps.
func (c *Connection) Accept(now time.Time) error {
	return c.transition(Connected, func() {
		c.connectedAt = now
		c.lastActivityAt = now
	})
}

// MarkReady transitions Connected → Ready and stores the negotiated version
// and the client's declared capabilities. The initialize handler calls it
// once version negotiation succeeds, before the initialize response is
// written; a failed write of that response does not undo the transition.
func (c *Connection) MarkReady(negotiatedVersion string, caps mcp.MCPCapabilities) error {
	return c.transition(Ready, func() {
		c.negotiatedVersion = negotiatedVersion
		c.clientCapability = caps
	})
}

// MarkClosing transitions toward Closing (from Ready or any non-terminal
// state), stopping new dispatch acceptance.
func (c *Connection) MarkClosing() error {
	return c.transition(Closing, func() {})
}

// MarkClosed transitions to the terminal Closed state. Valid from any state,
// matching spec.md's "any → transport failure → Closed" row.
func (c *Connection) MarkClosed() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Closed {
		return nil
	}
	c.state = Closed
	return nil
}

// transition enforces I2 (monotone ordering) except for the always-legal
// move to Closed, which MarkClosed handles directly.
func (c *Connection) transition(to State, apply func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if to.rank() < c.state.rank() {
		return fmt.Errorf("connection %s: illegal transition %s -> %s", c.id, c.state, to)
	}
	apply()
	c.state = to
	return nil
}

// NegotiatedVersion returns the version fixed at handshake, or "" before Ready.
func (c *Connection) NegotiatedVersion() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.negotiatedVersion
}

// ClientCapabilities returns the capabilities the client declared at handshake.
func (c *Connection) ClientCapabilities() mcp.MCPCapabilities {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientCapability
}

// TouchActivity records traffic for idle-timeout bookkeeping (spec.md §4.12).
func (c *Connection) TouchActivity(now time.Time) {
	c.mu.Lock()
	c.lastActivityAt = now
	c.mu.Unlock()
}

// LastActivity returns the last-recorded traffic timestamp.
func (c *Connection) LastActivity() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastActivityAt
}

// ConnectedAt returns the timestamp Accept was called.
func (c *Connection) ConnectedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connectedAt
}

// SetMetadata stores a key/value pair on the connection's metadata map.
func (c *Connection) SetMetadata(key string, value any) {
	c.mu.Lock()
	c.metadata[key] = value
	c.mu.Unlock()
}

// Metadata retrieves a previously stored value.
func (c *Connection) Metadata(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.metadata[key]
	return v, ok
}

// TryBeginInitialize reports whether this call is the first and only
// initialize on the connection (spec.md invariant I1: "initialize may run
// exactly once per connection"). Subsequent calls return false.
func (c *Connection) TryBeginInitialize() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initializeCalled {
		return false
	}
	c.initializeCalled = true
	return true
}
