// Package connmgr implements the connection manager (spec §4.12): accepts
// transports, assigns ids, tracks per-connection state and idle time,
// idle-sweeps, and broadcasts. Grounded on the MCP Go SDK's
// StreamableHTTPHandler.sessions concurrent map (accept/lookup/closeAll)
// and the teacher's lifecycle health/readiness polling idiom, generalized
// from HTTP sessions to arbitrary Transport-backed connections.
package connmgr

import (
	"fmt"
	"sync"
	"time"

	"github.com/brennhill/gasoline-mcp-core/internal/cancel"
	"github.com/brennhill/gasoline-mcp-core/internal/connection"
	"github.com/brennhill/gasoline-mcp-core/internal/logging"
	"github.com/brennhill/gasoline-mcp-core/internal/subscribe"
)

// ErrAtCapacity is returned by Accept when MaxConnections is already reached.
var ErrAtCapacity = fmt.Errorf("connmgr: at capacity")

// Hooks lets the composition root observe connection lifecycle events
// without the manager depending on the dispatcher or server packages.
type Hooks struct {
	OnEstablished func(conn *connection.Connection)
	OnClosed      func(conn *connection.Connection, reason string)
}

// Manager owns the set of live connections for the process.
type Manager struct {
	mu             sync.RWMutex
	conns          map[string]*connection.Connection
	maxConnections int

	cancels      *cancel.Registry
	subscriptions *subscribe.Manager
	log          logging.Logger
	hooks        Hooks
}

// New returns an empty connection manager bounded to maxConnections.
func New(maxConnections int, cancels *cancel.Registry, subs *subscribe.Manager, log logging.Logger, hooks Hooks) *Manager {
	if log == nil {
		log = logging.Default()
	}
	return &Manager{
		conns:          make(map[string]*connection.Connection),
		maxConnections: maxConnections,
		cancels:        cancels,
		subscriptions:  subs,
		log:            log,
		hooks:          hooks,
	}
}

// Accept registers a newly accepted transport as a Connection, rejecting it
// immediately with ErrAtCapacity past MaxConnections.
func (m *Manager) Accept(transport connection.Transport) (*connection.Connection, error) {
	m.mu.Lock()
	if m.maxConnections > 0 && len(m.conns) >= m.maxConnections {
		m.mu.Unlock()
		return nil, ErrAtCapacity
	}
	conn := connection.New(transport)
	m.conns[conn.ID()] = conn
	m.mu.Unlock()

	if err := conn.Accept(time.Now()); err != nil {
		m.log.Warn("connmgr: accept transition failed", "connID", conn.ID(), "err", err)
	}
	m.log.Info("connection established", "connID", conn.ID())
	if m.hooks.OnEstablished != nil {
		m.hooks.OnEstablished(conn)
	}
	return conn, nil
}

// Lookup returns the connection for id, if it is still tracked.
func (m *Manager) Lookup(id string) (*connection.Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conns[id]
	return c, ok
}

// Close closes the connection for id with reason, running cleanup hooks:
// cancel all in-flight requests, release subscriptions, emit ConnectionClosed.
func (m *Manager) Close(id string, reason string) {
	m.mu.Lock()
	conn, ok := m.conns[id]
	if ok {
		delete(m.conns, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	m.closeConn(conn, reason)
}

func (m *Manager) closeConn(conn *connection.Connection, reason string) {
	_ = conn.MarkClosing()
	if m.cancels != nil {
		m.cancels.CancelAllForConnection(conn.ID())
	}
	if m.subscriptions != nil {
		m.subscriptions.UnsubscribeConnection(conn.ID())
	}
	_ = conn.Transport().Close()
	_ = conn.MarkClosed()
	m.log.Info("connection closed", "connID", conn.ID(), "reason", reason)
	if m.hooks.OnClosed != nil {
		m.hooks.OnClosed(conn, reason)
	}
}

// CloseAll closes every tracked connection with reason, snapshotting the
// map first so concurrent Accept/Close during the walk cannot fault it.
func (m *Manager) CloseAll(reason string) {
	m.mu.Lock()
	snapshot := make([]*connection.Connection, 0, len(m.conns))
	for _, c := range m.conns {
		snapshot = append(snapshot, c)
	}
	m.conns = make(map[string]*connection.Connection)
	m.mu.Unlock()

	for _, c := range snapshot {
		m.closeConn(c, reason)
	}
}

// Broadcast invokes deliver for every Ready connection, optionally skipping
// excludeID. Iterates a snapshot so a concurrent close cannot fault the
// walk (spec.md §5 "Shared resources": connection manager).
func (m *Manager) Broadcast(excludeID string, deliver func(conn *connection.Connection)) {
	m.mu.RLock()
	snapshot := make([]*connection.Connection, 0, len(m.conns))
	for id, c := range m.conns {
		if id == excludeID {
			continue
		}
		snapshot = append(snapshot, c)
	}
	m.mu.RUnlock()

	for _, c := range snapshot {
		if c.State() == connection.Ready {
			deliver(c)
		}
	}
}

// Count returns the number of tracked connections.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// SweepIdle closes every connection whose last activity is older than
// idleTimeout, with reason "idle" (spec.md §4.12).
func (m *Manager) SweepIdle(idleTimeout time.Duration) int {
	now := time.Now()
	m.mu.RLock()
	var stale []*connection.Connection
	for _, c := range m.conns {
		if now.Sub(c.LastActivity()) > idleTimeout {
			stale = append(stale, c)
		}
	}
	m.mu.RUnlock()

	for _, c := range stale {
		m.Close(c.ID(), "idle")
	}
	return len(stale)
}

// RunIdleSweeper runs SweepIdle every interval until stop is closed.
func (m *Manager) RunIdleSweeper(interval, idleTimeout time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.SweepIdle(idleTimeout)
		}
	}
}
