package connmgr

import (
	"testing"
	"time"

	"github.com/brennhill/gasoline-mcp-core/internal/cancel"
	"github.com/brennhill/gasoline-mcp-core/internal/connection"
	"github.com/brennhill/gasoline-mcp-core/internal/mcp"
	"github.com/brennhill/gasoline-mcp-core/internal/subscribe"
)

type fakeTransport struct {
	closed bool
}

func (f *fakeTransport) Send(frame []byte) error { return nil }
func (f *fakeTransport) Close() error             { f.closed = true; return nil }

func TestAcceptRejectsPastCapacity(t *testing.T) {
	m := New(1, cancel.New(), subscribe.New(nil), nil, Hooks{})
	if _, err := m.Accept(&fakeTransport{}); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	if _, err := m.Accept(&fakeTransport{}); err != ErrAtCapacity {
		t.Fatalf("second accept err = %v, want ErrAtCapacity", err)
	}
}

func TestCloseRunsCleanupHooks(t *testing.T) {
	cancels := cancel.New()
	subs := subscribe.New(nil)
	var closedReason string
	var closedConn *connection.Connection
	m := New(10, cancels, subs, nil, Hooks{
		OnClosed: func(conn *connection.Connection, reason string) {
			closedConn = conn
			closedReason = reason
		},
	})

	transport := &fakeTransport{}
	conn, err := m.Accept(transport)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	subs.Subscribe("u", &subscribe.Observer{ConnID: conn.ID(), Deliver: func(string) error { return nil }})

	m.Close(conn.ID(), "test")

	if !transport.closed {
		t.Fatal("expected transport to be closed")
	}
	if _, ok := m.Lookup(conn.ID()); ok {
		t.Fatal("expected connection to be untracked after close")
	}
	if closedConn != conn || closedReason != "test" {
		t.Fatalf("OnClosed hook got conn=%v reason=%q", closedConn, closedReason)
	}
	if subs.Count("u") != 0 {
		t.Fatal("expected subscription released on close")
	}
}

func TestBroadcastSkipsExcludedAndNonReady(t *testing.T) {
	m := New(10, cancel.New(), subscribe.New(nil), nil, Hooks{})
	c1, _ := m.Accept(&fakeTransport{})
	c2, _ := m.Accept(&fakeTransport{})
	_ = c1.MarkReady("v", mcp.MCPCapabilities{})

	var delivered []string
	m.Broadcast("", func(conn *connection.Connection) {
		delivered = append(delivered, conn.ID())
	})
	if len(delivered) != 1 || delivered[0] != c1.ID() {
		t.Fatalf("delivered = %v, want only c1 (c2 is not Ready)", delivered)
	}

	_ = c2.MarkReady("v", mcp.MCPCapabilities{})
	delivered = nil
	m.Broadcast(c1.ID(), func(conn *connection.Connection) {
		delivered = append(delivered, conn.ID())
	})
	if len(delivered) != 1 || delivered[0] != c2.ID() {
		t.Fatalf("delivered = %v, want only c2 (c1 is excluded)", delivered)
	}
}

func TestSweepIdleClosesStaleConnections(t *testing.T) {
	m := New(10, cancel.New(), subscribe.New(nil), nil, Hooks{})
	conn, _ := m.Accept(&fakeTransport{})
	conn.TouchActivity(time.Now().Add(-time.Hour))

	n := m.SweepIdle(time.Minute)
	if n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}
	if _, ok := m.Lookup(conn.ID()); ok {
		t.Fatal("expected idle connection to be closed")
	}
}
