package connection

import (
	"testing"
	"time"

	"github.com/brennhill/gasoline-mcp-core/internal/mcp"
)

type fakeTransport struct {
	sent   [][]byte
	closed bool
}

func (f *fakeTransport) Send(frame []byte) error {
	f.sent = append(f.sent, frame)
	return nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

func TestNewConnectionStartsConnecting(t *testing.T) {
	c := New(&fakeTransport{})
	if c.State() != Connecting {
		t.Fatalf("state = %v, want Connecting", c.State())
	}
	if c.ID() == "" {
		t.Fatal("expected non-empty connection id")
	}
}

func TestLifecycleHappyPath(t *testing.T) {
	c := New(&fakeTransport{})
	now := time.Now()

	if err := c.Accept(now); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if c.State() != Connected {
		t.Fatalf("state = %v, want Connected", c.State())
	}

	if err := c.MarkReady("0.1.0", mcp.MCPCapabilities{}); err != nil {
		t.Fatalf("MarkReady: %v", err)
	}
	if c.State() != Ready {
		t.Fatalf("state = %v, want Ready", c.State())
	}
	if c.NegotiatedVersion() != "0.1.0" {
		t.Fatalf("version = %q", c.NegotiatedVersion())
	}

	if err := c.MarkClosing(); err != nil {
		t.Fatalf("MarkClosing: %v", err)
	}
	if err := c.MarkClosed(); err != nil {
		t.Fatalf("MarkClosed: %v", err)
	}
	if c.State() != Closed {
		t.Fatalf("state = %v, want Closed", c.State())
	}
}

func TestMonotoneTransitionsRejectBackwardMove(t *testing.T) {
	c := New(&fakeTransport{})
	_ = c.Accept(time.Now())
	_ = c.MarkReady("0.1.0", mcp.MCPCapabilities{})

	if err := c.transition(Connected, func() {}); err == nil {
		t.Fatal("expected error moving backward from Ready to Connected")
	}
}

func TestMarkClosedFromAnyState(t *testing.T) {
	c := New(&fakeTransport{})
	if err := c.MarkClosed(); err != nil {
		t.Fatalf("MarkClosed from Connecting: %v", err)
	}
	if c.State() != Closed {
		t.Fatalf("state = %v, want Closed", c.State())
	}
	if err := c.MarkClosed(); err != nil {
		t.Fatalf("MarkClosed idempotent: %v", err)
	}
}

func TestTryBeginInitializeOnlyOnce(t *testing.T) {
	c := New(&fakeTransport{})
	if !c.TryBeginInitialize() {
		t.Fatal("expected first TryBeginInitialize to succeed")
	}
	if c.TryBeginInitialize() {
		t.Fatal("expected second TryBeginInitialize to fail (I1: exactly once)")
	}
}

func TestTouchActivityUpdatesLastActivity(t *testing.T) {
	c := New(&fakeTransport{})
	t1 := time.Now()
	c.TouchActivity(t1)
	if !c.LastActivity().Equal(t1) {
		t.Fatalf("LastActivity = %v, want %v", c.LastActivity(), t1)
	}
	t2 := t1.Add(time.Second)
	c.TouchActivity(t2)
	if !c.LastActivity().Equal(t2) {
		t.Fatalf("LastActivity = %v, want %v", c.LastActivity(), t2)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	c := New(&fakeTransport{})
	c.SetMetadata("k", "v")
	v, ok := c.Metadata("k")
	if !ok || v != "v" {
		t.Fatalf("Metadata = %v, %v", v, ok)
	}
	if _, ok := c.Metadata("missing"); ok {
		t.Fatal("expected missing key to be absent")
	}
}
