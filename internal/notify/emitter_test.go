package notify

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/brennhill/gasoline-mcp-core/internal/mcp"
)

type recordingSender struct {
	mu    sync.Mutex
	sent  [][]byte
	failN int // fail the Nth call (1-indexed); 0 = never fail
	calls int
}

func (s *recordingSender) Send(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failN != 0 && s.calls == s.failN {
		return errors.New("write failed")
	}
	cp := append([]byte(nil), frame...)
	s.sent = append(s.sent, cp)
	return nil
}

func TestResourceUpdatedEncodesNotification(t *testing.T) {
	sender := &recordingSender{}
	e := New(sender, nil)

	if err := e.ResourceUpdated("file:///a"); err != nil {
		t.Fatalf("ResourceUpdated: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d frames, want 1", len(sender.sent))
	}
	var req mcp.JSONRPCRequest
	if err := json.Unmarshal(sender.sent[0], &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.Method != "notifications/resources/updated" {
		t.Fatalf("method = %q", req.Method)
	}
	var params mcp.MCPResourceUpdatedParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		t.Fatalf("unmarshal params: %v", err)
	}
	if params.URI != "file:///a" {
		t.Fatalf("uri = %q", params.URI)
	}
}

func TestWriteFailureInvokesCallback(t *testing.T) {
	sender := &recordingSender{failN: 1}
	var gotErr error
	e := New(sender, func(err error) { gotErr = err })

	if err := e.ResourceUpdated("u"); err == nil {
		t.Fatal("expected write failure to propagate")
	}
	if gotErr == nil {
		t.Fatal("expected onWriteFailure to be invoked")
	}
}

func TestConcurrentSendsLinearize(t *testing.T) {
	sender := &recordingSender{}
	e := New(sender, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = e.LogMessage(mcp.LogInfo, "test", i)
		}(i)
	}
	wg.Wait()

	if len(sender.sent) != 50 {
		t.Fatalf("sent %d frames, want 50", len(sender.sent))
	}
	for _, frame := range sender.sent {
		var req mcp.JSONRPCRequest
		if err := json.Unmarshal(frame, &req); err != nil {
			t.Fatalf("frame is not valid JSON on its own (interleaved write?): %v", err)
		}
	}
}
