package cancel

import (
	"context"
	"sync"
	"testing"
)

func TestRegisterAndCancel(t *testing.T) {
	r := New()
	key := Key{ConnID: "c1", ReqID: float64(1)}
	h := r.Register(context.Background(), key)

	if h.Cancelled() {
		t.Fatal("handle should not be cancelled yet")
	}
	if !r.Cancel(key, "client requested") {
		t.Fatal("expected Cancel to find the live record")
	}
	<-h.Context().Done()
	if !h.Cancelled() {
		t.Fatal("handle should be cancelled")
	}
}

func TestUnregisterMakesCancelReturnFalse(t *testing.T) {
	r := New()
	key := Key{ConnID: "c1", ReqID: "req-7"}
	r.Register(context.Background(), key)
	r.Unregister(key)

	if r.Cancel(key, "") {
		t.Fatal("expected Cancel to return false after Unregister")
	}
}

func TestCancelAllForConnection(t *testing.T) {
	r := New()
	h1 := r.Register(context.Background(), Key{ConnID: "c1", ReqID: 1})
	h2 := r.Register(context.Background(), Key{ConnID: "c1", ReqID: 2})
	h3 := r.Register(context.Background(), Key{ConnID: "c2", ReqID: 1})

	r.CancelAllForConnection("c1")

	if !h1.Cancelled() || !h2.Cancelled() {
		t.Fatal("expected both c1 handles cancelled")
	}
	if h3.Cancelled() {
		t.Fatal("c2 handle should be unaffected")
	}
}

func TestConcurrentRegisterCancelUnregister(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := Key{ConnID: "c1", ReqID: i}
			r.Register(context.Background(), key)
			r.Cancel(key, "")
			r.Unregister(key)
		}(i)
	}
	wg.Wait()
}
