package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetOrComputeSingleFlight(t *testing.T) {
	c := New(0, 0.05, time.Minute)
	var calls int32
	var wg sync.WaitGroup
	results := make([]any, 20)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrCompute(context.Background(), "k", Options{Size: 1}, func(ctx context.Context) (any, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(10 * time.Millisecond)
				return "computed", nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			results[i] = v
		}(i)
	}
	wg.Wait()

	if calls != 1 {
		t.Fatalf("producer invoked %d times, want 1", calls)
	}
	for _, r := range results {
		if r != "computed" {
			t.Fatalf("result = %v, want %q", r, "computed")
		}
	}
}

func TestGetOrComputeProducerFailureNotCached(t *testing.T) {
	c := New(0, 0.05, time.Minute)
	wantErr := errTest{}
	_, err := c.GetOrCompute(context.Background(), "k", Options{}, func(ctx context.Context) (any, error) {
		return nil, wantErr
	})
	if err != wantErr {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected no entry stored after producer failure")
	}
}

type errTest struct{}

func (errTest) Error() string { return "boom" }

func TestCapacityEvictionScenarioE(t *testing.T) {
	c := New(1000, 0.1, time.Minute)
	c.Set("k1", "v1", Options{Size: 400, Priority: Normal})
	c.Set("k2", "v2", Options{Size: 400, Priority: Normal})
	c.Set("k3", "v3", Options{Size: 400, Priority: Normal})

	stats := c.Stats()
	if stats.TotalSize > 900 {
		t.Fatalf("total size = %d, want <= 900", stats.TotalSize)
	}
	if _, ok := c.Get("k1"); ok {
		t.Fatal("expected k1 (oldest) to be evicted")
	}
	if _, ok := c.Get("k2"); !ok {
		t.Fatal("expected k2 to survive")
	}
	if _, ok := c.Get("k3"); !ok {
		t.Fatal("expected k3 to survive")
	}
	if stats.EvictionsByKind[Capacity] != 1 {
		t.Fatalf("capacity evictions = %d, want 1", stats.EvictionsByKind[Capacity])
	}
}

func TestNeverRemoveSkippedByCapacityPass(t *testing.T) {
	c := New(1000, 0.1, time.Minute)
	c.Set("pinned", "v", Options{Size: 900, Priority: NeverRemove})
	c.Set("k2", "v2", Options{Size: 400, Priority: Normal})

	if _, ok := c.Get("pinned"); !ok {
		t.Fatal("expected NeverRemove entry to survive capacity pressure")
	}
}

func TestRemoveByPatternGlob(t *testing.T) {
	c := New(0, 0.05, time.Minute)
	c.Set("resource:file:///a", "1", Options{})
	c.Set("resource:file:///b", "2", Options{})
	c.Set("tool:echo", "3", Options{})

	n := c.RemoveByPattern("resource:*")
	if n != 2 {
		t.Fatalf("removed %d, want 2", n)
	}
	if _, ok := c.Get("tool:echo"); !ok {
		t.Fatal("expected unrelated key to survive")
	}
}

func TestSetOverExistingReplaces(t *testing.T) {
	c := New(0, 0.05, time.Minute)
	c.Set("k", "v1", Options{Size: 10})
	c.Set("k", "v2", Options{Size: 10})

	v, ok := c.Get("k")
	if !ok || v != "v2" {
		t.Fatalf("Get = %v, %v, want v2, true", v, ok)
	}
	if c.Stats().EvictionsByKind[Replaced] != 1 {
		t.Fatal("expected one Replaced eviction recorded")
	}
}

func TestResourceKeyRoundTrip(t *testing.T) {
	key := ResourceKey("file:///a")
	uri, ok := IsResourceKey(key)
	if !ok || uri != "file:///a" {
		t.Fatalf("IsResourceKey = %q, %v", uri, ok)
	}
}
