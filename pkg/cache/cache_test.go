package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCacheExpires(t *testing.T) {
	now := time.Unix(1000, 0)
	c := New[string](Options{TTL: time.Minute}, MetricsHooks{})
	c.now = func() time.Time { return now }

	c.Set("a", "one")
	if v, ok := c.Get("a"); !ok || v != "one" {
		t.Fatalf("expected hit, got %q %v", v, ok)
	}
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected expired entry")
	}
	if c.Len() != 0 {
		t.Fatalf("expected expired entry removed, len %d", c.Len())
	}
}

func TestCacheEvictsOldest(t *testing.T) {
	c := New[int](Options{TTL: time.Minute, MaxEntries: 2}, MetricsHooks{})
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected oldest entry evicted")
	}
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Fatalf("expected newest entry kept")
	}
}

func TestCacheLoadCoalescesAndSkipsErrors(t *testing.T) {
	var hits, misses atomic.Int32
	c := New[string](Options{TTL: time.Minute}, MetricsHooks{
		OnHit:  func() { hits.Add(1) },
		OnMiss: func() { misses.Add(1) },
	})

	var calls atomic.Int32
	release := make(chan struct{})
	loader := func(ctx context.Context, key string) (string, error) {
		calls.Add(1)
		<-release
		return "page:" + key, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, err := c.Load(context.Background(), "u", loader); err != nil || v != "page:u" {
				t.Errorf("unexpected load result %q %v", v, err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected one loader call, got %d", calls.Load())
	}
	if _, err := c.Load(context.Background(), "u", loader); err != nil {
		t.Fatalf("cached load: %v", err)
	}
	if hits.Load() < 1 {
		t.Fatal("expected a cache hit")
	}

	boom := errors.New("boom")
	_, err := c.Load(context.Background(), "bad", func(context.Context, string) (string, error) { return "", boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
	if _, ok := c.Get("bad"); ok {
		t.Fatal("failed loads must not be cached")
	}
}
