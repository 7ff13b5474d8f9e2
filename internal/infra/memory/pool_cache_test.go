package memory

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPoolCacheCaches(t *testing.T) {
	loader := &countingLoader{ids: []string{"q1", "q2"}}
	cache := NewPoolCache(loader, time.Minute)

	ids, err := cache.ActiveIDs(context.Background())
	if err != nil {
		t.Fatalf("active ids: %v", err)
	}
	if len(ids) != 2 || loader.calls != 1 {
		t.Fatalf("expected 2 ids from one load, got %v after %d calls", ids, loader.calls)
	}

	if _, err := cache.ActiveIDs(context.Background()); err != nil {
		t.Fatalf("active ids 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestPoolCacheExpiresAndInvalidates(t *testing.T) {
	loader := &countingLoader{ids: []string{"q1"}}
	cache := NewPoolCache(loader, time.Minute)
	now := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	cache.clock = func() time.Time { return now }

	_, _ = cache.ActiveIDs(context.Background())
	now = now.Add(2 * time.Minute)
	_, _ = cache.ActiveIDs(context.Background())
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.calls)
	}

	loader.ids = []string{"q1", "q2"}
	cache.Invalidate()
	ids, _ := cache.ActiveIDs(context.Background())
	if loader.calls != 3 || len(ids) != 2 {
		t.Fatalf("expected reload after invalidate, got %v after %d calls", ids, loader.calls)
	}
}

func TestPoolCacheInvalidateDuringLoad(t *testing.T) {
	loader := &blockingLoader{
		started: make(chan struct{}),
		release: make(chan struct{}),
		ids:     []string{"q1"},
	}
	cache := NewPoolCache(loader, time.Minute)

	done := make(chan []string)
	go func() {
		ids, _ := cache.ActiveIDs(context.Background())
		done <- ids
	}()
	<-loader.started

	// A question is created while the first load is still listing the store.
	loader.set([]string{"q1", "q2"})
	cache.Invalidate()
	close(loader.release)
	if stale := <-done; len(stale) != 1 {
		t.Fatalf("expected the in-flight load to return its own view, got %v", stale)
	}

	ids, err := cache.ActiveIDs(context.Background())
	if err != nil {
		t.Fatalf("active ids: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected invalidated pool to reload, got %v", ids)
	}
}

type blockingLoader struct {
	mu      sync.Mutex
	ids     []string
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (l *blockingLoader) set(ids []string) {
	l.mu.Lock()
	l.ids = ids
	l.mu.Unlock()
}

func (l *blockingLoader) ActiveIDs(context.Context) ([]string, error) {
	l.mu.Lock()
	ids := l.ids
	l.mu.Unlock()
	first := false
	l.once.Do(func() { first = true })
	if first {
		close(l.started)
		<-l.release
	}
	return ids, nil
}

type countingLoader struct {
	ids   []string
	calls int
}

func (l *countingLoader) ActiveIDs(context.Context) ([]string, error) {
	l.calls++
	return l.ids, nil
}
