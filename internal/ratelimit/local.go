package ratelimit

import (
	"context"
	"sync"
	"time"
)

// localEntryCap bounds the fallback map. On overflow the entire map is
// cleared rather than evicting LRU entries; dedup is briefly disabled for
// all keys. Known limitation of the per-process fallback; operators must
// provide the distributed backend in production.
const localEntryCap = 10_000

type localEntry struct {
	count       int64
	windowStart time.Time
	window      time.Duration
}

// localBackend is the in-process counter store used when redis is absent or
// unreachable. Per-process only: limits are enforced per worker, not
// globally.
type localBackend struct {
	mu      sync.Mutex
	entries map[string]*localEntry
	now     func() time.Time
}

func newLocalBackend() *localBackend {
	return &localBackend{
		entries: make(map[string]*localEntry),
		now:     time.Now,
	}
}

func (b *localBackend) windowIncr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.evictIfFull()

	e, ok := b.entries[key]
	if !ok || now.Sub(e.windowStart) >= e.window {
		e = &localEntry{windowStart: now, window: window}
		b.entries[key] = e
	}
	e.count++

	remaining := e.window - now.Sub(e.windowStart)
	return e.count, remaining, nil
}

func (b *localBackend) setOnce(_ context.Context, key string, ttl time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.evictIfFull()

	if e, ok := b.entries[key]; ok && now.Sub(e.windowStart) < e.window {
		return false, nil
	}
	b.entries[key] = &localEntry{count: 1, windowStart: now, window: ttl}
	return true, nil
}

func (b *localBackend) evictIfFull() {
	if len(b.entries) > localEntryCap {
		b.entries = make(map[string]*localEntry)
	}
}
