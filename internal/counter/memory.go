package counter

import (
	"context"
	"sync"
	"time"
)

// DefaultSweepInterval is how often the in-memory store removes expired
// buckets.
const DefaultSweepInterval = time.Minute

// bucket is one key's fixed-window state.
type bucket struct {
	count   int64
	resetAt time.Time
}

// MemoryStore is an in-process fixed-window counter. Windows reset at fixed
// boundaries rather than sliding, and state lives in process memory, so this
// strategy is only correct within a single instance. A background sweeper
// bounds memory by deleting buckets whose window has passed.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	done    chan struct{}
	closed  bool

	// now is swapped out by tests to control window boundaries.
	now func() time.Time
}

// NewMemoryStore creates a memory store and starts its sweep goroutine with
// the given interval. Non-positive intervals fall back to
// DefaultSweepInterval.
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	m := &MemoryStore{
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	go m.sweep(sweepInterval)
	return m
}

// Increment counts one request against key. The first request of a window, or
// any request after the window has elapsed, starts a fresh window with
// count 1. The count stops growing at limit+1: the request that crosses the
// limit is the one that observes the denial.
func (m *MemoryStore) Increment(_ context.Context, key string, window time.Duration, limit int) (Result, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{count: 1, resetAt: now.Add(window)}
		m.buckets[key] = b
	} else if b.count <= int64(limit) {
		b.count++
	}

	remaining := limit - int(b.count)
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   b.count <= int64(limit),
		Count:     b.count,
		Remaining: remaining,
		ResetAt:   b.resetAt,
	}, nil
}

// Close stops the sweep goroutine. Safe to call more than once.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

// Len returns the number of live buckets. Used by tests and health reporting.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

func (m *MemoryStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictExpired()
		}
	}
}

func (m *MemoryStore) evictExpired() {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, b := range m.buckets {
		if !now.Before(b.resetAt) {
			delete(m.buckets, key)
		}
	}
}
