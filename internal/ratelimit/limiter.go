package ratelimit

import (
	"sync"
	"time"
)

// CounterStore holds fixed-window counters. It is injected rather than held
// as process-global state so that a multi-instance deployment can swap in a
// shared backend (e.g. Redis) without touching the limiter.
type CounterStore interface {
	// Incr increments the counter for key within the window starting at
	// windowStart and returns the new count.
	Incr(key string, windowStart int64) int
}

// Limiter is a fixed-window rate limiter.
type Limiter struct {
	store  CounterStore
	limit  int
	window time.Duration
	now    func() time.Time
}

func New(store CounterStore, limit int, window time.Duration) *Limiter {
	return &Limiter{store: store, limit: limit, window: window, now: time.Now}
}

// Allow reports whether one more request for key fits in the current window.
// A non-positive limit disables limiting.
func (l *Limiter) Allow(key string) bool {
	if l.limit <= 0 {
		return true
	}
	windowStart := l.now().Truncate(l.window).Unix()
	return l.store.Incr(key, windowStart) <= l.limit
}

// MemoryStore is the in-process CounterStore. Counters from finished windows
// are dropped on the next touch of the same key.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	windowStart int64
	count       int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]*bucket)}
}

func (s *MemoryStore) Incr(key string, windowStart int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[key]
	if !ok || b.windowStart != windowStart {
		b = &bucket{windowStart: windowStart}
		s.buckets[key] = b
	}
	b.count++
	return b.count
}
