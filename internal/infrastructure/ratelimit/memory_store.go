// Package ratelimit provides the counter store implementations behind the
// fixed-window rate limiter: a Redis-backed distributed store and the
// in-process fallback.
package ratelimit

import (
	"context"
	"sync"
	"time"

	domain "github.com/mcs-platform/mcs-gateway/internal/domain/ratelimit"
)

type memoryWindow struct {
	bucket int64
	count  int64
}

// MemoryStore keeps fixed-window counters in process memory. It serializes
// access to the counter table with a mutex so concurrent increments on the
// same key never lose updates. Windows expire lazily: a counter from an
// earlier bucket is replaced on the next check, no background sweep runs.
//
// Each gateway instance's MemoryStore is private; it is never synchronized
// across instances.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
}

// NewMemoryStore creates an empty in-process counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*memoryWindow),
	}
}

// Check implements ratelimit.Store. It never fails.
func (s *MemoryStore) Check(ctx context.Context, key string, limit int, window time.Duration) (domain.Result, error) {
	now := time.Now()
	bucket, resetAt := domain.WindowBounds(now, window)

	s.mu.Lock()
	w := s.windows[key]
	if w == nil || w.bucket != bucket {
		w = &memoryWindow{bucket: bucket}
		s.windows[key] = w
	}
	w.count++
	count := w.count
	s.mu.Unlock()

	return domain.Evaluate(count, limit, resetAt, now), nil
}

// Len returns the number of tracked keys. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
