package ratelimit

import (
	"context"
	"sync"
	"time"

	"aims/internal/clock"
)

// MemoryStore implements Store with per-key timestamp windows. Not
// distributed; use RedisStore when running more than one node.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	clock   clock.Clock
}

func NewMemoryStore(clk clock.Clock) *MemoryStore {
	return &MemoryStore{
		windows: make(map[string][]time.Time),
		clock:   clk,
	}
}

func (s *MemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	cutoff := now.Add(-window)

	kept := s.windows[key][:0]
	for _, ts := range s.windows[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= limit {
		s.windows[key] = kept
		return Result{
			Allowed:   false,
			Limit:     limit,
			Remaining: 0,
			ResetAt:   kept[0].Add(window),
		}, nil
	}

	kept = append(kept, now)
	s.windows[key] = kept
	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(kept),
		ResetAt:   kept[0].Add(window),
	}, nil
}

// Reset clears the window for a key.
func (s *MemoryStore) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
}
