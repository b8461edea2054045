// Package ratelimit throttles the catch-up polling endpoint with a sliding
// window per client. The window survives process restarts only in the Redis
// store; the in-memory store is for single-node and test wiring.
package ratelimit

import (
	"context"
	"time"
)

// Result reports the outcome of one admission check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the whole seconds until the window frees up, at least 1.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}

// Store admits or rejects one request for a client key under a sliding
// window. Implementations count the request when admitting it.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}
