// Package cachestamp provides the version counter that read caches outside
// the core embed in their keys. Bumping the counter after every committed
// mutation invalidates all of them at once without tracking individual keys.
//
// The stamp is an injected dependency, never a process global, so tests and
// multi-instance deployments can choose their own backing.
package cachestamp

import (
	"context"
	"sync/atomic"
)

// Stamp is a monotonic counter. Bump after a committed mutation; Current when
// composing a cache key.
type Stamp interface {
	Bump(ctx context.Context) (int64, error)
	Current(ctx context.Context) (int64, error)
}

// Memory is the single-process implementation.
type Memory struct {
	n atomic.Int64
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Bump(_ context.Context) (int64, error) {
	return m.n.Add(1), nil
}

func (m *Memory) Current(_ context.Context) (int64, error) {
	return m.n.Load(), nil
}
