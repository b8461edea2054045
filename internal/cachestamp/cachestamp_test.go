package cachestamp

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStamp(t *testing.T) {
	ctx := context.Background()
	stamp := NewMemory()

	cur, err := stamp.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cur)

	n, err := stamp.Bump(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	cur, err = stamp.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cur)
}

func TestMemoryStampConcurrentBumps(t *testing.T) {
	ctx := context.Background()
	stamp := NewMemory()

	const writers = 50
	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = stamp.Bump(ctx)
		}()
	}
	wg.Wait()

	cur, err := stamp.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(writers), cur)
}
