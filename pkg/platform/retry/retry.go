// Package retry provides a bounded retry combinator for optimistic-concurrency
// writes. A writer reads fresh state, computes the new state, and commits
// conditionally on a version token; when the commit loses to a concurrent
// writer the whole attempt is repeated from a fresh read.
package retry

import (
	"context"
	"errors"
	"fmt"

	"aims/pkg/platform/sentinel"
)

// ErrExhausted is returned when every attempt lost to a concurrent writer.
// It wraps sentinel.ErrVersionConflict from the final attempt.
var ErrExhausted = errors.New("retry attempts exhausted")

// Do runs op up to maxAttempts times. Only sentinel.ErrVersionConflict
// triggers a retry; every other error is terminal and returned as-is so
// business rejections (capacity, not found) are never re-run against state
// that may have changed underneath them. Each attempt must re-read its inputs.
func Do(ctx context.Context, maxAttempts int, op func(ctx context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sentinel.ErrVersionConflict) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, maxAttempts, lastErr)
}
