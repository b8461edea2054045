package assignment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"aims/internal/domain"
)

// Store persists assignments against the shared durable state. Mutations are
// conditional on the owning resource's version token: a commit presented with
// a stale token returns sentinel.ErrVersionConflict and the caller retries
// from a fresh read. Each conditional commit is atomic: it either applies the
// assignment row change and the resource bump together, or not at all.
type Store interface {
	// FindByID returns an assignment (open or closed); sentinel.ErrNotFound
	// if absent.
	FindByID(ctx context.Context, id uuid.UUID) (domain.Assignment, error)

	// FindOpenByHolder returns the open assignment for (resource, holder),
	// or nil when the holder has no open claim.
	FindOpenByHolder(ctx context.Context, resourceID, holderID int64) (*domain.Assignment, error)

	// CountOpen counts the open assignments for a resource.
	CountOpen(ctx context.Context, resourceID int64) (int, error)

	// CreateOpen persists a new open assignment, bumps the resource version
	// and, for status-tracked kinds, flips the unit available→assigned.
	// sentinel.ErrVersionConflict when expectedVersion is stale.
	CreateOpen(ctx context.Context, a domain.Assignment, expectedVersion int64) error

	// CloseOpen sets the assignment's unassigned-at, bumps the resource
	// version and flips status-tracked units assigned→available.
	// sentinel.ErrVersionConflict when expectedVersion is stale;
	// sentinel.ErrNotFound when the assignment is no longer open.
	CloseOpen(ctx context.Context, a domain.Assignment, at time.Time, comment string, expectedVersion int64) error
}
