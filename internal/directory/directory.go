// Package directory exposes the user and resource lookups the core consumes.
// Asset CRUD and user management live in other systems; the engine only needs
// existence, display names, capacity and archive state, plus the hardware
// status/version columns it co-owns with those systems.
package directory

import (
	"context"

	"aims/internal/domain"
)

// UserDirectory resolves holders and actors.
type UserDirectory interface {
	FindUser(ctx context.Context, id int64) (domain.User, error)
}

// ResourceDirectory resolves assignable resources.
type ResourceDirectory interface {
	FindResource(ctx context.Context, id int64) (domain.Resource, error)
}
