package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"aims/internal/domain"
)

// Store is the idempotent ledger of state-change records. Upsert is atomic
// per call: a single conditional insert-or-update keyed on the external id,
// needing no retry loop of its own.
type Store interface {
	// Upsert inserts the event under a fresh internal id, or overwrites the
	// mutable fields (action, description, timestamp, changes, actor) of the
	// existing row sharing its external id. Returns the row's internal id,
	// which never changes across overwrites.
	Upsert(ctx context.Context, event domain.AuditEvent) (uuid.UUID, error)

	// GetByID returns one event by its internal id; sentinel.ErrNotFound if
	// absent.
	GetByID(ctx context.Context, id uuid.UUID) (domain.AuditEvent, error)

	// GetSince returns events with occurred-at strictly after since, newest
	// first, truncated to limit.
	GetSince(ctx context.Context, since time.Time, limit int) ([]domain.AuditEvent, error)
}
