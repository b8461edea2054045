// Package postgres implements the audit ledger on pgx. Idempotency rides on
// the external_id unique constraint: ON CONFLICT DO UPDATE makes each upsert
// a single atomic insert-or-overwrite.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"aims/internal/domain"
	"aims/pkg/platform/sentinel"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Upsert(ctx context.Context, event domain.AuditEvent) (uuid.UUID, error) {
	changes, err := json.Marshal(event.Changes)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal changes: %w", err)
	}
	if event.Changes == nil {
		changes = []byte("[]")
	}

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	const query = `
INSERT INTO audit_events (id, external_id, actor_id, action, resource_kind, resource_id, occurred_at, description, changes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (external_id) DO UPDATE SET
	actor_id = EXCLUDED.actor_id,
	action = EXCLUDED.action,
	occurred_at = EXCLUDED.occurred_at,
	description = EXCLUDED.description,
	changes = EXCLUDED.changes
RETURNING id`

	var id uuid.UUID
	err = s.pool.QueryRow(ctx, query,
		event.ID,
		event.ExternalID,
		event.ActorID,
		string(event.Action),
		string(event.Resource.Kind),
		event.Resource.ID,
		event.OccurredAt,
		event.Description,
		changes,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert audit event: %w", err)
	}
	return id, nil
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (domain.AuditEvent, error) {
	const query = `
SELECT id, external_id, actor_id, action, resource_kind, resource_id, occurred_at, description, changes
FROM audit_events
WHERE id = $1`

	var (
		e       domain.AuditEvent
		action  string
		kind    string
		changes []byte
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.ExternalID, &e.ActorID, &action, &kind, &e.Resource.ID,
		&e.OccurredAt, &e.Description, &changes,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AuditEvent{}, sentinel.ErrNotFound
	}
	if err != nil {
		return domain.AuditEvent{}, fmt.Errorf("query audit event: %w", err)
	}
	e.Action = domain.AuditAction(action)
	e.Resource.Kind = domain.ResourceKind(kind)
	if len(changes) > 0 {
		if err := json.Unmarshal(changes, &e.Changes); err != nil {
			return domain.AuditEvent{}, fmt.Errorf("unmarshal changes: %w", err)
		}
	}
	return e, nil
}

func (s *Store) GetSince(ctx context.Context, since time.Time, limit int) ([]domain.AuditEvent, error) {
	const query = `
SELECT id, external_id, actor_id, action, resource_kind, resource_id, occurred_at, description, changes
FROM audit_events
WHERE occurred_at > $1
ORDER BY occurred_at DESC
LIMIT $2`

	rows, err := s.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []domain.AuditEvent
	for rows.Next() {
		var (
			e       domain.AuditEvent
			action  string
			kind    string
			changes []byte
		)
		if err := rows.Scan(
			&e.ID, &e.ExternalID, &e.ActorID, &action, &kind, &e.Resource.ID,
			&e.OccurredAt, &e.Description, &changes,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Action = domain.AuditAction(action)
		e.Resource.Kind = domain.ResourceKind(kind)
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &e.Changes); err != nil {
				return nil, fmt.Errorf("unmarshal changes: %w", err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
