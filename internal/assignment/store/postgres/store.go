// Package postgres implements the assignment store on pgx. Mutations run in a
// short transaction whose first statement is a conditional bump of the
// resource's version token; zero affected rows means another writer committed
// first and the caller retries from a fresh read.
package postgres

import (
	"context"
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

func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (domain.Assignment, error) {
	const query = `
SELECT id, resource_kind, resource_id, holder_id, assigned_at, unassigned_at, comment
FROM assignments
WHERE id = $1`

	a, err := scanAssignment(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Assignment{}, sentinel.ErrNotFound
		}
		return domain.Assignment{}, fmt.Errorf("find assignment: %w", err)
	}
	return a, nil
}

func (s *Store) FindOpenByHolder(ctx context.Context, resourceID, holderID int64) (*domain.Assignment, error) {
	const query = `
SELECT id, resource_kind, resource_id, holder_id, assigned_at, unassigned_at, comment
FROM assignments
WHERE resource_id = $1 AND holder_id = $2 AND unassigned_at IS NULL`

	a, err := scanAssignment(s.pool.QueryRow(ctx, query, resourceID, holderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find open assignment: %w", err)
	}
	return &a, nil
}

func (s *Store) CountOpen(ctx context.Context, resourceID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM assignments WHERE resource_id = $1 AND unassigned_at IS NULL`

	var count int
	if err := s.pool.QueryRow(ctx, query, resourceID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count open assignments: %w", err)
	}
	return count, nil
}

func (s *Store) CreateOpen(ctx context.Context, a domain.Assignment, expectedVersion int64) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := bumpResource(ctx, tx, a.Resource.ID, expectedVersion, domain.StatusAssigned); err != nil {
			return err
		}

		const insert = `
INSERT INTO assignments (id, resource_kind, resource_id, holder_id, assigned_at, comment)
VALUES ($1, $2, $3, $4, $5, $6)`
		if _, err := tx.Exec(ctx, insert,
			a.ID, string(a.Resource.Kind), a.Resource.ID, a.HolderID, a.AssignedAt, a.Comment,
		); err != nil {
			return fmt.Errorf("insert assignment: %w", err)
		}
		return nil
	})
}

func (s *Store) CloseOpen(ctx context.Context, a domain.Assignment, at time.Time, comment string, expectedVersion int64) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := bumpResource(ctx, tx, a.Resource.ID, expectedVersion, domain.StatusAvailable); err != nil {
			return err
		}

		const close = `
UPDATE assignments
SET unassigned_at = $2,
    comment = CASE WHEN $3 <> '' THEN $3 ELSE comment END
WHERE id = $1 AND unassigned_at IS NULL`
		tag, err := tx.Exec(ctx, close, a.ID, at, comment)
		if err != nil {
			return fmt.Errorf("close assignment: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return sentinel.ErrNotFound
		}
		return nil
	})
}

// bumpResource advances the version token and applies the kind-specific unit
// status, conditional on the caller's token still being current.
func bumpResource(ctx context.Context, tx pgx.Tx, resourceID, expectedVersion int64, status domain.ResourceStatus) error {
	const bump = `
UPDATE resources
SET version = version + 1,
    status = CASE WHEN kind = 'hardware' THEN $3 ELSE status END
WHERE id = $1 AND version = $2`

	tag, err := tx.Exec(ctx, bump, resourceID, expectedVersion, string(status))
	if err != nil {
		return fmt.Errorf("bump resource version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrVersionConflict
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func scanAssignment(row pgx.Row) (domain.Assignment, error) {
	var (
		a    domain.Assignment
		kind string
	)
	err := row.Scan(&a.ID, &kind, &a.Resource.ID, &a.HolderID, &a.AssignedAt, &a.UnassignedAt, &a.Comment)
	if err != nil {
		return domain.Assignment{}, err
	}
	a.Resource.Kind = domain.ResourceKind(kind)
	return a, nil
}
