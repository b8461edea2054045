package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"aims/internal/domain"
	"aims/pkg/platform/sentinel"
)

// PostgresDirectory reads the users and resources tables maintained by the
// asset CRUD system.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

func (d *PostgresDirectory) FindUser(ctx context.Context, id int64) (domain.User, error) {
	const query = `SELECT id, display_name FROM users WHERE id = $1`

	var u domain.User
	err := d.pool.QueryRow(ctx, query, id).Scan(&u.ID, &u.DisplayName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, sentinel.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (d *PostgresDirectory) FindResource(ctx context.Context, id int64) (domain.Resource, error) {
	const query = `
SELECT id, kind, name, total_seats, status, archived, version
FROM resources
WHERE id = $1`

	var (
		r    domain.Resource
		kind string
	)
	err := d.pool.QueryRow(ctx, query, id).Scan(
		&r.Ref.ID, &kind, &r.Name, &r.TotalSeats, &r.Status, &r.Archived, &r.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Resource{}, sentinel.ErrNotFound
		}
		return domain.Resource{}, fmt.Errorf("find resource: %w", err)
	}
	r.Ref.Kind = domain.ResourceKind(kind)
	return r, nil
}
