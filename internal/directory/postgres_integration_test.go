//go:build integration

package directory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aims/internal/directory"
	"aims/internal/domain"
	"aims/pkg/platform/sentinel"
	"aims/pkg/testutil/containers"
)

func TestPostgresDirectory(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pg := containers.NewPostgresContainer(t)
	ctx := context.Background()

	_, err := pg.Pool.Exec(ctx, `
INSERT INTO users (id, display_name) VALUES (7, 'Dana Smith');
INSERT INTO resources (id, kind, name, total_seats, status, archived, version)
VALUES (42, 'hardware', 'Laptop 42', 0, 'available', FALSE, 3),
       (43, 'software', 'IDE License', 5, 'available', TRUE, 0)`)
	require.NoError(t, err)

	dir := directory.NewPostgresDirectory(pg.Pool)

	user, err := dir.FindUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Dana Smith", user.DisplayName)

	_, err = dir.FindUser(ctx, 404)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	resource, err := dir.FindResource(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, domain.KindHardware, resource.Ref.Kind)
	assert.Equal(t, int64(3), resource.Version)
	assert.False(t, resource.Archived)

	archived, err := dir.FindResource(ctx, 43)
	require.NoError(t, err)
	assert.True(t, archived.Archived)
	assert.Equal(t, 5, archived.TotalSeats)

	_, err = dir.FindResource(ctx, 404)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
