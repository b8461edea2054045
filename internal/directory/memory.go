package directory

import (
	"context"
	"sync"

	"aims/internal/domain"
	"aims/pkg/platform/sentinel"
)

// InMemoryUserDirectory keeps the development and test setup lightweight.
// Resource lookups come from the assignment store, which owns the resource
// rows it mutates.
type InMemoryUserDirectory struct {
	mu    sync.RWMutex
	users map[int64]domain.User
}

func NewInMemoryUserDirectory() *InMemoryUserDirectory {
	return &InMemoryUserDirectory{users: make(map[int64]domain.User)}
}

func (d *InMemoryUserDirectory) SeedUser(user domain.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.ID] = user
}

func (d *InMemoryUserDirectory) FindUser(_ context.Context, id int64) (domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if user, ok := d.users[id]; ok {
		return user, nil
	}
	return domain.User{}, sentinel.ErrNotFound
}
