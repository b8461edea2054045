// Package memory implements the assignment store over process-local maps. It
// favors clarity over performance and doubles as the resource directory in
// dev and test wiring, since it owns the resource rows it mutates.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"aims/internal/domain"
	"aims/pkg/platform/sentinel"
)

type Store struct {
	mu          sync.RWMutex
	resources   map[int64]domain.Resource
	assignments map[uuid.UUID]domain.Assignment
}

func New() *Store {
	return &Store{
		resources:   make(map[int64]domain.Resource),
		assignments: make(map[uuid.UUID]domain.Assignment),
	}
}

// SeedResource registers a resource row. Test and dev helper standing in for
// the external asset CRUD system.
func (s *Store) SeedResource(resource domain.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[resource.Ref.ID] = resource
}

// FindResource implements directory.ResourceDirectory.
func (s *Store) FindResource(_ context.Context, id int64) (domain.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if resource, ok := s.resources[id]; ok {
		return resource, nil
	}
	return domain.Resource{}, sentinel.ErrNotFound
}

func (s *Store) FindByID(_ context.Context, id uuid.UUID) (domain.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.assignments[id]; ok {
		return a, nil
	}
	return domain.Assignment{}, sentinel.ErrNotFound
}

func (s *Store) FindOpenByHolder(_ context.Context, resourceID, holderID int64) (*domain.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.assignments {
		if a.Resource.ID == resourceID && a.HolderID == holderID && a.Open() {
			found := a
			return &found, nil
		}
	}
	return nil, nil
}

func (s *Store) CountOpen(_ context.Context, resourceID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, a := range s.assignments {
		if a.Resource.ID == resourceID && a.Open() {
			count++
		}
	}
	return count, nil
}

func (s *Store) CreateOpen(_ context.Context, a domain.Assignment, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	resource, ok := s.resources[a.Resource.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if resource.Version != expectedVersion {
		return sentinel.ErrVersionConflict
	}

	resource.Version++
	if resource.Ref.Kind.TracksUnitStatus() {
		resource.Status = domain.StatusAssigned
	}
	s.resources[a.Resource.ID] = resource
	s.assignments[a.ID] = a
	return nil
}

func (s *Store) CloseOpen(_ context.Context, a domain.Assignment, at time.Time, comment string, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	resource, ok := s.resources[a.Resource.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if resource.Version != expectedVersion {
		return sentinel.ErrVersionConflict
	}

	stored, ok := s.assignments[a.ID]
	if !ok || !stored.Open() {
		return sentinel.ErrNotFound
	}

	resource.Version++
	if resource.Ref.Kind.TracksUnitStatus() {
		resource.Status = domain.StatusAvailable
	}
	s.resources[a.Resource.ID] = resource

	closedAt := at
	stored.UnassignedAt = &closedAt
	if comment != "" {
		stored.Comment = comment
	}
	s.assignments[a.ID] = stored
	return nil
}
