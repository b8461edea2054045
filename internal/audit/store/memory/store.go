// Package memory implements the audit ledger over a process-local map keyed
// by external id.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"aims/internal/domain"
	"aims/pkg/platform/sentinel"
)

type Store struct {
	mu    sync.RWMutex
	byExt map[string]domain.AuditEvent
}

func New() *Store {
	return &Store{byExt: make(map[string]domain.AuditEvent)}
}

func (s *Store) Upsert(_ context.Context, event domain.AuditEvent) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byExt[event.ExternalID]; ok {
		event.ID = existing.ID
	} else if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	s.byExt[event.ExternalID] = event
	return event.ID, nil
}

func (s *Store) GetByID(_ context.Context, id uuid.UUID) (domain.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.byExt {
		if e.ID == id {
			return e, nil
		}
	}
	return domain.AuditEvent{}, sentinel.ErrNotFound
}

func (s *Store) GetSince(_ context.Context, since time.Time, limit int) ([]domain.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []domain.AuditEvent
	for _, e := range s.byExt {
		if e.OccurredAt.After(since) {
			events = append(events, e)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].OccurredAt.After(events[j].OccurredAt)
	})
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}
