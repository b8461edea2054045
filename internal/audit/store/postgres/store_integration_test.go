//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"aims/internal/audit/store/postgres"
	"aims/internal/domain"
	"aims/pkg/platform/sentinel"
	"aims/pkg/testutil/containers"
)

type AuditStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *postgres.Store
}

func TestAuditStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(AuditStoreSuite))
}

func (s *AuditStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = postgres.New(s.pg.Pool)
}

func (s *AuditStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background(), "audit_events"))
}

func (s *AuditStoreSuite) event(externalID string, occurred time.Time) domain.AuditEvent {
	return domain.AuditEvent{
		ID:         uuid.New(),
		ExternalID: externalID,
		ActorID:    7,
		Action:     domain.ActionCreate,
		Resource:   domain.ResourceRef{Kind: domain.KindHardware, ID: 42},
		OccurredAt: occurred.Truncate(time.Microsecond),
		Changes: []domain.FieldChange{
			{Field: "status", Old: "available", New: "assigned"},
		},
	}
}

func (s *AuditStoreSuite) TestUpsertInsertThenOverwrite() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	first := s.event("evt-1", now)
	first.Description = "initial"
	id1, err := s.store.Upsert(ctx, first)
	s.Require().NoError(err)

	second := s.event("evt-1", now.Add(-time.Hour))
	second.Action = domain.ActionUpdate
	second.Description = "resubmitted"
	id2, err := s.store.Upsert(ctx, second)
	s.Require().NoError(err)
	s.Equal(id1, id2, "internal id survives overwrites")

	stored, err := s.store.GetByID(ctx, id1)
	s.Require().NoError(err)
	s.Equal(domain.ActionUpdate, stored.Action)
	s.Equal("resubmitted", stored.Description)
	s.True(stored.OccurredAt.Equal(now.Add(-time.Hour)), "older timestamp still overwrites")
	s.Require().Len(stored.Changes, 1)
	s.Equal("status", stored.Changes[0].Field)

	var count int
	s.Require().NoError(s.pg.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_events`).Scan(&count))
	s.Equal(1, count)
}

func (s *AuditStoreSuite) TestGetSinceNewestFirst() {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Microsecond)

	for i := 0; i < 5; i++ {
		_, err := s.store.Upsert(ctx, s.event(uuid.NewString(), base.Add(time.Duration(i)*time.Minute)))
		s.Require().NoError(err)
	}

	events, err := s.store.GetSince(ctx, base.Add(90*time.Second), 10)
	s.Require().NoError(err)
	s.Require().Len(events, 3)
	for i := 1; i < len(events); i++ {
		s.True(events[i].OccurredAt.Before(events[i-1].OccurredAt))
	}

	limited, err := s.store.GetSince(ctx, base.Add(-time.Hour), 2)
	s.Require().NoError(err)
	s.Len(limited, 2)
}

func (s *AuditStoreSuite) TestGetByIDUnknown() {
	_, err := s.store.GetByID(context.Background(), uuid.New())
	s.ErrorIs(err, sentinel.ErrNotFound)
}
