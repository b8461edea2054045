package audit_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aims/internal/audit"
	"aims/internal/audit/store/memory"
	"aims/internal/clock"
	"aims/internal/domain"
	dErrors "aims/pkg/domain-errors"
)

type captureBroadcaster struct {
	events []domain.AuditEvent
	err    error
}

func (c *captureBroadcaster) Publish(_ context.Context, event domain.AuditEvent) error {
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, event)
	return nil
}

func newService(t *testing.T, broadcaster audit.Broadcaster, now time.Time) *audit.Service {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	return audit.NewService(memory.New(), broadcaster, logger, nil, clock.NewFixed(now))
}

func event(externalID string, occurred time.Time) domain.AuditEvent {
	return domain.AuditEvent{
		ExternalID: externalID,
		ActorID:    7,
		Action:     domain.ActionUpdate,
		Resource:   domain.ResourceRef{Kind: domain.KindHardware, ID: 1},
		OccurredAt: occurred,
	}
}

func TestUpsertRequiresExternalID(t *testing.T) {
	svc := newService(t, nil, time.Now())

	e := event("", time.Now())
	_, err := svc.Upsert(context.Background(), e)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestUpsertRequiresAction(t *testing.T) {
	svc := newService(t, nil, time.Now())

	e := event("evt-1", time.Now())
	e.Action = ""
	_, err := svc.Upsert(context.Background(), e)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestUpsertDefaultsOccurredAt(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	broadcaster := &captureBroadcaster{}
	svc := newService(t, broadcaster, now)

	_, err := svc.Upsert(context.Background(), event("evt-1", time.Time{}))
	require.NoError(t, err)

	require.Len(t, broadcaster.events, 1)
	assert.Equal(t, now, broadcaster.events[0].OccurredAt)
}

func TestUpsertSameExternalIDOverwrites(t *testing.T) {
	svc := newService(t, nil, time.Now())
	older := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	first := event("evt-1", newer)
	first.Description = "initial"
	id1, err := svc.Upsert(context.Background(), first)
	require.NoError(t, err)

	// An older timestamp still overwrites: last received write wins.
	second := event("evt-1", older)
	second.Description = "resubmitted"
	id2, err := svc.Upsert(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "internal id is stable across overwrites")

	events, err := svc.GetSince(context.Background(), older.Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "resubmitted", events[0].Description)
	assert.Equal(t, older, events[0].OccurredAt)
}

func TestUpsertBroadcastFailureIsSwallowed(t *testing.T) {
	now := time.Now().UTC()
	broadcaster := &captureBroadcaster{err: errors.New("sink down")}
	svc := newService(t, broadcaster, now)

	id, err := svc.Upsert(context.Background(), event("evt-1", now))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	// The row survived the failed push and is visible via catch-up.
	events, err := svc.GetSince(context.Background(), now.Add(-time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestGetSinceNewestFirst(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	svc := newService(t, nil, base)

	for i := 0; i < 5; i++ {
		_, err := svc.Upsert(context.Background(), event(
			"evt-"+uuid.NewString(),
			base.Add(time.Duration(i)*time.Minute),
		))
		require.NoError(t, err)
	}

	events, err := svc.GetSince(context.Background(), base.Add(90*time.Second), 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i := 1; i < len(events); i++ {
		assert.True(t, events[i].OccurredAt.Before(events[i-1].OccurredAt))
	}
}

func TestGetSinceClampsTake(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	svc := newService(t, nil, base)

	for i := 0; i < 3; i++ {
		_, err := svc.Upsert(context.Background(), event(
			"evt-"+uuid.NewString(),
			base.Add(time.Duration(i)*time.Second),
		))
		require.NoError(t, err)
	}

	events, err := svc.GetSince(context.Background(), base.Add(-time.Hour), 0)
	require.NoError(t, err)
	assert.Len(t, events, 1, "take below 1 is clamped to 1")

	events, err = svc.GetSince(context.Background(), base.Add(-time.Hour), 5000)
	require.NoError(t, err)
	assert.Len(t, events, 3, "oversized take is clamped, not rejected")
}
