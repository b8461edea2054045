package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"aims/internal/clock"
	"aims/internal/domain"
	"aims/internal/platform/metrics"
	dErrors "aims/pkg/domain-errors"
	"aims/pkg/platform/sentinel"
)

// Broadcaster pushes a committed event to connected subscribers. Delivery is
// best effort; the store row is the durable source of truth, not the push.
type Broadcaster interface {
	Publish(ctx context.Context, event domain.AuditEvent) error
}

const maxTake = 200

// Service fronts the audit ledger: it validates and defaults incoming
// records, performs the idempotent upsert, and fans the committed event out
// to subscribers.
type Service struct {
	store       Store
	broadcaster Broadcaster
	logger      *slog.Logger
	metrics     *metrics.Metrics
	clock       clock.Clock
}

func NewService(store Store, broadcaster Broadcaster, logger *slog.Logger, m *metrics.Metrics, clk clock.Clock) *Service {
	return &Service{
		store:       store,
		broadcaster: broadcaster,
		logger:      logger,
		metrics:     m,
		clock:       clk,
	}
}

// Upsert records a state change. Calling it again with the same external id
// overwrites the earlier submission: latest received write wins, regardless
// of the embedded timestamps.
func (s *Service) Upsert(ctx context.Context, event domain.AuditEvent) (uuid.UUID, error) {
	if event.ExternalID == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "externalId is required")
	}
	if event.Action == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "action is required")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.clock.Now()
	}

	id, err := s.store.Upsert(ctx, event)
	if err != nil {
		return uuid.Nil, err
	}
	event.ID = id

	if s.metrics != nil {
		s.metrics.AuditUpserts.Inc()
	}

	if s.broadcaster != nil {
		if err := s.broadcaster.Publish(ctx, event); err != nil {
			// The row is durable; a lost push is recovered via catch-up.
			if s.metrics != nil {
				s.metrics.BroadcastFailures.Inc()
			}
			s.logger.WarnContext(ctx, "audit broadcast failed",
				"external_id", event.ExternalID,
				"error", err,
			)
		}
	}

	return id, nil
}

// GetByID returns one ledger row by internal id.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (domain.AuditEvent, error) {
	event, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domain.AuditEvent{}, dErrors.Newf(dErrors.CodeNotFound, "audit event %s not found", id)
		}
		return domain.AuditEvent{}, err
	}
	return event, nil
}

// GetSince returns events newer than since, newest first. take is clamped to
// [1, 200].
func (s *Service) GetSince(ctx context.Context, since time.Time, take int) ([]domain.AuditEvent, error) {
	if take < 1 {
		take = 1
	}
	if take > maxTake {
		take = maxTake
	}
	return s.store.GetSince(ctx, since, take)
}
