package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"aims/internal/cachestamp"
	"aims/internal/clock"
	"aims/internal/directory"
	"aims/internal/domain"
	"aims/internal/platform/metrics"
	dErrors "aims/pkg/domain-errors"
	"aims/pkg/platform/retry"
	"aims/pkg/platform/sentinel"
)

// Auditor records a state change in the audit ledger. The engine treats it as
// best effort: a failed audit write is logged and swallowed, never rolled
// into the assignment outcome.
type Auditor interface {
	Upsert(ctx context.Context, event domain.AuditEvent) (uuid.UUID, error)
}

const defaultAttempts = 3

// Service is the resource assignment engine: a capacity-checked,
// concurrency-safe open/close lifecycle for hardware units and software
// seats. Mutual exclusion rides on the resource version token; there are no
// in-process cross-request locks.
type Service struct {
	store     Store
	users     directory.UserDirectory
	resources directory.ResourceDirectory
	auditor   Auditor
	stamp     cachestamp.Stamp
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *metrics.Metrics
	attempts  int
	tracer    trace.Tracer
}

type Option func(*Service)

// WithAttempts overrides the retry budget for stale-token conflicts.
func WithAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.attempts = n
		}
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func NewService(
	store Store,
	users directory.UserDirectory,
	resources directory.ResourceDirectory,
	auditor Auditor,
	stamp cachestamp.Stamp,
	clk clock.Clock,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		store:     store,
		users:     users,
		resources: resources,
		auditor:   auditor,
		stamp:     stamp,
		clock:     clk,
		logger:    logger,
		attempts:  defaultAttempts,
		tracer:    otel.Tracer("aims/assignment"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AssignSeat opens a claim for holder on the resource. Idempotent: a holder
// that already has an open claim gets the existing assignment id back with no
// state change and no audit event.
func (s *Service) AssignSeat(ctx context.Context, resourceID, holderID, actorID int64, comment string) (uuid.UUID, error) {
	ctx, span := s.tracer.Start(ctx, "assignment.AssignSeat")
	defer span.End()

	if _, err := s.users.FindUser(ctx, holderID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return uuid.Nil, dErrors.Newf(dErrors.CodeNotFound, "user %d not found", holderID)
		}
		return uuid.Nil, fmt.Errorf("lookup holder: %w", err)
	}

	resource, err := s.lookupResource(ctx, resourceID)
	if err != nil {
		return uuid.Nil, err
	}

	if existing, err := s.store.FindOpenByHolder(ctx, resourceID, holderID); err != nil {
		return uuid.Nil, fmt.Errorf("check open assignment: %w", err)
	} else if existing != nil {
		return existing.ID, nil
	}

	var (
		assignment domain.Assignment
		reused     bool
	)

	err = retry.Do(ctx, s.attempts, func(ctx context.Context) error {
		// Every attempt works from fresh reads; nothing from a previous
		// attempt survives a token conflict.
		resource, err := s.lookupResource(ctx, resourceID)
		if err != nil {
			return err
		}

		if existing, err := s.store.FindOpenByHolder(ctx, resourceID, holderID); err != nil {
			return fmt.Errorf("check open assignment: %w", err)
		} else if existing != nil {
			assignment = *existing
			reused = true
			return nil
		}

		open, err := s.store.CountOpen(ctx, resourceID)
		if err != nil {
			return fmt.Errorf("count open assignments: %w", err)
		}
		if open >= resource.Capacity() {
			if s.metrics != nil {
				s.metrics.CapacityRejections.Inc()
			}
			return dErrors.Newf(dErrors.CodeCapacityExceeded,
				"%s has no free capacity (%d/%d in use)", resource.Ref, open, resource.Capacity())
		}

		assignment = domain.Assignment{
			ID:         uuid.New(),
			Resource:   resource.Ref,
			HolderID:   holderID,
			AssignedAt: s.clock.Now(),
			Comment:    comment,
		}
		reused = false

		if err := s.store.CreateOpen(ctx, assignment, resource.Version); err != nil {
			if errors.Is(err, sentinel.ErrVersionConflict) && s.metrics != nil {
				s.metrics.ConcurrencyConflicts.Inc()
			}
			return err
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, s.classifyRetryErr(err, "assign", resource.Ref)
	}
	if reused {
		return assignment.ID, nil
	}

	if s.metrics != nil {
		s.metrics.AssignmentsOpened.Inc()
	}
	s.afterMutation(ctx, domain.ActionAssign, assignment, actorID, comment)
	return assignment.ID, nil
}

// ReleaseSeat closes the holder's open claim on the resource. Idempotent: no
// open claim means no-op, with no error and no audit record.
func (s *Service) ReleaseSeat(ctx context.Context, resourceID, holderID, actorID int64, comment string) error {
	ctx, span := s.tracer.Start(ctx, "assignment.ReleaseSeat")
	defer span.End()

	open, err := s.store.FindOpenByHolder(ctx, resourceID, holderID)
	if err != nil {
		return fmt.Errorf("check open assignment: %w", err)
	}
	if open == nil {
		return nil
	}

	return s.close(ctx, *open, actorID, comment)
}

// ReleaseAssignment closes a claim by its assignment id. Unknown ids are an
// error; an already-closed assignment is a successful no-op.
func (s *Service) ReleaseAssignment(ctx context.Context, assignmentID uuid.UUID, actorID int64, comment string) error {
	ctx, span := s.tracer.Start(ctx, "assignment.ReleaseAssignment")
	defer span.End()

	a, err := s.store.FindByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "assignment %s not found", assignmentID)
		}
		return fmt.Errorf("find assignment: %w", err)
	}
	if !a.Open() {
		return nil
	}

	return s.close(ctx, a, actorID, comment)
}

func (s *Service) close(ctx context.Context, a domain.Assignment, actorID int64, comment string) error {
	released := false

	err := retry.Do(ctx, s.attempts, func(ctx context.Context) error {
		resource, err := s.lookupResourceAnyState(ctx, a.Resource.ID)
		if err != nil {
			return err
		}

		// Re-read the row: a concurrent release may have closed it already,
		// which makes this call a no-op rather than a failure.
		current, err := s.store.FindByID(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("re-read assignment: %w", err)
		}
		if !current.Open() {
			released = false
			return nil
		}

		if err := s.store.CloseOpen(ctx, a, s.clock.Now(), comment, resource.Version); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				// Raced with another release between the re-read and the
				// commit; the claim is closed either way.
				released = false
				return nil
			}
			if errors.Is(err, sentinel.ErrVersionConflict) && s.metrics != nil {
				s.metrics.ConcurrencyConflicts.Inc()
			}
			return err
		}
		released = true
		return nil
	})
	if err != nil {
		return s.classifyRetryErr(err, "release", a.Resource)
	}
	if !released {
		return nil
	}

	if s.metrics != nil {
		s.metrics.AssignmentsClosed.Inc()
	}
	s.afterMutation(ctx, domain.ActionUnassign, a, actorID, comment)
	return nil
}

// afterMutation runs the post-commit side effects: the best-effort audit
// upsert and the cache stamp bump. Neither can fail the mutation; the
// assignment is already durable.
func (s *Service) afterMutation(ctx context.Context, action domain.AuditAction, a domain.Assignment, actorID int64, comment string) {
	event := s.buildEvent(action, a, actorID, comment)
	if _, err := s.auditor.Upsert(ctx, event); err != nil {
		if s.metrics != nil {
			s.metrics.AuditWriteFailures.Inc()
		}
		s.logger.ErrorContext(ctx, "audit write failed; assignment stands",
			"action", string(action),
			"assignment_id", a.ID,
			"external_id", event.ExternalID,
			"error", err,
		)
	}

	if _, err := s.stamp.Bump(ctx); err != nil {
		s.logger.WarnContext(ctx, "cache stamp bump failed",
			"assignment_id", a.ID,
			"error", err,
		)
	}
}

func (s *Service) buildEvent(action domain.AuditAction, a domain.Assignment, actorID int64, comment string) domain.AuditEvent {
	var (
		externalID  string
		description string
		changes     []domain.FieldChange
	)

	holder := strconv.FormatInt(a.HolderID, 10)
	switch action {
	case domain.ActionAssign:
		externalID = "assign:" + a.ID.String()
		description = fmt.Sprintf("%s assigned to user %s", a.Resource, holder)
		changes = []domain.FieldChange{{Field: "holder", Old: "", New: holder}}
		if a.Resource.Kind.TracksUnitStatus() {
			changes = append(changes, domain.FieldChange{
				Field: "status",
				Old:   string(domain.StatusAvailable),
				New:   string(domain.StatusAssigned),
			})
		}
	default:
		externalID = "unassign:" + a.ID.String()
		description = fmt.Sprintf("%s released by user %s", a.Resource, holder)
		changes = []domain.FieldChange{{Field: "holder", Old: holder, New: ""}}
		if a.Resource.Kind.TracksUnitStatus() {
			changes = append(changes, domain.FieldChange{
				Field: "status",
				Old:   string(domain.StatusAssigned),
				New:   string(domain.StatusAvailable),
			})
		}
	}
	if comment != "" {
		description += ": " + comment
	}

	return domain.AuditEvent{
		ExternalID:  externalID,
		ActorID:     actorID,
		Action:      action,
		Resource:    a.Resource,
		OccurredAt:  s.clock.Now(),
		Description: description,
		Changes:     changes,
	}
}

func (s *Service) lookupResource(ctx context.Context, resourceID int64) (domain.Resource, error) {
	resource, err := s.lookupResourceAnyState(ctx, resourceID)
	if err != nil {
		return domain.Resource{}, err
	}
	if resource.Archived {
		return domain.Resource{}, dErrors.Newf(dErrors.CodeNotFound, "resource %d is archived", resourceID)
	}
	return resource, nil
}

func (s *Service) lookupResourceAnyState(ctx context.Context, resourceID int64) (domain.Resource, error) {
	resource, err := s.resources.FindResource(ctx, resourceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domain.Resource{}, dErrors.Newf(dErrors.CodeNotFound, "resource %d not found", resourceID)
		}
		return domain.Resource{}, fmt.Errorf("lookup resource: %w", err)
	}
	return resource, nil
}

func (s *Service) classifyRetryErr(err error, op string, ref domain.ResourceRef) error {
	if errors.Is(err, retry.ErrExhausted) {
		if s.metrics != nil {
			s.metrics.ConcurrencyExhausted.Inc()
		}
		return dErrors.Wrap(dErrors.CodeConcurrencyExhausted,
			fmt.Sprintf("%s of %s lost every retry to concurrent writers", op, ref), err)
	}
	return err
}
