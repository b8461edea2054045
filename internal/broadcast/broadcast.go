// Package broadcast pushes committed audit events to connected subscribers.
// Every sink is best effort: a failed or dropped push is invisible to the
// triggering mutation, and clients recover through the catch-up poller.
package broadcast

import (
	"context"
	"errors"
	"log/slog"

	"aims/internal/audit"
	"aims/internal/directory"
	"aims/internal/domain"
)

// Sink delivers one serialized event to one transport (in-process hub, Redis
// pub/sub, Kafka topic).
type Sink interface {
	Publish(ctx context.Context, dto audit.EventDTO) error
}

// Fanout implements audit.Broadcaster over any number of sinks. It resolves
// the actor's display name once and pushes the same DTO everywhere.
type Fanout struct {
	users  directory.UserDirectory
	sinks  []Sink
	logger *slog.Logger
}

func NewFanout(users directory.UserDirectory, logger *slog.Logger, sinks ...Sink) *Fanout {
	return &Fanout{users: users, sinks: sinks, logger: logger}
}

func (f *Fanout) Publish(ctx context.Context, event domain.AuditEvent) error {
	var actorName string
	if user, err := f.users.FindUser(ctx, event.ActorID); err == nil {
		actorName = user.DisplayName
	}

	dto := audit.NewEventDTO(event, actorName)

	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Publish(ctx, dto); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
