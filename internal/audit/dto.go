package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"aims/internal/domain"
)

// EventDTO is the transport shape shared by the catch-up poller and the
// real-time push channel, so subscribers and pollers can deduplicate against
// each other by id or hash.
type EventDTO struct {
	ID            string    `json:"id"`
	OccurredAtUTC time.Time `json:"occurredAtUtc"`
	Type          string    `json:"type"`
	User          string    `json:"user"`
	Target        string    `json:"target"`
	Details       string    `json:"details"`
	Hash          string    `json:"hash"`
}

// NewEventDTO maps a ledger row to its transport record. actorName may be
// empty when the directory no longer knows the actor.
func NewEventDTO(event domain.AuditEvent, actorName string) EventDTO {
	id := event.ExternalID
	if id == "" {
		id = event.ID.String()
	}

	dto := EventDTO{
		ID:            id,
		OccurredAtUTC: event.OccurredAt.UTC(),
		Type:          string(event.Action),
		User:          formatUser(actorName, event.ActorID),
		Target:        event.Resource.String(),
		Details:       event.Description,
	}
	dto.Hash = contentHash(dto)
	return dto
}

func formatUser(name string, id int64) string {
	if name == "" {
		name = "unknown"
	}
	return fmt.Sprintf("%s (%d)", name, id)
}

// contentHash is a stable digest over the immutable identity fields only, so
// a record keeps its hash across DTO re-serialization.
func contentHash(dto EventDTO) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		dto.ID,
		dto.OccurredAtUTC.Format(time.RFC3339Nano),
		dto.Type,
		dto.Target,
	}, "|")))
	return hex.EncodeToString(sum[:8])
}
