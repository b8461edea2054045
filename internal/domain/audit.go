package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction classifies a state change recorded in the audit ledger.
type AuditAction string

const (
	ActionAssign   AuditAction = "Assign"
	ActionUnassign AuditAction = "Unassign"
	ActionCreate   AuditAction = "Create"
	ActionUpdate   AuditAction = "Update"
	ActionArchive  AuditAction = "Archive"
)

// FieldChange is one (field, old, new) entry in an audit event's change list.
// Order is meaningful and preserved.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// AuditEvent is an immutable-by-identity record of one state change. Identity
// is the caller-supplied ExternalID; re-submission under the same ExternalID
// overwrites the mutable fields in place, so retried requests never produce
// duplicate rows.
type AuditEvent struct {
	ID          uuid.UUID
	ExternalID  string
	ActorID     int64
	Action      AuditAction
	Resource    ResourceRef
	OccurredAt  time.Time
	Description string
	Changes     []FieldChange
}
