// Package domain holds the transport-agnostic types shared by the assignment
// engine, the audit pipeline and the HTTP layer.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ResourceKind tags a resource as a single hardware unit or a seat-licensed
// software product. Kind-specific policy (capacity, status transitions) hangs
// off this tag so the engine never branches on it directly.
type ResourceKind string

const (
	KindHardware ResourceKind = "hardware"
	KindSoftware ResourceKind = "software"
)

// ParseResourceKind validates a caller-supplied kind string.
func ParseResourceKind(s string) (ResourceKind, error) {
	switch ResourceKind(strings.ToLower(s)) {
	case KindHardware:
		return KindHardware, nil
	case KindSoftware:
		return KindSoftware, nil
	default:
		return "", fmt.Errorf("unknown resource kind %q", s)
	}
}

// Capacity is the maximum number of simultaneous open assignments for a
// resource of this kind. Hardware is always one unit. A software product
// declared with zero seats stays singly claimable rather than unclaimable.
func (k ResourceKind) Capacity(totalSeats int) int {
	if k == KindHardware {
		return 1
	}
	if totalSeats < 1 {
		return 1
	}
	return totalSeats
}

// TracksUnitStatus reports whether resources of this kind carry an
// available/assigned status that flips with each open/close.
func (k ResourceKind) TracksUnitStatus() bool {
	return k == KindHardware
}

// Label renders the kind for audit targets ("Hardware", "Software").
func (k ResourceKind) Label() string {
	switch k {
	case KindHardware:
		return "Hardware"
	case KindSoftware:
		return "Software"
	default:
		return string(k)
	}
}

// ResourceRef identifies one resource: a kind tag plus its directory id.
type ResourceRef struct {
	Kind ResourceKind
	ID   int64
}

// String renders the audit target form, e.g. "Hardware#42".
func (r ResourceRef) String() string {
	return fmt.Sprintf("%s#%d", r.Kind.Label(), r.ID)
}

// ResourceStatus is the hardware unit state tracked alongside assignments.
type ResourceStatus string

const (
	StatusAvailable ResourceStatus = "available"
	StatusAssigned  ResourceStatus = "assigned"
)

// Resource is the directory view of one assignable resource, including the
// optimistic-concurrency token guarding its assignment state.
type Resource struct {
	Ref        ResourceRef
	Name       string
	TotalSeats int
	Status     ResourceStatus
	Archived   bool
	Version    int64
}

// Capacity applies the kind policy to this resource's declared seats.
func (r Resource) Capacity() int {
	return r.Ref.Kind.Capacity(r.TotalSeats)
}

// User is the directory view of a holder or actor.
type User struct {
	ID          int64
	DisplayName string
}

// Assignment is one holder's claim on one resource unit. Created open,
// closed exactly once by release, never deleted or reopened; a later claim
// creates a new row.
type Assignment struct {
	ID           uuid.UUID
	Resource     ResourceRef
	HolderID     int64
	AssignedAt   time.Time
	UnassignedAt *time.Time
	Comment      string
}

// Open reports whether the claim is still held.
func (a Assignment) Open() bool {
	return a.UnassignedAt == nil
}
