package audit

import (
	"time"

	"github.com/google/uuid"
)

// ActionKind tags an audit record with the event that produced it.
type ActionKind string

// Action kinds covering role assignment and the approval lifecycle.
const (
	KindRoleAssigned        ActionKind = "role.assigned"
	KindRoleRevoked         ActionKind = "role.revoked"
	KindRequestSubmitted    ActionKind = "request.submitted"
	KindRequestAutoApproved ActionKind = "request.auto_approved"
	KindStepApproved        ActionKind = "step.approved"
	KindStepRejected        ActionKind = "step.rejected"
)

// Record is one append-only audit entry. It is a derived, write-once
// stream: nothing in live state references it.
type Record struct {
	ID         uuid.UUID      `json:"id"`
	Kind       ActionKind     `json:"kind"`
	ActorID    int64          `json:"actor_id"`
	TargetID   string         `json:"target_id"`
	Summary    map[string]any `json:"summary,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Filter narrows an audit query. Zero fields match everything.
type Filter struct {
	TargetID string
	ActorID  int64
	Kind     ActionKind
	From     time.Time
	To       time.Time
}

// Cursor marks a position in the ascending (occurred_at, id) order so a
// stream can be restarted after the last record seen.
type Cursor struct {
	OccurredAt time.Time `json:"occurred_at"`
	ID         uuid.UUID `json:"id"`
}

// IsZero reports whether the cursor is the stream start.
func (c Cursor) IsZero() bool {
	return c.OccurredAt.IsZero() && c.ID == uuid.Nil
}
