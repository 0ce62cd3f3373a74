package approvals

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an approval request.
type Status string

// Request lifecycle. PENDING is the only non-terminal state; once a request
// leaves it the record is immutable.
const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Terminal reports whether the status accepts no further decisions.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Decision is the outcome of a single approval step.
type Decision string

// Step decisions. A single rejection terminalizes the whole request.
const (
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
)

// Valid reports whether the decision is one of the two known values.
func (d Decision) Valid() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// ApprovalRequest is a privileged operation awaiting authorization. The
// required chain is computed once at creation and frozen, so mid-flight role
// reassignments never alter an in-progress request. Version guards every
// mutation with optimistic concurrency.
type ApprovalRequest struct {
	ID            uuid.UUID       `json:"id"`
	OperationType string          `json:"operation_type"`
	Title         string          `json:"title"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	SubmitterID   int64           `json:"submitter_id"`
	Status        Status          `json:"status"`
	RequiredChain []string        `json:"required_chain"`
	ChainPosition int             `json:"chain_position"`
	Version       int64           `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CurrentRole returns the chain role awaiting a decision. The second return
// is false for terminal or auto-approved requests.
func (r ApprovalRequest) CurrentRole() (string, bool) {
	if r.Status != StatusPending || r.ChainPosition >= len(r.RequiredChain) {
		return "", false
	}
	return r.RequiredChain[r.ChainPosition], true
}

// ApprovalStep is one recorded decision. Steps are append-only; ordered by
// DecidedAt they mirror a prefix of the request's required chain.
type ApprovalStep struct {
	ID        int64     `json:"id"`
	RequestID uuid.UUID `json:"request_id"`
	RoleName  string    `json:"role_name"`
	DeciderID int64     `json:"decider_id"`
	Decision  Decision  `json:"decision"`
	Comments  string    `json:"comments,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}
