package approvals

import (
	"context"

	"github.com/google/uuid"
)

// RepositoryPort describes persistence operations used by Service.
type RepositoryPort interface {
	Create(ctx context.Context, req ApprovalRequest) error
	// Get returns the request or shared.ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (ApprovalRequest, error)
	// Decide atomically persists the mutated request and appends its step.
	// req carries the new status and chain position but the version that was
	// read; the write is conditioned on that version being unchanged and
	// increments it. A stale version returns shared.ErrConflict.
	Decide(ctx context.Context, req ApprovalRequest, step ApprovalStep) (ApprovalRequest, error)
	Steps(ctx context.Context, requestID uuid.UUID) ([]ApprovalStep, error)
	// ListPendingByRoles lists pending requests whose current chain role is
	// one of the given names, oldest first.
	ListPendingByRoles(ctx context.Context, roleNames []string) ([]ApprovalRequest, error)
}
