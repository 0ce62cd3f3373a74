// Package authz is the single entry point for role-hierarchy authorization
// and the approval workflow. External callers go through the Facade; no
// other component exposes privilege comparisons.
package authz

import (
	"context"

	"github.com/google/uuid"

	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/approvals"
	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/assignments"
	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/audit"
	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/roles"
)

// Facade composes the catalog, assignment store, approval state machine and
// audit trail behind one boundary.
type Facade struct {
	catalog     *roles.Catalog
	assignments *assignments.Service
	approvals   *approvals.Service
	auditStore  audit.Store
}

// NewFacade constructs the facade.
func NewFacade(catalog *roles.Catalog, asg *assignments.Service, apr *approvals.Service, auditStore audit.Store) *Facade {
	return &Facade{catalog: catalog, assignments: asg, approvals: apr, auditStore: auditStore}
}

// Roles lists the catalog ascending by privilege level.
func (f *Facade) Roles() []roles.Role {
	return f.catalog.Ordered()
}

// AssignRole binds a role to a principal. assignedBy is nil for
// system-performed assignments.
func (f *Facade) AssignRole(ctx context.Context, principalID int64, roleName string, assignedBy *int64) (assignments.Assignment, error) {
	return f.assignments.Assign(ctx, principalID, roleName, assignedBy)
}

// RevokeRole deactivates the principal's active assignment of the role.
func (f *Facade) RevokeRole(ctx context.Context, principalID int64, roleName string, revokedBy int64) error {
	return f.assignments.Revoke(ctx, principalID, roleName, revokedBy)
}

// PrincipalRoles returns the principal's active role names.
func (f *Facade) PrincipalRoles(ctx context.Context, principalID int64) ([]string, error) {
	return f.assignments.ActiveRoles(ctx, principalID)
}

// CanAct reports whether the principal equals or outranks the target role.
// This is the one consolidated privilege check; every caller routes through
// it rather than comparing levels itself.
func (f *Facade) CanAct(ctx context.Context, principalID int64, targetRole string) (bool, error) {
	targetLevel, err := f.catalog.LevelOf(targetRole)
	if err != nil {
		return false, err
	}
	highest, holds, err := f.assignments.HighestLevel(ctx, principalID)
	if err != nil {
		return false, err
	}
	return holds && highest >= targetLevel, nil
}

// SubmitRequest creates an approval request for the operation.
func (f *Facade) SubmitRequest(ctx context.Context, input approvals.SubmitInput) (approvals.ApprovalRequest, error) {
	return f.approvals.Submit(ctx, input)
}

// Decide records one approval step on a pending request.
func (f *Facade) Decide(ctx context.Context, requestID uuid.UUID, deciderID int64, decision approvals.Decision, comments string) (approvals.ApprovalRequest, error) {
	return f.approvals.Decide(ctx, requestID, deciderID, decision, comments)
}

// GetRequest loads a single approval request.
func (f *Facade) GetRequest(ctx context.Context, requestID uuid.UUID) (approvals.ApprovalRequest, error) {
	return f.approvals.Get(ctx, requestID)
}

// RequestSteps lists a request's recorded decisions.
func (f *Facade) RequestSteps(ctx context.Context, requestID uuid.UUID) ([]approvals.ApprovalStep, error) {
	return f.approvals.Steps(ctx, requestID)
}

// ListPendingByRole lists pending requests waiting on the named role.
func (f *Facade) ListPendingByRole(ctx context.Context, roleName string) ([]approvals.ApprovalRequest, error) {
	return f.approvals.ListPendingByRole(ctx, roleName)
}

// ListPendingFor lists pending requests the principal may decide.
func (f *Facade) ListPendingFor(ctx context.Context, principalID int64) ([]approvals.ApprovalRequest, error) {
	return f.approvals.ListPendingFor(ctx, principalID)
}

// AuditTrail returns a lazy, restartable stream over the audit log. Pass the
// zero cursor to read from the beginning.
func (f *Facade) AuditTrail(filter audit.Filter, after audit.Cursor) *audit.Stream {
	return audit.ResumeStream(f.auditStore, filter, after)
}
