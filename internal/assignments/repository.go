package assignments

import "context"

// RepositoryPort describes persistence operations used by Service.
type RepositoryPort interface {
	// Insert creates an active assignment. Returns shared.ErrAlreadyActive
	// when an active row for the same (principal, role) exists.
	Insert(ctx context.Context, asg Assignment) (Assignment, error)
	// Deactivate revokes the active assignment for (principal, role).
	// Returns shared.ErrNotFound when no active row exists, so a second
	// revoke reports cleanly instead of crashing.
	Deactivate(ctx context.Context, principalID int64, roleName string) (Assignment, error)
	// ActiveByPrincipal lists role names of the principal's active
	// assignments.
	ActiveByPrincipal(ctx context.Context, principalID int64) ([]string, error)
}
