package assignments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/shared"
)

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert creates an active assignment. The partial unique index on
// (principal_id, role_name) WHERE is_active is the compare-and-swap guard:
// a concurrent duplicate insert loses with a unique violation.
func (r *Repository) Insert(ctx context.Context, asg Assignment) (Assignment, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO role_assignments (principal_id, role_name, assigned_by, is_active, assigned_at)
VALUES ($1, $2, $3, TRUE, NOW())
RETURNING id, assigned_at`, asg.PrincipalID, asg.RoleName, asg.AssignedBy)
	if err := row.Scan(&asg.ID, &asg.AssignedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Assignment{}, fmt.Errorf("assignments: principal %d role %s: %w", asg.PrincipalID, asg.RoleName, shared.ErrAlreadyActive)
		}
		return Assignment{}, fmt.Errorf("assignments: insert: %w", err)
	}
	asg.IsActive = true
	return asg, nil
}

// Deactivate revokes the active assignment. The WHERE is_active predicate is
// the compare-and-swap: a racing revoke sees zero rows and reports NotFound.
func (r *Repository) Deactivate(ctx context.Context, principalID int64, roleName string) (Assignment, error) {
	row := r.pool.QueryRow(ctx, `UPDATE role_assignments
SET is_active = FALSE, revoked_at = NOW()
WHERE principal_id = $1 AND role_name = $2 AND is_active
RETURNING id, principal_id, role_name, assigned_by, assigned_at, revoked_at`, principalID, roleName)
	var (
		asg       Assignment
		revokedAt time.Time
	)
	if err := row.Scan(&asg.ID, &asg.PrincipalID, &asg.RoleName, &asg.AssignedBy, &asg.AssignedAt, &revokedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, fmt.Errorf("assignments: principal %d role %s: %w", principalID, roleName, shared.ErrNotFound)
		}
		return Assignment{}, fmt.Errorf("assignments: deactivate: %w", err)
	}
	asg.IsActive = false
	asg.RevokedAt = &revokedAt
	return asg, nil
}

// ActiveByPrincipal lists active role names for the principal.
func (r *Repository) ActiveByPrincipal(ctx context.Context, principalID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT role_name FROM role_assignments
WHERE principal_id = $1 AND is_active ORDER BY role_name`, principalID)
	if err != nil {
		return nil, fmt.Errorf("assignments: active roles: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}
