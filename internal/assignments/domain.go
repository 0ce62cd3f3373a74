package assignments

import "time"

// Assignment binds a principal to a role. Rows are append/revoke, never
// updated in place: revocation flips IsActive and stamps RevokedAt so the
// full history survives.
type Assignment struct {
	ID          int64      `json:"id"`
	PrincipalID int64      `json:"principal_id"`
	RoleName    string     `json:"role_name"`
	AssignedBy  *int64     `json:"assigned_by,omitempty"`
	IsActive    bool       `json:"is_active"`
	AssignedAt  time.Time  `json:"assigned_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}
