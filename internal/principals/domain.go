package principals

import "time"

// Principal is a local account capable of holding roles and deciding
// approval steps. Directory synchronization lives outside the engine; only
// the resulting accounts are stored here.
type Principal struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
