package roles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository mirrors the catalog into the roles table. role_assignments and
// approval_steps foreign-key onto it, so it must be populated before any
// assignment is written; reads still go through the in-memory Catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Sync upserts every catalog role. Run once at startup after loading the
// configuration.
func (r *Repository) Sync(ctx context.Context, catalog *Catalog) error {
	return syncRoles(ctx, r.pool, catalog.Ordered())
}

func syncRoles(ctx context.Context, ex execer, list []Role) error {
	for _, role := range list {
		_, err := ex.Exec(ctx, `INSERT INTO roles (name, privilege_level, display_label)
VALUES ($1, $2, $3)
ON CONFLICT (name) DO UPDATE
SET privilege_level = EXCLUDED.privilege_level, display_label = EXCLUDED.display_label`,
			role.Name, role.Level, role.Label)
		if err != nil {
			return fmt.Errorf("roles: sync %s: %w", role.Name, err)
		}
	}
	return nil
}
