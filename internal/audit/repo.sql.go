package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/shared"
)

// Repository provides PostgreSQL backed persistence for audit records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends one record. Replays from the retry queue carry the same id,
// so duplicates are ignored rather than erroring.
func (r *Repository) Insert(ctx context.Context, rec Record) error {
	summary, err := json.Marshal(rec.Summary)
	if err != nil {
		return fmt.Errorf("audit: marshal summary: %w", err)
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO audit_records (id, action_kind, actor_id, target_id, summary, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO NOTHING`, rec.ID, string(rec.Kind), rec.ActorID, rec.TargetID, summary, rec.OccurredAt)
	if err != nil {
		return fmt.Errorf("audit: insert %s: %v: %w", rec.Kind, err, shared.ErrAuditUnavailable)
	}
	return nil
}

// Page returns records after the cursor in ascending (occurred_at, id) order.
func (r *Repository) Page(ctx context.Context, filter Filter, after Cursor, limit int) ([]Record, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.TargetID != "" {
		conds = append(conds, "target_id = "+arg(filter.TargetID))
	}
	if filter.ActorID != 0 {
		conds = append(conds, "actor_id = "+arg(filter.ActorID))
	}
	if filter.Kind != "" {
		conds = append(conds, "action_kind = "+arg(string(filter.Kind)))
	}
	if !filter.From.IsZero() {
		conds = append(conds, "occurred_at >= "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		conds = append(conds, "occurred_at <= "+arg(filter.To))
	}
	if !after.IsZero() {
		conds = append(conds, "(occurred_at, id) > ("+arg(after.OccurredAt)+", "+arg(after.ID)+")")
	}
	query := `SELECT id, action_kind, actor_id, target_id, summary, occurred_at FROM audit_records`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY occurred_at, id LIMIT " + arg(limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: page: %w", err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var (
			rec     Record
			kind    string
			summary []byte
		)
		if err := rows.Scan(&rec.ID, &kind, &rec.ActorID, &rec.TargetID, &summary, &rec.OccurredAt); err != nil {
			return nil, err
		}
		rec.Kind = ActionKind(kind)
		if len(summary) > 0 {
			if err := json.Unmarshal(summary, &rec.Summary); err != nil {
				return nil, fmt.Errorf("audit: unmarshal summary: %w", err)
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
