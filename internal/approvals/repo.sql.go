package approvals

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/platform/db"
	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts the request with its frozen chain.
func (r *Repository) Create(ctx context.Context, req ApprovalRequest) error {
	payload := req.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO approval_requests
(id, operation_type, title, payload, submitter_id, status, required_chain, chain_position, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		req.ID, req.OperationType, req.Title, []byte(payload), req.SubmitterID,
		string(req.Status), req.RequiredChain, req.ChainPosition, req.Version,
		req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("approvals: create request: %w", err)
	}
	return nil
}

const requestColumns = `id, operation_type, title, payload, submitter_id, status, required_chain, chain_position, version, created_at, updated_at`

// Get loads a request by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (ApprovalRequest, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM approval_requests WHERE id = $1`, id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ApprovalRequest{}, fmt.Errorf("approvals: request %s: %w", id, shared.ErrNotFound)
		}
		return ApprovalRequest{}, fmt.Errorf("approvals: get request: %w", err)
	}
	return req, nil
}

// Decide writes the new state guarded by the version read, and appends the
// step in the same transaction. Zero rows updated means a concurrent decider
// won the race.
func (r *Repository) Decide(ctx context.Context, req ApprovalRequest, step ApprovalStep) (ApprovalRequest, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE approval_requests
SET status = $1, chain_position = $2, version = version + 1, updated_at = $3
WHERE id = $4 AND version = $5`,
			string(req.Status), req.ChainPosition, req.UpdatedAt, req.ID, req.Version)
		if err != nil {
			return fmt.Errorf("approvals: update request: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("approvals: request %s version %d: %w", req.ID, req.Version, shared.ErrConflict)
		}

		_, err = tx.Exec(ctx, `INSERT INTO approval_steps (request_id, role_name, decider_id, decision, comments, decided_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
			step.RequestID, step.RoleName, step.DeciderID, string(step.Decision), step.Comments, step.DecidedAt)
		if err != nil {
			return fmt.Errorf("approvals: append step: %w", err)
		}
		return nil
	})
	if err != nil {
		if isConcurrencyFailure(err) {
			return ApprovalRequest{}, fmt.Errorf("approvals: request %s version %d: %w", req.ID, req.Version, shared.ErrConflict)
		}
		return ApprovalRequest{}, err
	}
	req.Version++
	return req, nil
}

// Postgres reports write-write races under elevated isolation as
// serialization failures (40001) or deadlocks (40P01). Either way the
// decider lost the race and the caller should re-read and retry.
func isConcurrencyFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// Steps lists a request's decisions in order.
func (r *Repository) Steps(ctx context.Context, requestID uuid.UUID) ([]ApprovalStep, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, request_id, role_name, decider_id, decision, comments, decided_at
FROM approval_steps WHERE request_id = $1 ORDER BY decided_at, id`, requestID)
	if err != nil {
		return nil, fmt.Errorf("approvals: steps: %w", err)
	}
	defer rows.Close()
	var steps []ApprovalStep
	for rows.Next() {
		var (
			step     ApprovalStep
			decision string
		)
		if err := rows.Scan(&step.ID, &step.RequestID, &step.RoleName, &step.DeciderID, &decision, &step.Comments, &step.DecidedAt); err != nil {
			return nil, err
		}
		step.Decision = Decision(decision)
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return steps, nil
}

// ListPendingByRoles lists pending requests currently waiting on any of the
// given roles, oldest first.
func (r *Repository) ListPendingByRoles(ctx context.Context, roleNames []string) ([]ApprovalRequest, error) {
	if len(roleNames) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+requestColumns+` FROM approval_requests
WHERE status = 'PENDING' AND required_chain[chain_position + 1] = ANY($1)
ORDER BY created_at`, roleNames)
	if err != nil {
		return nil, fmt.Errorf("approvals: list pending: %w", err)
	}
	defer rows.Close()
	var out []ApprovalRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanRequest(row pgx.Row) (ApprovalRequest, error) {
	var (
		req     ApprovalRequest
		status  string
		payload []byte
	)
	err := row.Scan(&req.ID, &req.OperationType, &req.Title, &payload, &req.SubmitterID,
		&status, &req.RequiredChain, &req.ChainPosition, &req.Version, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return ApprovalRequest{}, err
	}
	req.Status = Status(status)
	req.Payload = payload
	return req, nil
}
