package audit

import "context"

// Store persists and pages audit records.
type Store interface {
	Insert(ctx context.Context, rec Record) error
	// Page returns up to limit records matching the filter, strictly after
	// the cursor, ascending by (occurred_at, id).
	Page(ctx context.Context, filter Filter, after Cursor, limit int) ([]Record, error)
}
