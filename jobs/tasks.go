package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/audit"
)

const (
	// QueueDefault is the queue all engine tasks run on.
	QueueDefault = "default"
	// TaskAuditRecord retries an audit write that the synchronous path
	// could not land.
	TaskAuditRecord = "audit:record"
)

// NewAuditRecordTask wraps a fully populated audit record for the retry
// queue. The record already carries its ID and timestamp, so replays are
// idempotent at the store.
func NewAuditRecordTask(rec audit.Record) (*asynq.Task, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRecord, data), nil
}

// NewAuditRecordHandler builds the worker-side handler that re-inserts
// deferred audit records. Insert failures return the error so asynq retries
// with backoff; a payload that cannot unmarshal is dropped for good.
func NewAuditRecordHandler(store audit.Store) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var rec audit.Record
		if err := json.Unmarshal(t.Payload(), &rec); err != nil {
			return asynq.SkipRetry
		}
		return store.Insert(ctx, rec)
	}
}
