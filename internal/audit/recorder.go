package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Enqueuer hands a failed write to the retry queue for at-least-once
// delivery. Implemented by jobs.Client.
type Enqueuer interface {
	EnqueueAuditRecord(ctx context.Context, rec Record) error
}

// Recorder appends audit records without ever failing the triggering
// operation: a rejected synchronous write is retried asynchronously.
type Recorder struct {
	store   Store
	queue   Enqueuer
	logger  *slog.Logger
	onRetry func()
}

// NewRecorder constructs a Recorder. queue may be nil in tests; onRetry is
// an optional metrics hook invoked when a write is deferred to the queue.
func NewRecorder(store Store, queue Enqueuer, logger *slog.Logger, onRetry func()) *Recorder {
	return &Recorder{store: store, queue: queue, logger: logger, onRetry: onRetry}
}

// Record appends the entry, falling back to the retry queue on sink failure.
func (r *Recorder) Record(ctx context.Context, rec Record) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	}
	if err := r.store.Insert(ctx, rec); err == nil {
		return
	} else {
		r.logger.Warn("audit sink unavailable, deferring to retry queue",
			slog.String("kind", string(rec.Kind)),
			slog.String("target", rec.TargetID),
			slog.Any("error", err))
	}
	if r.onRetry != nil {
		r.onRetry()
	}
	if r.queue == nil {
		r.logger.Error("audit record dropped, no retry queue configured",
			slog.String("kind", string(rec.Kind)),
			slog.String("target", rec.TargetID))
		return
	}
	if err := r.queue.EnqueueAuditRecord(ctx, rec); err != nil {
		r.logger.Error("enqueue audit retry",
			slog.String("kind", string(rec.Kind)),
			slog.Any("error", err))
	}
}
