// internal/queue/queue.go

// Package queue is the durable, priority-ordered backlog of sync requests.
// It decouples submission from execution so a bulk sync or a background
// trigger can throttle work across many projects without re-deciding
// priority each time.
package queue

import (
	"context"
	"log/slog"
	"time"

	"projtrack/internal/model"
	"projtrack/internal/ratelimit"
)

// Store is the persistence the queue needs. *store.Store satisfies it.
type Store interface {
	EnqueueSyncItem(ctx context.Context, projectID int64, priority int) (int64, error)
	PendingSyncBatch(ctx context.Context, platform model.Platform, limit int) ([]model.SyncQueueItem, error)
	SetQueueItemStatus(ctx context.Context, id int64, status string) error
	QueueStats(ctx context.Context) (model.QueueStats, error)
	ClearCompletedQueueItems(ctx context.Context, cutoff time.Time) (int64, error)
	RetryFailedQueueItems(ctx context.Context) (int64, error)
}

// Queue manages sync requests on top of the store, bounded by the shared
// per-platform rate limiters.
type Queue struct {
	store    Store
	limiters *ratelimit.Registry
	buffer   int
	logger   *slog.Logger
}

// New creates a queue sharing the given limiter registry with the
// orchestrator. buffer is the quota safety margin (see ratelimit).
func New(store Store, limiters *ratelimit.Registry, buffer int, logger *slog.Logger) *Queue {
	return &Queue{
		store:    store,
		limiters: limiters,
		buffer:   buffer,
		logger:   logger,
	}
}

// Add enqueues a sync request for a project. Re-submission while a pending
// item exists returns the existing item's id and creates no second row.
func (q *Queue) Add(ctx context.Context, projectID int64, priority int) (int64, error) {
	if priority < model.QueuePriorityHighest || priority > model.QueuePriorityLowest {
		priority = model.QueuePriorityDefault
	}
	return q.store.EnqueueSyncItem(ctx, projectID, priority)
}

// NextBatch returns the next rate-limit-bounded batch of pending items for a
// platform, lowest priority value first, FIFO within a priority. It returns
// an empty batch when the limiter has no headroom.
func (q *Queue) NextBatch(ctx context.Context, platform model.Platform, batchSize int) ([]model.SyncQueueItem, error) {
	limiter := q.limiters.For(platform)

	if !limiter.CanMakeRequest(q.buffer) {
		q.logger.Debug("Rate limit headroom exhausted, returning empty batch", "platform", platform)
		return nil, nil
	}

	fetchCount := batchSize
	if remaining := limiter.Remaining() - q.buffer; remaining < fetchCount {
		fetchCount = remaining
	}
	if fetchCount <= 0 {
		return nil, nil
	}

	return q.store.PendingSyncBatch(ctx, platform, fetchCount)
}

// MarkProcessing transitions an item to processing.
func (q *Queue) MarkProcessing(ctx context.Context, id int64) error {
	return q.store.SetQueueItemStatus(ctx, id, model.QueueStatusProcessing)
}

// MarkCompleted transitions an item to completed.
func (q *Queue) MarkCompleted(ctx context.Context, id int64) error {
	return q.store.SetQueueItemStatus(ctx, id, model.QueueStatusCompleted)
}

// MarkFailed transitions an item to failed. Failed items are not retried
// automatically; RetryFailed resets them explicitly.
func (q *Queue) MarkFailed(ctx context.Context, id int64) error {
	return q.store.SetQueueItemStatus(ctx, id, model.QueueStatusFailed)
}

// Stats returns per-status counts.
func (q *Queue) Stats(ctx context.Context) (model.QueueStats, error) {
	return q.store.QueueStats(ctx)
}

// ClearCompleted deletes completed items older than olderThanDays days and
// returns how many were removed.
func (q *Queue) ClearCompleted(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	return q.store.ClearCompletedQueueItems(ctx, cutoff)
}

// RetryFailed resets all failed items back to pending.
func (q *Queue) RetryFailed(ctx context.Context) (int64, error) {
	return q.store.RetryFailedQueueItems(ctx)
}
