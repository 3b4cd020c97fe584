// internal/store/queue.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"projtrack/internal/model"
)

// EnqueueSyncItem inserts a pending queue item for a project, or returns the
// id of the existing pending item (idempotent enqueue: at most one pending
// item per project).
func (s *Store) EnqueueSyncItem(ctx context.Context, projectID int64, priority int) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var existing int64
	err = tx.GetContext(ctx, &existing, `
		SELECT id FROM sync_queue
		WHERE project_id = ? AND status = ?`, projectID, model.QueueStatusPending)
	if err == nil {
		return existing, tx.Commit()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to check sync queue: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO sync_queue (project_id, priority, requested_at, status)
		VALUES (?, ?, ?, ?)`,
		projectID, priority, now(), model.QueueStatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue sync item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

// PendingSyncBatch returns up to limit pending items whose project has sync
// enabled for the given platform, lowest priority value first, FIFO within a
// priority.
func (s *Store) PendingSyncBatch(ctx context.Context, platform model.Platform, limit int) ([]model.SyncQueueItem, error) {
	var items []model.SyncQueueItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT q.id, q.project_id, q.priority, q.requested_at, q.status
		FROM sync_queue q
		INNER JOIN projects p ON q.project_id = p.id
		INNER JOIN remote_repos r ON p.id = r.project_id
		WHERE q.status = ? AND r.platform = ? AND r.sync_enabled = 1
		ORDER BY q.priority ASC, q.requested_at ASC, q.id ASC
		LIMIT ?`, model.QueueStatusPending, platform, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sync batch: %w", err)
	}
	return items, nil
}

// SetQueueItemStatus transitions a queue item unconditionally; callers are
// responsible for the correct sequence (processing before completed/failed).
func (s *Store) SetQueueItemStatus(ctx context.Context, id int64, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_queue SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update queue item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// QueueStats returns per-status item counts.
func (s *Store) QueueStats(ctx context.Context) (model.QueueStats, error) {
	rows, err := s.db.QueryxContext(ctx,
		`SELECT status, COUNT(*) FROM sync_queue GROUP BY status`)
	if err != nil {
		return model.QueueStats{}, fmt.Errorf("failed to get queue stats: %w", err)
	}
	defer rows.Close()

	var stats model.QueueStats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return model.QueueStats{}, err
		}
		switch status {
		case model.QueueStatusPending:
			stats.Pending = count
		case model.QueueStatusProcessing:
			stats.Processing = count
		case model.QueueStatusCompleted:
			stats.Completed = count
		case model.QueueStatusFailed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}

// ClearCompletedQueueItems deletes completed items requested before the
// cutoff and returns how many were removed. Failed items are never cleared
// automatically; they stay for operator inspection.
func (s *Store) ClearCompletedQueueItems(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM sync_queue
		WHERE status = ? AND requested_at < ?`, model.QueueStatusCompleted, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clear completed items: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailedQueueItems resets every failed item back to pending and returns
// how many were reset.
func (s *Store) RetryFailedQueueItems(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_queue SET status = ?, requested_at = ?
		WHERE status = ?`, model.QueueStatusPending, now(), model.QueueStatusFailed)
	if err != nil {
		return 0, fmt.Errorf("failed to retry failed items: %w", err)
	}
	return res.RowsAffected()
}
