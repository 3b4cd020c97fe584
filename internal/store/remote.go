// internal/store/remote.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"projtrack/internal/model"
)

// EnableSync creates or refreshes the remote link for a project and turns sync
// on. The project_id unique constraint keeps at most one link per project.
func (s *Store) EnableSync(ctx context.Context, projectID int64, platform model.Platform, owner, repoName, remoteURL, defaultBranch string) error {
	if defaultBranch == "" {
		defaultBranch = "main"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO remote_repos (project_id, platform, owner, repo_name, remote_url, default_branch, sync_enabled)
		VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(project_id) DO UPDATE SET
			platform = excluded.platform,
			owner = excluded.owner,
			repo_name = excluded.repo_name,
			remote_url = excluded.remote_url,
			default_branch = excluded.default_branch,
			sync_enabled = 1`,
		projectID, platform, owner, repoName, remoteURL, defaultBranch)
	if err != nil {
		return fmt.Errorf("failed to enable sync: %w", err)
	}
	return nil
}

// DisableSync turns sync off for a project. With deleteCache it removes the
// link row along with its cached metrics and pipeline history.
func (s *Store) DisableSync(ctx context.Context, projectID int64, deleteCache bool) error {
	if !deleteCache {
		_, err := s.db.ExecContext(ctx,
			`UPDATE remote_repos SET sync_enabled = 0 WHERE project_id = ?`, projectID)
		if err != nil {
			return fmt.Errorf("failed to disable sync: %w", err)
		}
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM remote_metrics_cache WHERE remote_repo_id IN
			(SELECT id FROM remote_repos WHERE project_id = ?)`,
		`DELETE FROM pipeline_status WHERE remote_repo_id IN
			(SELECT id FROM remote_repos WHERE project_id = ?)`,
		`DELETE FROM remote_repos WHERE project_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, projectID); err != nil {
			return fmt.Errorf("failed to delete sync cache: %w", err)
		}
	}
	return tx.Commit()
}

// GetRemoteRepo returns the remote link for a project, or ErrNotFound.
func (s *Store) GetRemoteRepo(ctx context.Context, projectID int64) (*model.RemoteRepo, error) {
	var r model.RemoteRepo
	err := s.db.GetContext(ctx, &r, `
		SELECT id, project_id, platform, owner, repo_name, remote_url,
		       default_branch, last_synced_at, sync_enabled
		FROM remote_repos WHERE project_id = ?`, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get remote repo: %w", err)
	}
	return &r, nil
}

// ListSyncEnabled returns every project with sync enabled, joined with its
// remote link, in stable name order.
func (s *Store) ListSyncEnabled(ctx context.Context) ([]model.SyncTarget, error) {
	var targets []model.SyncTarget
	err := s.db.SelectContext(ctx, &targets, `
		SELECT p.id AS project_id, p.name, p.path,
		       r.id AS remote_repo_id, r.platform, r.owner, r.repo_name
		FROM projects p
		INNER JOIN remote_repos r ON p.id = r.project_id
		WHERE r.sync_enabled = 1
		ORDER BY p.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync-enabled projects: %w", err)
	}
	return targets, nil
}

// UpdateLastSynced stamps the link's last successful sync time.
func (s *Store) UpdateLastSynced(ctx context.Context, remoteRepoID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE remote_repos SET last_synced_at = ? WHERE id = ?`, now(), remoteRepoID)
	if err != nil {
		return fmt.Errorf("failed to update last synced: %w", err)
	}
	return nil
}

// metricsRow mirrors model.MetricsSnapshot with topics as the raw JSON column.
type metricsRow struct {
	model.MetricsSnapshot
	TopicsJSON sql.NullString `db:"topics"`
}

// SaveMetrics replaces the cached snapshot for a remote repo. Replace, not
// merge: stale fields from a previous partial fetch must not linger.
func (s *Store) SaveMetrics(ctx context.Context, snapshot *model.MetricsSnapshot) error {
	topics, err := json.Marshal(snapshot.Topics)
	if err != nil {
		return fmt.Errorf("failed to encode topics: %w", err)
	}

	cachedAt := snapshot.CachedAt
	if cachedAt.IsZero() {
		cachedAt = now()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM remote_metrics_cache WHERE remote_repo_id = ?`, snapshot.RemoteRepoID); err != nil {
		return fmt.Errorf("failed to clear metrics cache: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO remote_metrics_cache
			(remote_repo_id, stars, forks, watchers, open_issues, open_prs,
			 language, size_kb, license, description, topics,
			 repo_created_at, repo_updated_at, repo_pushed_at, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snapshot.RemoteRepoID, snapshot.Stars, snapshot.Forks, snapshot.Watchers,
		snapshot.OpenIssues, snapshot.OpenPRs, snapshot.Language, snapshot.SizeKB,
		snapshot.License, snapshot.Description, string(topics),
		snapshot.RepoCreatedAt, snapshot.RepoUpdatedAt, snapshot.RepoPushedAt,
		cachedAt); err != nil {
		return fmt.Errorf("failed to save metrics: %w", err)
	}

	return tx.Commit()
}

// GetMetrics returns the cached snapshot for a remote repo if it is younger
// than ttl. A snapshot older than the TTL is reported as ErrNotFound; the row
// is kept so maintenance tooling can still inspect stale values. A ttl <= 0
// disables the expiry check.
func (s *Store) GetMetrics(ctx context.Context, remoteRepoID int64, ttl time.Duration) (*model.MetricsSnapshot, error) {
	var row metricsRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, remote_repo_id, stars, forks, watchers, open_issues, open_prs,
		       language, size_kb, license, description, topics,
		       repo_created_at, repo_updated_at, repo_pushed_at, cached_at
		FROM remote_metrics_cache WHERE remote_repo_id = ?`, remoteRepoID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics: %w", err)
	}

	if ttl > 0 && now().Sub(row.CachedAt) > ttl {
		return nil, ErrNotFound
	}

	snapshot := row.MetricsSnapshot
	if row.TopicsJSON.Valid && row.TopicsJSON.String != "" {
		if err := json.Unmarshal([]byte(row.TopicsJSON.String), &snapshot.Topics); err != nil {
			return nil, fmt.Errorf("failed to decode topics: %w", err)
		}
	}
	return &snapshot, nil
}

// SavePipelineStatus appends one CI/CD run observation. History is never
// replaced; the most recent row wins on read.
func (s *Store) SavePipelineStatus(ctx context.Context, p *model.PipelineStatus) error {
	cachedAt := p.CachedAt
	if cachedAt.IsZero() {
		cachedAt = now()
	}
	name := p.Name
	if name == "" {
		name = "Workflow"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pipeline_status
			(remote_repo_id, pipeline_name, status, conclusion, branch,
			 commit_sha, started_at, completed_at, url, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.RemoteRepoID, name, p.Status, p.Conclusion, p.Branch,
		p.CommitSHA, p.StartedAt, p.CompletedAt, p.URL, cachedAt)
	if err != nil {
		return fmt.Errorf("failed to save pipeline status: %w", err)
	}
	return nil
}

// LatestPipelineStatus returns the most recently observed CI/CD run.
func (s *Store) LatestPipelineStatus(ctx context.Context, remoteRepoID int64) (*model.PipelineStatus, error) {
	var p model.PipelineStatus
	err := s.db.GetContext(ctx, &p, `
		SELECT id, remote_repo_id, pipeline_name, status, conclusion, branch,
		       commit_sha, started_at, completed_at, url, cached_at
		FROM pipeline_status
		WHERE remote_repo_id = ?
		ORDER BY cached_at DESC, id DESC
		LIMIT 1`, remoteRepoID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pipeline status: %w", err)
	}
	return &p, nil
}

// SyncStatistics summarizes sync configuration across all remote links.
func (s *Store) SyncStatistics(ctx context.Context) (*model.SyncStats, error) {
	stats := &model.SyncStats{ByPlatform: make(map[model.Platform]int)}

	if err := s.db.GetContext(ctx, &stats.TotalEnabled,
		`SELECT COUNT(*) FROM remote_repos WHERE sync_enabled = 1`); err != nil {
		return nil, fmt.Errorf("failed to count enabled repos: %w", err)
	}
	if err := s.db.GetContext(ctx, &stats.TotalRepos,
		`SELECT COUNT(*) FROM remote_repos`); err != nil {
		return nil, fmt.Errorf("failed to count remote repos: %w", err)
	}

	cutoff := now().Add(-24 * time.Hour)
	if err := s.db.GetContext(ctx, &stats.Synced24h, `
		SELECT COUNT(*) FROM remote_repos
		WHERE sync_enabled = 1 AND last_synced_at > ?`, cutoff); err != nil {
		return nil, fmt.Errorf("failed to count recent syncs: %w", err)
	}
	if err := s.db.GetContext(ctx, &stats.NeverSynced, `
		SELECT COUNT(*) FROM remote_repos
		WHERE sync_enabled = 1 AND last_synced_at IS NULL`); err != nil {
		return nil, fmt.Errorf("failed to count never-synced repos: %w", err)
	}

	rows, err := s.db.QueryxContext(ctx, `
		SELECT platform, COUNT(*) FROM remote_repos
		WHERE sync_enabled = 1 GROUP BY platform`)
	if err != nil {
		return nil, fmt.Errorf("failed to count by platform: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var platform model.Platform
		var count int
		if err := rows.Scan(&platform, &count); err != nil {
			return nil, err
		}
		stats.ByPlatform[platform] = count
	}
	return stats, rows.Err()
}
