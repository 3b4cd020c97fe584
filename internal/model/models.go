// internal/model/models.go
package model

import (
	"database/sql"
	"time"
)

// Platform identifies a remote hosting platform.
type Platform string

const (
	PlatformGitHub Platform = "github"
	PlatformGitLab Platform = "gitlab"
)

// Valid reports whether p is one of the known platforms.
func (p Platform) Valid() bool {
	return p == PlatformGitHub || p == PlatformGitLab
}

// Project represents a locally tracked project.
type Project struct {
	ID           int64          `db:"id"`
	Name         string         `db:"name"`
	Path         sql.NullString `db:"path"`
	Description  sql.NullString `db:"description"`
	Status       string         `db:"status"`   // active, paused, completed, abandoned
	Priority     string         `db:"priority"` // high, medium, low
	Language     sql.NullString `db:"language"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastActivity sql.NullTime   `db:"last_activity"`
	Tags         []string       `db:"-"`
}

// RemoteRepo associates one project with exactly one remote repository.
// At most one row exists per project (unique on project_id).
type RemoteRepo struct {
	ID            int64        `db:"id"`
	ProjectID     int64        `db:"project_id"`
	Platform      Platform     `db:"platform"`
	Owner         string       `db:"owner"`
	RepoName      string       `db:"repo_name"`
	RemoteURL     string       `db:"remote_url"`
	DefaultBranch string       `db:"default_branch"`
	LastSyncedAt  sql.NullTime `db:"last_synced_at"`
	SyncEnabled   bool         `db:"sync_enabled"`
}

// MetricsSnapshot is the single current cached metrics row for a remote repo.
// Saving replaces the previous row; expiry is a read-time judgment against a
// caller-supplied TTL, the row itself is never deleted on expiry.
type MetricsSnapshot struct {
	ID            int64          `db:"id"`
	RemoteRepoID  int64          `db:"remote_repo_id"`
	Stars         int            `db:"stars"`
	Forks         int            `db:"forks"`
	Watchers      int            `db:"watchers"`
	OpenIssues    int            `db:"open_issues"`
	OpenPRs       int            `db:"open_prs"`
	Language      sql.NullString `db:"language"`
	SizeKB        int            `db:"size_kb"`
	License       sql.NullString `db:"license"`
	Description   sql.NullString `db:"description"`
	Topics        []string       `db:"-"` // stored as a JSON text column
	RepoCreatedAt sql.NullTime   `db:"repo_created_at"`
	RepoUpdatedAt sql.NullTime   `db:"repo_updated_at"`
	RepoPushedAt  sql.NullTime   `db:"repo_pushed_at"`
	CachedAt      time.Time      `db:"cached_at"`
}

// PipelineStatus is one observed CI/CD run for a remote repo. The table is
// append-only history; "latest" is a query, not a direct lookup.
type PipelineStatus struct {
	ID           int64          `db:"id"`
	RemoteRepoID int64          `db:"remote_repo_id"`
	Name         string         `db:"pipeline_name"`
	Status       string         `db:"status"`
	Conclusion   sql.NullString `db:"conclusion"`
	Branch       sql.NullString `db:"branch"`
	CommitSHA    sql.NullString `db:"commit_sha"`
	StartedAt    sql.NullTime   `db:"started_at"`
	CompletedAt  sql.NullTime   `db:"completed_at"`
	URL          sql.NullString `db:"url"`
	CachedAt     time.Time      `db:"cached_at"`
}

// Sync queue item statuses. Transitions: pending -> processing -> completed|failed.
// Failed items stay failed until explicitly retried.
const (
	QueueStatusPending    = "pending"
	QueueStatusProcessing = "processing"
	QueueStatusCompleted  = "completed"
	QueueStatusFailed     = "failed"
)

// Queue item priorities: 1 is serviced first, 10 last.
const (
	QueuePriorityHighest = 1
	QueuePriorityDefault = 5
	QueuePriorityLowest  = 10
)

// SyncQueueItem is one unit of deferred sync work.
type SyncQueueItem struct {
	ID          int64     `db:"id"`
	ProjectID   int64     `db:"project_id"`
	Priority    int       `db:"priority"`
	RequestedAt time.Time `db:"requested_at"`
	Status      string    `db:"status"`
}

// SyncTarget is a project joined with its enabled remote repo, as returned by
// the "all sync-enabled" query.
type SyncTarget struct {
	ProjectID    int64          `db:"project_id"`
	Name         string         `db:"name"`
	Path         sql.NullString `db:"path"`
	RemoteRepoID int64          `db:"remote_repo_id"`
	Platform     Platform       `db:"platform"`
	Owner        string         `db:"owner"`
	RepoName     string         `db:"repo_name"`
}

// QueueStats holds per-status counts for the sync queue.
type QueueStats struct {
	Pending    int
	Processing int
	Completed  int
	Failed     int
}

// SyncStats summarizes the sync configuration across all projects.
type SyncStats struct {
	TotalEnabled int
	TotalRepos   int
	Synced24h    int
	NeverSynced  int
	ByPlatform   map[Platform]int
}
