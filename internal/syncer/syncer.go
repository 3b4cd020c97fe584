// internal/syncer/syncer.go

// Package syncer orchestrates remote metadata synchronization: cache-hit vs.
// fetch decisions, API calls, persistence, and consolidated reporting. It is
// the error boundary of the sync pipeline; callers always get a SyncResult,
// never an error from a sync attempt.
package syncer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"projtrack/internal/credentials"
	"projtrack/internal/model"
	"projtrack/internal/ratelimit"
	"projtrack/internal/remote"
	"projtrack/internal/store"
)

// Store is the persistence the orchestrator needs. *store.Store satisfies it.
type Store interface {
	GetProjectByID(ctx context.Context, id int64) (*model.Project, error)
	GetRemoteRepo(ctx context.Context, projectID int64) (*model.RemoteRepo, error)
	GetMetrics(ctx context.Context, remoteRepoID int64, ttl time.Duration) (*model.MetricsSnapshot, error)
	SaveMetrics(ctx context.Context, snapshot *model.MetricsSnapshot) error
	SavePipelineStatus(ctx context.Context, p *model.PipelineStatus) error
	UpdateProjectFromRemote(ctx context.Context, projectID int64, description, language string, topics []string) error
	UpdateLastSynced(ctx context.Context, remoteRepoID int64) error
	ListSyncEnabled(ctx context.Context) ([]model.SyncTarget, error)
}

// WorkQueue is the slice of the sync queue the orchestrator drives.
// *queue.Queue satisfies it.
type WorkQueue interface {
	NextBatch(ctx context.Context, platform model.Platform, batchSize int) ([]model.SyncQueueItem, error)
	MarkProcessing(ctx context.Context, id int64) error
	MarkCompleted(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64) error
}

// Notifier receives progress narration for display. No return value is
// consumed; implementations must not block.
type Notifier interface {
	Infof(format string, a ...any)
}

type nopNotifier struct{}

func (nopNotifier) Infof(string, ...any) {}

// TokenFunc resolves an API token for a platform.
type TokenFunc func(platform model.Platform) (string, error)

// ClientFactory builds a remote client for a platform and token.
type ClientFactory func(platform model.Platform, token string, logger *slog.Logger) (remote.Client, error)

// SyncResult is the consolidated, non-persisted outcome of one sync attempt.
// FromCache distinguishes a cache-hit success from a fresh fetch; Note carries
// the informational message shown for cached results, separate from Err.
type SyncResult struct {
	Success        bool
	ProjectID      int64
	ProjectName    string
	Stars          *int
	Forks          *int
	OpenIssues     *int
	OpenPRs        *int
	WorkflowStatus string
	FromCache      bool
	Note           string
	Err            string
	Duration       time.Duration
}

// SyncOptions control one sync attempt.
type SyncOptions struct {
	// UpdateMetadata overwrites the project's description, language and tags
	// from the fetched metadata; topics replace tags entirely.
	UpdateMetadata bool
	// Force skips the cache check and always fetches.
	Force bool
}

// Options configure an Orchestrator beyond its collaborators.
type Options struct {
	// CacheTTL is the snapshot age beyond which a fetch happens anyway.
	// Defaults to 24h.
	CacheTTL time.Duration
	// SyncDelay is the pause between projects in a bulk sync, a crude
	// additional throttle beyond the rate limiter. Defaults to 500ms.
	SyncDelay time.Duration
	// Notify receives progress narration. Defaults to a no-op.
	Notify Notifier
	// Token resolves platform credentials. Defaults to credentials.Token.
	Token TokenFunc
	// NewClient builds remote clients. Defaults to remote.NewClient.
	NewClient ClientFactory
}

// Orchestrator coordinates sync operations.
type Orchestrator struct {
	store     Store
	queue     WorkQueue
	limiters  *ratelimit.Registry
	logger    *slog.Logger
	cacheTTL  time.Duration
	syncDelay time.Duration
	notify    Notifier
	token     TokenFunc
	newClient ClientFactory
	sleep     func(time.Duration)
}

// New creates an Orchestrator. The limiter registry must be the same instance
// shared with the queue so both see the same usage.
func New(st Store, q WorkQueue, limiters *ratelimit.Registry, logger *slog.Logger, opts Options) *Orchestrator {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 24 * time.Hour
	}
	if opts.SyncDelay <= 0 {
		opts.SyncDelay = 500 * time.Millisecond
	}
	if opts.Notify == nil {
		opts.Notify = nopNotifier{}
	}
	if opts.Token == nil {
		opts.Token = credentials.Token
	}
	if opts.NewClient == nil {
		opts.NewClient = remote.NewClient
	}

	return &Orchestrator{
		store:     st,
		queue:     q,
		limiters:  limiters,
		logger:    logger,
		cacheTTL:  opts.CacheTTL,
		syncDelay: opts.SyncDelay,
		notify:    opts.Notify,
		token:     opts.Token,
		newClient: opts.NewClient,
		sleep:     time.Sleep,
	}
}

// SyncProject syncs a single project, proceeding through ordered checks and
// short-circuiting with a failed result at the first that does not hold. It
// never returns an error: unexpected failures, panics included, become a
// failed SyncResult.
func (o *Orchestrator) SyncProject(ctx context.Context, projectID int64, opts SyncOptions) (res SyncResult) {
	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
	}()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Panic during sync", "project_id", projectID, "panic", r)
			res = SyncResult{
				ProjectID:   projectID,
				ProjectName: res.ProjectName,
				Err:         fmt.Sprintf("unexpected error: %v", r),
			}
		}
	}()

	res = SyncResult{ProjectID: projectID, ProjectName: "unknown"}
	fail := func(msg string) SyncResult {
		res.Success = false
		res.Err = msg
		return res
	}

	project, err := o.store.GetProjectByID(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return fail("project not found")
	}
	if err != nil {
		return fail(err.Error())
	}
	res.ProjectName = project.Name
	logger := o.logger.With("project", project.Name)

	link, err := o.store.GetRemoteRepo(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return fail("sync not enabled for this project")
	}
	if err != nil {
		return fail(err.Error())
	}
	if !link.SyncEnabled {
		return fail("sync is disabled for this project")
	}

	if !opts.Force {
		snapshot, err := o.store.GetMetrics(ctx, link.ID, o.cacheTTL)
		if err == nil {
			logger.Debug("Serving sync from cache", "cached_at", snapshot.CachedAt)
			res.Success = true
			res.FromCache = true
			res.Note = "using cached data (pass --force to refresh)"
			res.Stars = intPtr(snapshot.Stars)
			res.Forks = intPtr(snapshot.Forks)
			res.OpenIssues = intPtr(snapshot.OpenIssues)
			res.OpenPRs = intPtr(snapshot.OpenPRs)
			return res
		}
		if !errors.Is(err, store.ErrNotFound) {
			// A broken cache read is a miss, not a failure.
			logger.Warn("Cache read failed, fetching fresh", "error", err)
		}
	}

	token, err := o.token(link.Platform)
	if err != nil {
		return fail(fmt.Sprintf("no %s token found; run: projtrack auth %s --token YOUR_TOKEN",
			link.Platform, link.Platform))
	}

	client, err := o.newClient(link.Platform, token, logger)
	if err != nil {
		return fail(err.Error())
	}

	limiter := o.limiters.For(link.Platform)

	o.notify.Infof("Fetching repository metadata for %s/%s...", link.Owner, link.RepoName)
	info, err := client.RepoInfo(ctx, link.Owner, link.RepoName)
	limiter.RecordRequest()
	if errors.Is(err, remote.ErrNotFound) {
		return fail(fmt.Sprintf("repository not found or inaccessible: %s/%s", link.Owner, link.RepoName))
	}
	if err != nil {
		return fail(err.Error())
	}

	// A failed PR-count fetch degrades one field, never the whole sync.
	o.notify.Infof("Fetching pull request count...")
	prCount, err := client.OpenPRCount(ctx, link.Owner, link.RepoName)
	limiter.RecordRequest()
	if err != nil {
		logger.Warn("Failed to fetch PR count", "error", err)
		prCount = 0
	}
	info.OpenPRs = prCount

	o.notify.Infof("Saving metrics to cache...")
	if err := o.store.SaveMetrics(ctx, snapshotFrom(link.ID, info)); err != nil {
		return fail("failed to save metrics to cache")
	}

	// CI status is supplementary: fetched and persisted best-effort.
	o.notify.Infof("Fetching CI/CD workflow status...")
	run, err := client.LatestWorkflowRun(ctx, link.Owner, link.RepoName)
	limiter.RecordRequest()
	if err != nil {
		o.notify.Infof("Could not fetch workflow status: %v", err)
	} else {
		if err := o.store.SavePipelineStatus(ctx, pipelineFrom(link.ID, run)); err != nil {
			logger.Warn("Failed to save pipeline status", "error", err)
		}
		res.WorkflowStatus = run.Result()
	}

	if opts.UpdateMetadata {
		o.notify.Infof("Updating project metadata...")
		if err := o.store.UpdateProjectFromRemote(ctx, projectID, info.Description, info.Language, info.Topics); err != nil {
			return fail(err.Error())
		}
	}

	if err := o.store.UpdateLastSynced(ctx, link.ID); err != nil {
		return fail(err.Error())
	}

	res.Success = true
	res.Stars = intPtr(info.Stars)
	res.Forks = intPtr(info.Forks)
	res.OpenIssues = intPtr(info.OpenIssues)
	res.OpenPRs = intPtr(info.OpenPRs)
	return res
}

// SyncAllEnabled syncs every project with sync enabled, sequentially and in
// query order, forcing a refresh for each (a bulk sync is explicitly a
// refresh request) with a fixed pause between iterations. Item failures never
// stop the batch; the caller summarizes the collected results.
func (o *Orchestrator) SyncAllEnabled(ctx context.Context, updateMetadata bool) []SyncResult {
	targets, err := o.store.ListSyncEnabled(ctx)
	if err != nil {
		o.logger.Error("Failed to list sync-enabled projects", "error", err)
		return nil
	}
	if len(targets) == 0 {
		o.notify.Infof("No projects with sync enabled")
		return nil
	}

	o.notify.Infof("Syncing %d projects...", len(targets))

	results := make([]SyncResult, 0, len(targets))
	for i, target := range targets {
		o.notify.Infof("[%d/%d] Syncing %s...", i+1, len(targets), target.Name)

		result := o.SyncProject(ctx, target.ProjectID, SyncOptions{
			UpdateMetadata: updateMetadata,
			Force:          true,
		})
		results = append(results, result)

		if i < len(targets)-1 {
			o.sleep(o.syncDelay)
		}
	}
	return results
}

// ProcessQueue pulls one rate-limit-bounded batch for a platform and syncs
// each item, recording the outcome on the queue. The returned count includes
// failed items: it is "processed", not "succeeded".
func (o *Orchestrator) ProcessQueue(ctx context.Context, platform model.Platform, batchSize int) (int, error) {
	batch, err := o.queue.NextBatch(ctx, platform, batchSize)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, item := range batch {
		if err := o.queue.MarkProcessing(ctx, item.ID); err != nil {
			o.logger.Error("Failed to mark queue item processing", "item_id", item.ID, "error", err)
			continue
		}

		result := o.SyncProject(ctx, item.ProjectID, SyncOptions{Force: true})

		if result.Success {
			err = o.queue.MarkCompleted(ctx, item.ID)
		} else {
			o.logger.Warn("Queue item failed", "item_id", item.ID, "project", result.ProjectName, "error", result.Err)
			err = o.queue.MarkFailed(ctx, item.ID)
		}
		if err != nil {
			o.logger.Error("Failed to update queue item", "item_id", item.ID, "error", err)
		}
		processed++
	}
	return processed, nil
}

func snapshotFrom(remoteRepoID int64, info *remote.RepoInfo) *model.MetricsSnapshot {
	return &model.MetricsSnapshot{
		RemoteRepoID:  remoteRepoID,
		Stars:         info.Stars,
		Forks:         info.Forks,
		Watchers:      info.Watchers,
		OpenIssues:    info.OpenIssues,
		OpenPRs:       info.OpenPRs,
		Language:      nullString(info.Language),
		SizeKB:        info.SizeKB,
		License:       nullString(info.License),
		Description:   nullString(info.Description),
		Topics:        info.Topics,
		RepoCreatedAt: nullTime(info.CreatedAt),
		RepoUpdatedAt: nullTime(info.UpdatedAt),
		RepoPushedAt:  nullTime(info.PushedAt),
	}
}

func pipelineFrom(remoteRepoID int64, run *remote.WorkflowRun) *model.PipelineStatus {
	return &model.PipelineStatus{
		RemoteRepoID: remoteRepoID,
		Name:         run.Name,
		Status:       run.Status,
		Conclusion:   nullString(run.Conclusion),
		Branch:       nullString(run.Branch),
		CommitSHA:    nullString(run.CommitSHA),
		StartedAt:    nullTime(run.StartedAt),
		CompletedAt:  nullTime(run.CompletedAt),
		URL:          nullString(run.URL),
	}
}

func intPtr(v int) *int { return &v }

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
