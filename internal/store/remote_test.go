// internal/store/remote_test.go
package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projtrack/internal/model"
)

func TestEnableSyncUpserts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := mustCreateProject(t, s, "widget")
	first := mustEnableSync(t, s, p.ID, "acme", "widget")

	// Re-enabling with new coordinates updates the one link row in place.
	err := s.EnableSync(ctx, p.ID, model.PlatformGitLab, "acme", "widget-mirror",
		"https://gitlab.com/acme/widget-mirror.git", "develop")
	require.NoError(t, err)

	link, err := s.GetRemoteRepo(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, link.ID, "one row per project, updated not duplicated")
	assert.Equal(t, model.PlatformGitLab, link.Platform)
	assert.Equal(t, "widget-mirror", link.RepoName)
	assert.Equal(t, "develop", link.DefaultBranch)
	assert.True(t, link.SyncEnabled)
}

func TestDisableSync(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	t.Run("keeps the link and cache by default", func(t *testing.T) {
		p := mustCreateProject(t, s, "keeper")
		link := mustEnableSync(t, s, p.ID, "acme", "keeper")
		require.NoError(t, s.SaveMetrics(ctx, &model.MetricsSnapshot{RemoteRepoID: link.ID, Stars: 9}))

		require.NoError(t, s.DisableSync(ctx, p.ID, false))

		got, err := s.GetRemoteRepo(ctx, p.ID)
		require.NoError(t, err)
		assert.False(t, got.SyncEnabled)

		snapshot, err := s.GetMetrics(ctx, link.ID, 0)
		require.NoError(t, err)
		assert.Equal(t, 9, snapshot.Stars)
	})

	t.Run("deletes link, metrics and pipeline history on request", func(t *testing.T) {
		p := mustCreateProject(t, s, "goner")
		link := mustEnableSync(t, s, p.ID, "acme", "goner")
		require.NoError(t, s.SaveMetrics(ctx, &model.MetricsSnapshot{RemoteRepoID: link.ID}))
		require.NoError(t, s.SavePipelineStatus(ctx, &model.PipelineStatus{RemoteRepoID: link.ID, Status: "completed"}))

		require.NoError(t, s.DisableSync(ctx, p.ID, true))

		_, err := s.GetRemoteRepo(ctx, p.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetMetrics(ctx, link.ID, 0)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.LatestPipelineStatus(ctx, link.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestListSyncEnabled(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	beta := mustCreateProject(t, s, "beta")
	alpha := mustCreateProject(t, s, "alpha")
	off := mustCreateProject(t, s, "disabled")
	mustEnableSync(t, s, beta.ID, "acme", "beta")
	mustEnableSync(t, s, alpha.ID, "acme", "alpha")
	mustEnableSync(t, s, off.ID, "acme", "disabled")
	require.NoError(t, s.DisableSync(ctx, off.ID, false))
	mustCreateProject(t, s, "local-only")

	targets, err := s.ListSyncEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "alpha", targets[0].Name)
	assert.Equal(t, "beta", targets[1].Name)
	assert.Equal(t, model.PlatformGitHub, targets[0].Platform)
}

func TestSaveMetricsReplacesPreviousSnapshot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := mustCreateProject(t, s, "widget")
	link := mustEnableSync(t, s, p.ID, "acme", "widget")

	require.NoError(t, s.SaveMetrics(ctx, &model.MetricsSnapshot{
		RemoteRepoID: link.ID,
		Stars:        10,
		Topics:       []string{"old"},
	}))
	require.NoError(t, s.SaveMetrics(ctx, &model.MetricsSnapshot{
		RemoteRepoID: link.ID,
		Stars:        20,
		Topics:       []string{"cli", "go"},
	}))

	snapshot, err := s.GetMetrics(ctx, link.ID, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 20, snapshot.Stars)
	assert.Equal(t, []string{"cli", "go"}, snapshot.Topics)

	var count int
	require.NoError(t, s.db.Get(&count,
		`SELECT COUNT(*) FROM remote_metrics_cache WHERE remote_repo_id = ?`, link.ID))
	assert.Equal(t, 1, count, "replace, not accumulate")
}

func TestGetMetricsTTL(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := mustCreateProject(t, s, "widget")
	link := mustEnableSync(t, s, p.ID, "acme", "widget")

	stale := &model.MetricsSnapshot{
		RemoteRepoID: link.ID,
		Stars:        5,
		CachedAt:     time.Now().UTC().Add(-25 * time.Hour),
	}
	require.NoError(t, s.SaveMetrics(ctx, stale))

	_, err := s.GetMetrics(ctx, link.ID, 24*time.Hour)
	assert.ErrorIs(t, err, ErrNotFound, "expired snapshot reads as a miss")

	snapshot, err := s.GetMetrics(ctx, link.ID, 0)
	require.NoError(t, err, "ttl <= 0 disables the expiry check")
	assert.Equal(t, 5, snapshot.Stars)

	snapshot, err = s.GetMetrics(ctx, link.ID, 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 5, snapshot.Stars)

	_, err = s.GetMetrics(ctx, link.ID+100, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPipelineStatusHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := mustCreateProject(t, s, "widget")
	link := mustEnableSync(t, s, p.ID, "acme", "widget")

	base := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, s.SavePipelineStatus(ctx, &model.PipelineStatus{
		RemoteRepoID: link.ID,
		Status:       "completed",
		CachedAt:     base,
	}))
	require.NoError(t, s.SavePipelineStatus(ctx, &model.PipelineStatus{
		RemoteRepoID: link.ID,
		Name:         "CI",
		Status:       "in_progress",
		CachedAt:     base.Add(time.Minute),
	}))

	latest, err := s.LatestPipelineStatus(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, "in_progress", latest.Status)
	assert.Equal(t, "CI", latest.Name)

	var count int
	require.NoError(t, s.db.Get(&count,
		`SELECT COUNT(*) FROM pipeline_status WHERE remote_repo_id = ?`, link.ID))
	assert.Equal(t, 2, count, "history appends, never overwrites")

	first, err := s.db.Queryx(`SELECT pipeline_name FROM pipeline_status WHERE cached_at = ?`, base)
	require.NoError(t, err)
	defer first.Close()
	require.True(t, first.Next())
	var name string
	require.NoError(t, first.Scan(&name))
	assert.Equal(t, "Workflow", name, "empty pipeline name falls back to the default")
}

func TestSyncStatistics(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	alpha := mustCreateProject(t, s, "alpha")
	beta := mustCreateProject(t, s, "beta")
	gamma := mustCreateProject(t, s, "gamma")
	linkAlpha := mustEnableSync(t, s, alpha.ID, "acme", "alpha")
	mustEnableSync(t, s, beta.ID, "acme", "beta")
	mustEnableSync(t, s, gamma.ID, "acme", "gamma")
	require.NoError(t, s.DisableSync(ctx, gamma.ID, false))

	require.NoError(t, s.UpdateLastSynced(ctx, linkAlpha.ID))

	stats, err := s.SyncStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalEnabled)
	assert.Equal(t, 3, stats.TotalRepos)
	assert.Equal(t, 1, stats.Synced24h)
	assert.Equal(t, 1, stats.NeverSynced)
	assert.Equal(t, 2, stats.ByPlatform[model.PlatformGitHub])
}
