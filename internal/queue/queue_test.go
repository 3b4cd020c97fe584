// internal/queue/queue_test.go
package queue

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projtrack/internal/model"
	"projtrack/internal/ratelimit"
	"projtrack/internal/store"
)

func newTestQueue(t *testing.T) (*Queue, *store.Store, *ratelimit.Registry) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	limiters := ratelimit.NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(s, limiters, ratelimit.DefaultBuffer, logger), s, limiters
}

func seedProject(t *testing.T, s *store.Store, name string) int64 {
	t.Helper()
	ctx := context.Background()
	p, err := s.CreateProject(ctx, store.CreateProjectParams{Name: name})
	require.NoError(t, err)
	err = s.EnableSync(ctx, p.ID, model.PlatformGitHub, "acme", name,
		"https://github.com/acme/"+name+".git", "main")
	require.NoError(t, err)
	return p.ID
}

func TestAddClampsPriority(t *testing.T) {
	q, s, _ := newTestQueue(t)
	ctx := context.Background()

	id := seedProject(t, s, "widget")
	_, err := q.Add(ctx, id, 99)
	require.NoError(t, err)

	batch, err := q.NextBatch(ctx, model.PlatformGitHub, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, model.QueuePriorityDefault, batch[0].Priority)
}

func TestAddIsIdempotentWhilePending(t *testing.T) {
	q, s, _ := newTestQueue(t)
	ctx := context.Background()

	id := seedProject(t, s, "widget")
	first, err := q.Add(ctx, id, model.QueuePriorityDefault)
	require.NoError(t, err)
	second, err := q.Add(ctx, id, model.QueuePriorityHighest)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
}

func TestNextBatchOrdering(t *testing.T) {
	q, s, _ := newTestQueue(t)
	ctx := context.Background()

	low := seedProject(t, s, "low")
	urgent := seedProject(t, s, "urgent")
	_, err := q.Add(ctx, low, model.QueuePriorityLowest)
	require.NoError(t, err)
	_, err = q.Add(ctx, urgent, model.QueuePriorityHighest)
	require.NoError(t, err)

	batch, err := q.NextBatch(ctx, model.PlatformGitHub, 10)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, urgent, batch[0].ProjectID)
	assert.Equal(t, low, batch[1].ProjectID)
}

func TestNextBatchRespectsRateLimit(t *testing.T) {
	q, s, limiters := newTestQueue(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		id := seedProject(t, s, name)
		_, err := q.Add(ctx, id, model.QueuePriorityDefault)
		require.NoError(t, err)
	}

	// Drive github usage to 105 remaining; with the 100-request buffer only
	// 5 of the 8 pending items fit in a batch of 10.
	limiter := limiters.For(model.PlatformGitHub)
	for i := 0; i < 4895; i++ {
		limiter.RecordRequest()
	}

	batch, err := q.NextBatch(ctx, model.PlatformGitHub, 10)
	require.NoError(t, err)
	assert.Len(t, batch, 5)

	// Exhaust the remaining headroom entirely.
	for i := 0; i < 5; i++ {
		limiter.RecordRequest()
	}
	batch, err = q.NextBatch(ctx, model.PlatformGitHub, 10)
	require.NoError(t, err)
	assert.Empty(t, batch, "no headroom means an empty batch, not an error")
}

func TestStatusTransitions(t *testing.T) {
	q, s, _ := newTestQueue(t)
	ctx := context.Background()

	id := seedProject(t, s, "widget")
	itemID, err := q.Add(ctx, id, model.QueuePriorityDefault)
	require.NoError(t, err)

	require.NoError(t, q.MarkProcessing(ctx, itemID))
	require.NoError(t, q.MarkFailed(ctx, itemID))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.QueueStats{Failed: 1}, stats)

	reset, err := q.RetryFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reset)

	batch, err := q.NextBatch(ctx, model.PlatformGitHub, 10)
	require.NoError(t, err)
	assert.Len(t, batch, 1, "retried items are pending again")
}

func TestClearCompleted(t *testing.T) {
	q, s, _ := newTestQueue(t)
	ctx := context.Background()

	id := seedProject(t, s, "widget")
	itemID, err := q.Add(ctx, id, model.QueuePriorityDefault)
	require.NoError(t, err)
	require.NoError(t, q.MarkProcessing(ctx, itemID))
	require.NoError(t, q.MarkCompleted(ctx, itemID))

	// A recent completion is inside any positive retention window.
	removed, err := q.ClearCompleted(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, removed)

	removed, err = q.ClearCompleted(ctx, -1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}
