// internal/ratelimit/ratelimit_test.go
package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projtrack/internal/model"
)

// fakeClock is a manually advanced clock for limiter tests.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestLimiter(platform model.Platform) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return NewWithClock(platform, clock.Now), clock
}

func TestLimiter_CanMakeRequest(t *testing.T) {
	t.Run("allows requests while under the quota", func(t *testing.T) {
		l, _ := newTestLimiter(model.PlatformGitHub)

		assert.True(t, l.CanMakeRequest(DefaultBuffer))
		for i := 0; i < 100; i++ {
			l.RecordRequest()
		}
		assert.True(t, l.CanMakeRequest(DefaultBuffer))
	})

	t.Run("denies requests once quota minus buffer is reached", func(t *testing.T) {
		l, _ := newTestLimiter(model.PlatformGitHub)

		for i := 0; i < 4900; i++ {
			l.RecordRequest()
		}
		assert.False(t, l.CanMakeRequest(DefaultBuffer))
		// A smaller buffer still has headroom.
		assert.True(t, l.CanMakeRequest(50))
	})

	t.Run("frees slots once calls leave the window", func(t *testing.T) {
		l, clock := newTestLimiter(model.PlatformGitHub)

		for i := 0; i < 4900; i++ {
			l.RecordRequest()
		}
		require.False(t, l.CanMakeRequest(DefaultBuffer))

		clock.Advance(time.Hour + time.Second)
		assert.True(t, l.CanMakeRequest(DefaultBuffer))
		assert.Equal(t, 5000, l.Remaining())
	})

	t.Run("unknown platform is unbounded", func(t *testing.T) {
		l, _ := newTestLimiter(model.Platform("bitbucket"))

		for i := 0; i < 10000; i++ {
			l.RecordRequest()
		}
		assert.True(t, l.CanMakeRequest(DefaultBuffer))
		assert.Greater(t, l.Remaining(), 1_000_000)
	})
}

func TestLimiter_Remaining(t *testing.T) {
	l, clock := newTestLimiter(model.PlatformGitHub)

	l.RecordRequest()
	l.RecordRequest()
	l.RecordRequest()
	assert.Equal(t, 4997, l.Remaining())

	// Pruning keeps remaining + in-window calls equal to the quota.
	clock.Advance(30 * time.Minute)
	l.RecordRequest()
	assert.Equal(t, 4996, l.Remaining())

	clock.Advance(31 * time.Minute)
	// The first three calls are now outside the window.
	assert.Equal(t, 4999, l.Remaining())
}

func TestLimiter_ResetTime(t *testing.T) {
	l, clock := newTestLimiter(model.PlatformGitHub)

	_, ok := l.ResetTime()
	assert.False(t, ok, "no calls recorded yet")

	first := clock.Now()
	l.RecordRequest()
	clock.Advance(10 * time.Minute)
	l.RecordRequest()

	reset, ok := l.ResetTime()
	require.True(t, ok)
	assert.Equal(t, first.Add(time.Hour), reset)
}

func TestRegistry_For(t *testing.T) {
	r := NewRegistry()

	gh := r.For(model.PlatformGitHub)
	gl := r.For(model.PlatformGitLab)

	assert.NotSame(t, gh, gl)
	assert.Same(t, gh, r.For(model.PlatformGitHub), "limiter is shared per platform")
}
