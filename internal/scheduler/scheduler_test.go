package scheduler_test

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gopace/internal/domain"
	"github.com/jonesrussell/gopace/internal/scheduler"
	"github.com/jonesrussell/gopace/internal/storage"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestScheduler(t *testing.T, clock *fakeClock) *scheduler.Scheduler {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir(), "testprofile")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return scheduler.New(context.Background(), store,
		scheduler.WithClock(clock.Now),
		scheduler.WithRand(rand.New(rand.NewSource(1))))
}

func delayPtr(d time.Duration) *time.Duration {
	return &d
}

func TestScheduleImmediateIsReady(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock)
	ctx := context.Background()

	id, err := s.Schedule(ctx, scheduler.Request{
		Type:   domain.ActionFollow,
		Target: "alice",
		Delay:  delayPtr(0),
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	ready := s.Ready(10)
	require.Len(t, ready, 1)
	assert.Equal(t, id, ready[0].ID)
	assert.Equal(t, domain.ActionFollow, ready[0].Type)
	assert.Equal(t, "alice", ready[0].Target)
	assert.Equal(t, domain.InteractionScheduled, ready[0].Status)
	assert.Equal(t, 0, ready[0].Attempts)
	assert.Equal(t, domain.DefaultMaxAttempts, ready[0].MaxAttempts)
}

func TestScheduleRejectsInvalidInput(t *testing.T) {
	s := newTestScheduler(t, newFakeClock())
	ctx := context.Background()

	_, err := s.Schedule(ctx, scheduler.Request{Type: "teleport", Target: "alice"})
	require.Error(t, err)

	_, err = s.Schedule(ctx, scheduler.Request{Type: domain.ActionFollow})
	require.Error(t, err)
}

func TestScheduleDrawsDelayFromConfiguredRange(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock)
	ctx := context.Background()

	cfg := scheduler.DefaultConfig()
	cfg.Timing.MinDelaySeconds = 60
	cfg.Timing.MaxDelaySeconds = 120
	require.NoError(t, s.UpdateConfig(ctx, cfg))

	_, err := s.Schedule(ctx, scheduler.Request{Type: domain.ActionLike, Target: "bob"})
	require.NoError(t, err)

	// Not due before the minimum delay, always due after the maximum.
	assert.Empty(t, s.Ready(10))
	clock.Advance(59 * time.Second)
	assert.Empty(t, s.Ready(10))
	clock.Advance(62 * time.Second)
	assert.Len(t, s.Ready(10), 1)
}

func TestReadyNeverReturnsFutureDated(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock)
	ctx := context.Background()

	_, err := s.Schedule(ctx, scheduler.Request{
		Type: domain.ActionFollow, Target: "due", Delay: delayPtr(0),
	})
	require.NoError(t, err)
	_, err = s.Schedule(ctx, scheduler.Request{
		Type: domain.ActionFollow, Target: "later", Delay: delayPtr(time.Hour),
	})
	require.NoError(t, err)

	ready := s.Ready(10)
	require.Len(t, ready, 1)
	assert.Equal(t, "due", ready[0].Target)

	clock.Advance(time.Hour + time.Second)
	assert.Len(t, s.Ready(10), 2)
}

func TestReadyOrdersByTimeThenPriority(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock)
	ctx := context.Background()

	_, err := s.Schedule(ctx, scheduler.Request{
		Type: domain.ActionLike, Target: "earliest", Delay: delayPtr(0), Priority: 0.1,
	})
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = s.Schedule(ctx, scheduler.Request{
		Type: domain.ActionLike, Target: "low", Delay: delayPtr(0), Priority: 0.2,
	})
	require.NoError(t, err)
	_, err = s.Schedule(ctx, scheduler.Request{
		Type: domain.ActionLike, Target: "high", Delay: delayPtr(0), Priority: 0.9,
	})
	require.NoError(t, err)

	ready := s.Ready(10)
	require.Len(t, ready, 3)
	assert.Equal(t, "earliest", ready[0].Target)
	assert.Equal(t, "high", ready[1].Target)
	assert.Equal(t, "low", ready[2].Target)
}

func TestReadyHonorsLimit(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock)
	ctx := context.Background()

	for _, target := range []string{"a", "b", "c", "d", "e"} {
		_, err := s.Schedule(ctx, scheduler.Request{
			Type: domain.ActionFollow, Target: target, Delay: delayPtr(0),
		})
		require.NoError(t, err)
	}

	assert.Len(t, s.Ready(3), 3)
	assert.Empty(t, s.Ready(0))
}

func TestReadyDisabledSchedulerReturnsNothing(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock)
	ctx := context.Background()

	_, err := s.Schedule(ctx, scheduler.Request{
		Type: domain.ActionFollow, Target: "alice", Delay: delayPtr(0),
	})
	require.NoError(t, err)

	cfg := s.Config()
	cfg.Enabled = false
	require.NoError(t, s.UpdateConfig(ctx, cfg))

	assert.Empty(t, s.Ready(10))
	assert.False(t, s.Enabled())
}

func TestMarkExecutedCompletedRemoves(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock)
	ctx := context.Background()

	id, err := s.Schedule(ctx, scheduler.Request{
		Type: domain.ActionFollow, Target: "alice", Delay: delayPtr(0),
	})
	require.NoError(t, err)

	require.NoError(t, s.MarkExecuted(ctx, id, domain.InteractionCompleted,
		map[string]any{"ok": true}))

	assert.Empty(t, s.Ready(10))
	stats := s.Stats()
	assert.Equal(t, 0, stats.TotalScheduled)
	assert.Equal(t, 1, stats.TotalLogEntries)
	assert.Equal(t, 1, stats.ExecutionsLastHour[domain.ActionFollow])
}

func TestMarkExecutedFailedRetriesUntilBudgetExhausted(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock)
	ctx := context.Background()

	id, err := s.Schedule(ctx, scheduler.Request{
		Type: domain.ActionFollow, Target: "alice", Delay: delayPtr(0),
	})
	require.NoError(t, err)

	// First two failures keep the interaction queued for retry.
	require.NoError(t, s.MarkExecuted(ctx, id, domain.InteractionFailed, nil))
	ready := s.Ready(10)
	require.Len(t, ready, 1)
	assert.Equal(t, 1, ready[0].Attempts)
	assert.Equal(t, domain.InteractionScheduled, ready[0].Status)

	require.NoError(t, s.MarkExecuted(ctx, id, domain.InteractionFailed, nil))
	require.Len(t, s.Ready(10), 1)

	// Third failure exhausts max_attempts=3 and removes the record.
	require.NoError(t, s.MarkExecuted(ctx, id, domain.InteractionFailed, nil))
	assert.Empty(t, s.Ready(10))

	stats := s.Stats()
	assert.Equal(t, 0, stats.TotalScheduled)
	assert.Equal(t, 3, stats.TotalLogEntries)

	err = s.MarkExecuted(ctx, id, domain.InteractionFailed, nil)
	assert.ErrorIs(t, err, scheduler.ErrInteractionNotFound)
}

func TestMarkExecutedUnknownID(t *testing.T) {
	s := newTestScheduler(t, newFakeClock())
	err := s.MarkExecuted(context.Background(), "nope", domain.InteractionCompleted, nil)
	assert.ErrorIs(t, err, scheduler.ErrInteractionNotFound)
}

func TestScheduleBulkStaggersDelays(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock)
	ctx := context.Background()

	targets := []string{"a", "b", "", "c", "d"}
	scheduled, err := s.ScheduleBulk(ctx, domain.ActionFollow, targets)
	require.NoError(t, err)
	assert.Equal(t, 4, scheduled)

	// Only the first target is due immediately; the rest are staggered at
	// least 3 minutes apart per position.
	require.Len(t, s.Ready(10), 1)

	clock.Advance(8 * 5 * time.Minute)
	all := s.Ready(10)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		gap := all[i].ScheduledAt.Sub(all[i-1].ScheduledAt)
		assert.GreaterOrEqual(t, gap, 3*time.Minute)
	}
}

func TestStatsWindows(t *testing.T) {
	clock := newFakeClock()
	s := newTestScheduler(t, clock)
	ctx := context.Background()

	id1, err := s.Schedule(ctx, scheduler.Request{
		Type: domain.ActionLike, Target: "old", Delay: delayPtr(0),
	})
	require.NoError(t, err)
	require.NoError(t, s.MarkExecuted(ctx, id1, domain.InteractionCompleted, nil))

	// Push the first execution out of the trailing hour but keep it today.
	clock.Advance(2 * time.Hour)

	id2, err := s.Schedule(ctx, scheduler.Request{
		Type: domain.ActionLike, Target: "new", Delay: delayPtr(0),
	})
	require.NoError(t, err)
	require.NoError(t, s.MarkExecuted(ctx, id2, domain.InteractionCompleted, nil))

	_, err = s.Schedule(ctx, scheduler.Request{
		Type: domain.ActionReply, Target: "pending", Delay: delayPtr(time.Hour),
	})
	require.NoError(t, err)

	stats := s.Stats()
	assert.True(t, stats.Enabled)
	assert.Equal(t, 1, stats.TotalScheduled)
	assert.Equal(t, 1, stats.ScheduledByType[domain.ActionReply])
	assert.Equal(t, 1, stats.ExecutionsLastHour[domain.ActionLike])
	assert.Equal(t, 2, stats.ExecutionsToday[domain.ActionLike])
	assert.Equal(t, 2, stats.TotalLogEntries)
}

func TestStatePersistsAcrossInstances(t *testing.T) {
	clock := newFakeClock()
	dir := t.TempDir()
	ctx := context.Background()

	store, err := storage.NewFileStore(dir, "persist")
	require.NoError(t, err)
	s := scheduler.New(ctx, store,
		scheduler.WithClock(clock.Now),
		scheduler.WithRand(rand.New(rand.NewSource(1))))

	id, err := s.Schedule(ctx, scheduler.Request{
		Type: domain.ActionFollow, Target: "alice", Delay: delayPtr(0),
	})
	require.NoError(t, err)

	cfg := s.Config()
	cfg.Timing.MinDelaySeconds = 42
	require.NoError(t, s.UpdateConfig(ctx, cfg))
	require.NoError(t, store.Close())

	store2, err := storage.NewFileStore(dir, "persist")
	require.NoError(t, err)
	defer store2.Close()
	reloaded := scheduler.New(ctx, store2, scheduler.WithClock(clock.Now))

	ready := reloaded.Ready(10)
	require.Len(t, ready, 1)
	assert.Equal(t, id, ready[0].ID)
	assert.Equal(t, 42, reloaded.Config().Timing.MinDelaySeconds)
}

func TestUpdateConfigRejectsInvalid(t *testing.T) {
	s := newTestScheduler(t, newFakeClock())

	cfg := scheduler.DefaultConfig()
	cfg.Timing.MaxDelaySeconds = cfg.Timing.MinDelaySeconds - 1
	assert.Error(t, s.UpdateConfig(context.Background(), cfg))

	cfg = scheduler.DefaultConfig()
	cfg.Safety.FollowUnfollowRatio = 1.5
	assert.Error(t, s.UpdateConfig(context.Background(), cfg))

	cfg = scheduler.DefaultConfig()
	cfg.Timing.ActiveDays = []int{0}
	assert.Error(t, s.UpdateConfig(context.Background(), cfg))
}
