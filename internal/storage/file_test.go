package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gopace/internal/domain"
	"github.com/jonesrussell/gopace/internal/storage"
)

func newFileStore(t *testing.T) *storage.FileStore {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir(), "default")
	require.NoError(t, err)
	return store
}

func TestFileStore_EmptyProfileRejected(t *testing.T) {
	_, err := storage.NewFileStore(t.TempDir(), "")
	assert.Error(t, err)
}

func TestFileStore_LoadMissingReturnsNotFound(t *testing.T) {
	store := newFileStore(t)
	ctx := context.Background()

	_, err := store.LoadSchedule(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.LoadLog(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	var cfg map[string]any
	err = store.LoadConfig(ctx, &cfg)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFileStore_ScheduleRoundTrip(t *testing.T) {
	store := newFileStore(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	schedule := []domain.Interaction{
		{
			ID:          "int-1",
			Type:        domain.ActionFollow,
			Target:      "alice",
			ScheduledAt: now,
			Priority:    0.5,
			Status:      domain.InteractionScheduled,
			MaxAttempts: 3,
			CreatedAt:   now,
		},
	}

	require.NoError(t, store.SaveSchedule(ctx, schedule))

	loaded, err := store.LoadSchedule(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "int-1", loaded[0].ID)
	assert.Equal(t, domain.ActionFollow, loaded[0].Type)
	assert.True(t, loaded[0].ScheduledAt.Equal(now))
}

func TestFileStore_LogCapped(t *testing.T) {
	store := newFileStore(t)
	ctx := context.Background()

	log := make([]domain.ExecutionLogEntry, storage.MaxLogEntries+50)
	for i := range log {
		log[i] = domain.ExecutionLogEntry{
			ID:     "entry",
			Type:   domain.ActionLike,
			Status: "completed",
		}
	}
	log[len(log)-1].ID = "last"

	require.NoError(t, store.SaveLog(ctx, log))

	loaded, err := store.LoadLog(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, storage.MaxLogEntries)
	assert.Equal(t, "last", loaded[len(loaded)-1].ID)
}

func TestFileStore_ConfigRoundTrip(t *testing.T) {
	store := newFileStore(t)
	ctx := context.Background()

	saved := map[string]any{"enabled": true, "max_daily_follows": float64(50)}
	require.NoError(t, store.SaveConfig(ctx, saved))

	var loaded map[string]any
	require.NoError(t, store.LoadConfig(ctx, &loaded))
	assert.Equal(t, saved, loaded)
}
