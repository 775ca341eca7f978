package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notification-center/internal/model"
)

// newTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, s.Close())
	})

	return s
}

func sampleSnapshot() *model.Snapshot {
	created := time.Date(2026, 10, 1, 8, 30, 0, 0, time.UTC)
	snap := model.NewSnapshot(
		[]model.Notification{{ID: "p1", Title: "Maintenance window", Category: "ops", CreatedAt: created}},
		[]model.Notification{
			{ID: "b", Title: "Second", Body: "body b", IsRead: true, CreatedAt: created},
			{ID: "a", Title: "First", Link: "https://example.com/a", CreatedAt: created.Add(time.Hour)},
		},
	)
	snap.Version = 7
	snap.FetchedAt = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	return snap
}

func TestSQLiteStore_MigrationsApplied(t *testing.T) {
	s := newTestStore(t)

	v, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)
}

func TestSQLiteStore_ReopenDoesNotReapplyMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveSnapshot(context.Background(), sampleSnapshot()))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	snap, err := s.LoadSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Len())
}

func TestSQLiteStore_LoadWithoutSaveReturnsErrNoSnapshot(t *testing.T) {
	s := newTestStore(t)

	_, err := s.LoadSnapshot(context.Background())
	assert.True(t, errors.Is(err, ErrNoSnapshot))
}

func TestSQLiteStore_SaveAndLoadPreservesOrderAndPartitions(t *testing.T) {
	s := newTestStore(t)
	want := sampleSnapshot()

	require.NoError(t, s.SaveSnapshot(context.Background(), want))

	got, err := s.LoadSnapshot(context.Background())
	require.NoError(t, err)

	require.Len(t, got.Pinned, 1)
	require.Len(t, got.Notifications, 2)
	assert.Equal(t, "p1", got.Pinned[0].ID)
	assert.True(t, got.Pinned[0].IsPinned)
	assert.Equal(t, "b", got.Notifications[0].ID, "server order is kept")
	assert.True(t, got.Notifications[0].IsRead)
	assert.Equal(t, "https://example.com/a", got.Notifications[1].Link)
	assert.True(t, want.Notifications[1].CreatedAt.Equal(got.Notifications[1].CreatedAt))
	assert.Equal(t, uint64(7), got.Version)
	assert.True(t, want.FetchedAt.Equal(got.FetchedAt))
}

func TestSQLiteStore_SaveReplacesPreviousSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSnapshot(ctx, sampleSnapshot()))
	first, err := s.SnapshotInfo(ctx)
	require.NoError(t, err)

	next := model.NewSnapshot(nil, []model.Notification{{ID: "only"}})
	next.Version = 8
	require.NoError(t, s.SaveSnapshot(ctx, next))

	got, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Pinned)
	require.Len(t, got.Notifications, 1)
	assert.Equal(t, "only", got.Notifications[0].ID)

	second, err := s.SnapshotInfo(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.SnapshotID, second.SnapshotID)
	assert.Equal(t, uint64(8), second.Version)
}
