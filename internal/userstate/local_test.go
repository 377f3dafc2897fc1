//go:build cgo

package userstate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pal-droid/anizone/internal/models"
)

func openTestStore(t *testing.T) *LocalStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "state", "user.db")
	s, err := OpenLocal(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Logf("Error closing store: %v", err)
		}
	})
	_, err = os.Stat(dbPath)
	require.NoError(t, err, "database file should exist")
	return s
}

func TestLocalStoreLists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	added := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := models.ListEntry{
		SeriesKey: "aw:bleach",
		Title:     "Bleach",
		Sources:   []models.Source{{Name: models.SiteAnimeWorld, ID: "bleach.abc"}},
		AddedAt:   added,
	}
	require.NoError(t, s.PutListEntry(ctx, "watching", entry))
	require.NoError(t, s.PutListEntry(ctx, "completed", models.ListEntry{SeriesKey: "aw:naruto", Title: "Naruto"}))

	entry.Title = "Bleach TV"
	entry.AddedAt = added.Add(time.Hour)
	require.NoError(t, s.PutListEntry(ctx, "watching", entry))

	lists, err := s.Lists(ctx)
	require.NoError(t, err)
	require.Len(t, lists["watching"], 1)
	got := lists["watching"][0]
	assert.Equal(t, "Bleach TV", got.Title)
	assert.Equal(t, added, got.AddedAt, "added date survives updates")
	assert.Equal(t, entry.Sources, got.Sources)
	assert.Len(t, lists["completed"], 1)

	require.NoError(t, s.DeleteListEntry(ctx, "watching", "aw:bleach"))
	require.NoError(t, s.DeleteListEntry(ctx, "watching", "missing"))
	lists, err = s.Lists(ctx)
	require.NoError(t, err)
	assert.Empty(t, lists["watching"])
}

func TestLocalStoreContinue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(24 * time.Hour)

	require.NoError(t, s.PutContinue(ctx, models.ContinueEntry{SeriesKey: "a", Episode: 3, PositionSeconds: 61.5, UpdatedAt: older}))
	require.NoError(t, s.PutContinue(ctx, models.ContinueEntry{SeriesKey: "m", Chapter: "12", Page: 4, UpdatedAt: newer}))
	require.NoError(t, s.PutContinue(ctx, models.ContinueEntry{SeriesKey: "neg", PositionSeconds: -5, UpdatedAt: older.Add(-time.Hour)}))

	entries, err := s.Continue(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "m", entries[0].SeriesKey)
	assert.Equal(t, "12", entries[0].Chapter)
	assert.Equal(t, 4, entries[0].Page)
	assert.Equal(t, "a", entries[1].SeriesKey)
	assert.Equal(t, 61.5, entries[1].PositionSeconds)
	assert.Equal(t, float64(0), entries[2].PositionSeconds)

	require.NoError(t, s.PutContinue(ctx, models.ContinueEntry{SeriesKey: "a", Episode: 4, UpdatedAt: newer.Add(time.Hour)}))
	entries, err = s.Continue(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "a", entries[0].SeriesKey)
	assert.Equal(t, 4, entries[0].Episode)
}
