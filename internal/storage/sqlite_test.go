package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glancelabs/glance/backend/internal/types"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "glance.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sessionAt(id string, start time.Time, duration time.Duration) types.ActivitySession {
	end := start.Add(duration)
	return types.ActivitySession{
		ID:              id,
		StartTime:       start,
		EndTime:         &end,
		LastSeen:        end,
		App:             types.AppInfo{BundleID: "com.editor.app", Name: "Editor"},
		Category:        types.CategoryProductivity,
		Title:           "editing notes",
		Summary:         "Time in Editor",
		AccumulatedText: "draft notes",
	}
}

func TestSessionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	original := sessionAt("sess_1", start, 20*time.Minute)
	require.NoError(t, store.SaveSession(ctx, original))

	sessions, err := store.SessionsForDate(ctx, "2026-09-01")
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	got := sessions[0]
	assert.Equal(t, original.ID, got.ID)
	assert.True(t, got.StartTime.Equal(original.StartTime))
	require.NotNil(t, got.EndTime)
	assert.True(t, got.EndTime.Equal(*original.EndTime))
	assert.Equal(t, original.App, got.App)
	assert.Equal(t, types.CategoryProductivity, got.Category)
	assert.Equal(t, "editing notes", got.Title)
	assert.Equal(t, "draft notes", got.AccumulatedText)
}

func TestSessionsForDateFiltersAndOrders(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveSession(ctx, sessionAt("sess_late", day.Add(15*time.Hour), time.Minute)))
	require.NoError(t, store.SaveSession(ctx, sessionAt("sess_early", day.Add(9*time.Hour), time.Minute)))
	require.NoError(t, store.SaveSession(ctx, sessionAt("sess_other_day", day.Add(30*time.Hour), time.Minute)))

	sessions, err := store.SessionsForDate(ctx, "2026-09-01")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "sess_early", sessions[0].ID)
	assert.Equal(t, "sess_late", sessions[1].ID)

	empty, err := store.SessionsForDate(ctx, "2020-01-01")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSaveSessionUpserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	session := sessionAt("sess_1", start, 10*time.Minute)
	require.NoError(t, store.SaveSession(ctx, session))

	session.Title = "revised title"
	require.NoError(t, store.SaveSession(ctx, session))

	sessions, err := store.SessionsForDate(ctx, "2026-09-01")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "revised title", sessions[0].Title)
}

func TestSaveSessionRejectsOpen(t *testing.T) {
	store := newTestStore(t)

	err := store.SaveSession(context.Background(), types.ActivitySession{
		ID:        "sess_open",
		StartTime: time.Now(),
	})
	assert.Error(t, err)
}

func TestDaySummaryRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	original := types.DaySummary{
		Date:              "2026-09-01",
		TotalScreenTime:   3 * time.Hour,
		ActivityCount:     12,
		ProductivityScore: 0.72,
		TopApps: []types.AppUsage{
			{AppName: "Editor", Category: types.CategoryProductivity, Duration: 2 * time.Hour},
			{AppName: "Chrome", Category: types.CategoryBrowsing, Duration: time.Hour},
		},
		AISummaryText: "A focused morning of writing.",
	}
	require.NoError(t, store.SaveDaySummary(ctx, original))

	got, err := store.DaySummary(ctx, "2026-09-01")
	require.NoError(t, err)
	assert.Equal(t, original, got)
}

func TestDaySummaryUpserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	summary := types.DaySummary{Date: "2026-09-01", ActivityCount: 1}
	require.NoError(t, store.SaveDaySummary(ctx, summary))

	summary.ActivityCount = 5
	summary.AISummaryText = "revised"
	require.NoError(t, store.SaveDaySummary(ctx, summary))

	got, err := store.DaySummary(ctx, "2026-09-01")
	require.NoError(t, err)
	assert.Equal(t, 5, got.ActivityCount)
	assert.Equal(t, "revised", got.AISummaryText)
}

func TestDaySummaryNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.DaySummary(context.Background(), "1999-12-31")
	assert.ErrorIs(t, err, ErrNotFound)
}
