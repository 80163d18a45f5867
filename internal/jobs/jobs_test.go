package jobs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glancelabs/glance/backend/internal/logging"
	"github.com/glancelabs/glance/backend/internal/storage"
	"github.com/glancelabs/glance/backend/internal/types"
)

type fakeSummarizer struct {
	text   string
	called bool
}

func (f *fakeSummarizer) SummarizeDay(context.Context, types.DaySummary, []types.ActivitySession) string {
	f.called = true
	return f.text
}

type fixedSnapshot struct {
	summary types.DaySummary
}

func (f fixedSnapshot) Snapshot(time.Time) types.DaySummary { return f.summary }

func newTestRunner(t *testing.T, summarizer *fakeSummarizer) (*Runner, storage.Store) {
	t.Helper()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "glance.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	runner, err := NewRunner(store, summarizer, fixedSnapshot{}, 5, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { runner.Shutdown() })

	return runner, store
}

func saveSession(t *testing.T, store storage.Store, id string, start time.Time, duration time.Duration, category types.Category) {
	t.Helper()
	end := start.Add(duration)
	require.NoError(t, store.SaveSession(context.Background(), types.ActivitySession{
		ID:        id,
		StartTime: start,
		EndTime:   &end,
		LastSeen:  end,
		App:       types.AppInfo{BundleID: "com.editor.app", Name: "Editor"},
		Category:  category,
	}))
}

func TestFinalizeDay(t *testing.T) {
	summarizer := &fakeSummarizer{text: "You mostly wrote."}
	runner, store := newTestRunner(t, summarizer)
	ctx := context.Background()

	day := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	saveSession(t, store, "sess_1", day, 30*time.Minute, types.CategoryProductivity)
	saveSession(t, store, "sess_2", day.Add(time.Hour), 15*time.Minute, types.CategoryProductivity)

	require.NoError(t, runner.FinalizeDay(ctx, "2026-08-31"))

	summary, err := store.DaySummary(ctx, "2026-08-31")
	require.NoError(t, err)
	assert.Equal(t, 45*time.Minute, summary.TotalScreenTime)
	assert.Equal(t, 2, summary.ActivityCount)
	assert.Equal(t, "You mostly wrote.", summary.AISummaryText)
	require.Len(t, summary.TopApps, 1)
	assert.Equal(t, "Editor", summary.TopApps[0].AppName)
}

func TestFinalizeDayOverwritesCheckpoint(t *testing.T) {
	summarizer := &fakeSummarizer{}
	runner, store := newTestRunner(t, summarizer)
	ctx := context.Background()

	// A stale checkpoint from before the day's last sessions landed.
	require.NoError(t, store.SaveDaySummary(ctx, types.DaySummary{
		Date:          "2026-08-31",
		ActivityCount: 1,
	}))

	day := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	saveSession(t, store, "sess_1", day, 10*time.Minute, types.CategoryOther)
	saveSession(t, store, "sess_2", day.Add(time.Hour), 10*time.Minute, types.CategoryOther)
	saveSession(t, store, "sess_3", day.Add(2*time.Hour), 10*time.Minute, types.CategoryOther)

	require.NoError(t, runner.FinalizeDay(ctx, "2026-08-31"))

	summary, err := store.DaySummary(ctx, "2026-08-31")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.ActivityCount)
	assert.Equal(t, 30*time.Minute, summary.TotalScreenTime)
}

func TestFinalizeEmptyDay(t *testing.T) {
	summarizer := &fakeSummarizer{}
	runner, store := newTestRunner(t, summarizer)
	ctx := context.Background()

	require.NoError(t, runner.FinalizeDay(ctx, "2026-08-30"))

	summary, err := store.DaySummary(ctx, "2026-08-30")
	require.NoError(t, err)
	assert.Zero(t, summary.ActivityCount)
	assert.Zero(t, summary.TotalScreenTime)
}
