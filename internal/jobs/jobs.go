// Package jobs runs the background maintenance schedule: the nightly
// day-finalization pass and the periodic checkpoint of today's rolling
// summary.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/glancelabs/glance/backend/internal/aggregator"
	"github.com/glancelabs/glance/backend/internal/logging"
	"github.com/glancelabs/glance/backend/internal/storage"
	"github.com/glancelabs/glance/backend/internal/summarize"
	"github.com/glancelabs/glance/backend/internal/types"
)

// checkpointInterval is how often today's rolling summary is persisted,
// so a crash loses at most this much aggregate state.
const checkpointInterval = 15 * time.Minute

// finalizeTimeout bounds one day-finalization pass including the AI call.
const finalizeTimeout = 2 * time.Minute

// Snapshotter provides the current day's live summary.
type Snapshotter interface {
	Snapshot(now time.Time) types.DaySummary
}

// Runner owns the cron schedule.
type Runner struct {
	scheduler  gocron.Scheduler
	store      storage.Store
	summarizer summarize.Summarizer
	snapshot   Snapshotter
	topN       int
	log        *logging.Logger
}

// NewRunner builds the schedule; nothing runs until Start.
func NewRunner(store storage.Store, summarizer summarize.Summarizer, snapshot Snapshotter, topN int, log *logging.Logger) (*Runner, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Runner{
		scheduler:  scheduler,
		store:      store,
		summarizer: summarizer,
		snapshot:   snapshot,
		topN:       topN,
		log:        log.Component("jobs"),
	}, nil
}

// Start registers the jobs and begins the schedule.
func (r *Runner) Start() error {
	// Shortly after midnight so every session of the finished day has
	// landed in storage, including one closed by the rollover itself.
	_, err := r.scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 5, 0))),
		gocron.NewTask(r.finalizeYesterday),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule nightly finalization: %w", err)
	}

	_, err = r.scheduler.NewJob(
		gocron.DurationJob(checkpointInterval),
		gocron.NewTask(r.checkpointToday),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule checkpoint: %w", err)
	}

	r.scheduler.Start()
	return nil
}

// Shutdown stops the schedule and waits for running jobs.
func (r *Runner) Shutdown() error {
	return r.scheduler.Shutdown()
}

func (r *Runner) finalizeYesterday() {
	date := types.DateKey(time.Now().AddDate(0, 0, -1))
	if err := r.FinalizeDay(context.Background(), date); err != nil {
		r.log.Error("nightly finalization failed", zap.String("date", date), zap.Error(err))
	}
}

// FinalizeDay recomputes a day's summary from its stored sessions, adds
// the AI prose summary, and persists the result. The recompute makes the
// stored summary authoritative even when the live aggregate missed
// buffered or replayed sessions.
func (r *Runner) FinalizeDay(ctx context.Context, date string) error {
	ctx, cancel := context.WithTimeout(ctx, finalizeTimeout)
	defer cancel()

	sessions, err := r.store.SessionsForDate(ctx, date)
	if err != nil {
		return fmt.Errorf("failed to load sessions for %s: %w", date, err)
	}

	summary := aggregator.Recompute(sessions, date, r.topN)
	if text := r.summarizer.SummarizeDay(ctx, summary, sessions); text != "" {
		summary.AISummaryText = text
	}

	if err := r.store.SaveDaySummary(ctx, summary); err != nil {
		return fmt.Errorf("failed to save summary for %s: %w", date, err)
	}

	r.log.Info("day finalized",
		zap.String("date", date),
		zap.Int("sessions", summary.ActivityCount),
		zap.Bool("ai_summary", summary.AISummaryText != ""))
	return nil
}

func (r *Runner) checkpointToday() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	summary := r.snapshot.Snapshot(time.Now())
	if err := r.store.SaveDaySummary(ctx, summary); err != nil {
		r.log.Warn("checkpoint failed", zap.String("date", summary.Date), zap.Error(err))
	}
}
