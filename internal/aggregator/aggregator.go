package aggregator

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/glancelabs/glance/backend/internal/types"
)

// categoryScores is the fixed category→score table behind the
// productivity score.
var categoryScores = map[types.Category]float64{
	types.CategoryProductivity:  1.0,
	types.CategoryCommunication: 0.6,
	types.CategoryBrowsing:      0.4,
	types.CategoryEntertainment: 0.1,
	types.CategoryOther:         0.5,
}

// appAccum is the running per-app accumulation for one day.
type appAccum struct {
	category types.Category
	duration time.Duration
}

// Aggregator maintains the rolling summary for one calendar day. A single
// mutex guards every mutation so readers never observe a half-updated
// summary.
type Aggregator struct {
	mu        sync.Mutex
	date      string
	total     time.Duration
	count     int
	perApp    map[string]*appAccum
	topN      int
	aiSummary string
}

// New creates an aggregator for the day containing now.
func New(topN int, now time.Time) *Aggregator {
	return &Aggregator{
		date:   types.DateKey(now),
		perApp: make(map[string]*appAccum),
		topN:   topN,
	}
}

// Date returns the day this aggregator covers (YYYY-MM-DD).
func (a *Aggregator) Date() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.date
}

// Apply folds one closed session into the running totals.
func (a *Aggregator) Apply(session types.ActivitySession) {
	if session.EndTime == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	duration := session.EndTime.Sub(session.StartTime)
	a.total += duration
	a.count++

	accum, ok := a.perApp[session.App.Name]
	if !ok {
		accum = &appAccum{category: session.Category}
		a.perApp[session.App.Name] = accum
	}
	accum.duration += duration
}

// Reset clears all state and moves the aggregator to the day containing
// now. Called at day rollover.
func (a *Aggregator) Reset(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.date = types.DateKey(now)
	a.total = 0
	a.count = 0
	a.perApp = make(map[string]*appAccum)
	a.aiSummary = ""
}

// SetAISummary attaches the prose summary supplied by the summarization
// collaborator.
func (a *Aggregator) SetAISummary(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.aiSummary = text
}

// Summary returns a consistent snapshot over closed sessions only.
func (a *Aggregator) Summary() types.DaySummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.summaryLocked()
}

// SummaryWithOpen returns the display snapshot: the open session (if any)
// contributes its live duration to total screen time and activity count,
// but is never folded into the persisted per-app map.
func (a *Aggregator) SummaryWithOpen(now time.Time, open *types.ActivitySession) types.DaySummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	summary := a.summaryLocked()
	if open != nil && open.EndTime == nil {
		summary.TotalScreenTime += now.Sub(open.StartTime)
		summary.ActivityCount++
	}
	return summary
}

// summaryLocked materializes the DaySummary. Caller holds the lock.
func (a *Aggregator) summaryLocked() types.DaySummary {
	return types.DaySummary{
		Date:              a.date,
		TotalScreenTime:   a.total,
		ActivityCount:     a.count,
		ProductivityScore: a.scoreLocked(),
		TopApps:           a.topAppsLocked(),
		AISummaryText:     a.aiSummary,
	}
}

// scoreLocked computes the duration-weighted mean of category scores,
// clamped to [0,1]. Zero when the day has no closed time yet.
func (a *Aggregator) scoreLocked() float64 {
	if a.total <= 0 {
		return 0
	}

	// Iterate apps in sorted order so floating point accumulation is
	// reproducible across the incremental and recompute paths.
	names := make([]string, 0, len(a.perApp))
	for name := range a.perApp {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make([]float64, len(names))
	weights := make([]float64, len(names))
	for i, name := range names {
		accum := a.perApp[name]
		score, ok := categoryScores[accum.category]
		if !ok {
			score = categoryScores[types.CategoryOther]
		}
		values[i] = score
		weights[i] = accum.duration.Seconds()
	}

	mean := stat.Mean(values, weights)
	if mean < 0 {
		return 0
	}
	if mean > 1 {
		return 1
	}
	return mean
}

// topAppsLocked returns per-app usage sorted by duration descending,
// app name ascending on ties, truncated to the configured N.
func (a *Aggregator) topAppsLocked() []types.AppUsage {
	apps := make([]types.AppUsage, 0, len(a.perApp))
	for name, accum := range a.perApp {
		apps = append(apps, types.AppUsage{
			AppName:  name,
			Category: accum.category,
			Duration: accum.duration,
		})
	}

	sort.Slice(apps, func(i, j int) bool {
		if apps[i].Duration != apps[j].Duration {
			return apps[i].Duration > apps[j].Duration
		}
		return apps[i].AppName < apps[j].AppName
	})

	if len(apps) > a.topN {
		apps = apps[:a.topN]
	}
	return apps
}

// Recompute builds a DaySummary for date from scratch by applying every
// session in order. It is defined in terms of the incremental path, so
// both paths produce identical results by construction.
func Recompute(sessions []types.ActivitySession, date string, topN int) types.DaySummary {
	agg := &Aggregator{
		date:   date,
		perApp: make(map[string]*appAccum),
		topN:   topN,
	}
	for _, session := range sessions {
		agg.Apply(session)
	}
	return agg.Summary()
}
