package types

import "time"

// Category buckets an application for productivity scoring.
type Category string

const (
	CategoryProductivity  Category = "productivity"
	CategoryCommunication Category = "communication"
	CategoryEntertainment Category = "entertainment"
	CategoryBrowsing      Category = "browsing"
	CategoryOther         Category = "other"
)

// ActivitySession is a contiguous span of time attributed to one application.
// EndTime is nil while the session is open; an open session is exclusively
// owned by the classifier until closed.
type ActivitySession struct {
	ID              string     `json:"id"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	App             AppInfo    `json:"app"`
	Category        Category   `json:"category"`
	AccumulatedText string     `json:"accumulated_text"`
	Title           string     `json:"title"`
	Summary         string     `json:"summary"`
	// LastSeen is the timestamp of the most recent sample that touched
	// this session; it drives idle-gap detection.
	LastSeen time.Time `json:"last_seen"`
}

// IsOpen reports whether the session has not yet been closed.
func (s *ActivitySession) IsOpen() bool {
	return s.EndTime == nil
}

// Duration returns the closed span, or the live span relative to now for
// an open session.
func (s *ActivitySession) Duration(now time.Time) time.Duration {
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return now.Sub(s.StartTime)
}

// AppUsage is derived per-app usage within an aggregation window.
// It is recomputed from sessions, never persisted as source of truth.
type AppUsage struct {
	AppName  string        `json:"app_name"`
	Category Category      `json:"category"`
	Duration time.Duration `json:"duration"`
}

// DaySummary is the rolling per-day aggregate.
type DaySummary struct {
	Date              string        `json:"date"` // YYYY-MM-DD, local time
	TotalScreenTime   time.Duration `json:"total_screen_time"`
	ActivityCount     int           `json:"activity_count"`
	ProductivityScore float64       `json:"productivity_score"` // [0,1]
	TopApps           []AppUsage    `json:"top_apps"`
	AISummaryText     string        `json:"ai_summary_text,omitempty"`
}

// DateKey formats t as a DaySummary date in t's location.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
