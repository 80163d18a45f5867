package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/glancelabs/glance/backend/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id               TEXT PRIMARY KEY,
	date             TEXT NOT NULL,
	start_time       INTEGER NOT NULL,
	end_time         INTEGER NOT NULL,
	last_seen        INTEGER NOT NULL,
	bundle_id        TEXT NOT NULL,
	app_name         TEXT NOT NULL,
	category         TEXT NOT NULL,
	title            TEXT NOT NULL DEFAULT '',
	summary          TEXT NOT NULL DEFAULT '',
	accumulated_text TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_sessions_date ON sessions(date, start_time);

CREATE TABLE IF NOT EXISTS day_summaries (
	date               TEXT PRIMARY KEY,
	total_screen_time  INTEGER NOT NULL,
	activity_count     INTEGER NOT NULL,
	productivity_score REAL NOT NULL,
	top_apps           TEXT NOT NULL DEFAULT '[]',
	ai_summary_text    TEXT NOT NULL DEFAULT ''
);
`

// SQLiteStore is the durable Store backed by a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and
// applies the schema. Use ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The store is written from the pipeline worker and read from HTTP
	// handlers; WAL keeps readers off the writer's back.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// SaveSession upserts a closed session. Open sessions are rejected.
func (s *SQLiteStore) SaveSession(ctx context.Context, session types.ActivitySession) error {
	if session.EndTime == nil {
		return fmt.Errorf("refusing to persist open session %s", session.ID)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, date, start_time, end_time, last_seen, bundle_id, app_name, category, title, summary, accumulated_text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			last_seen = excluded.last_seen,
			bundle_id = excluded.bundle_id,
			app_name = excluded.app_name,
			category = excluded.category,
			title = excluded.title,
			summary = excluded.summary,
			accumulated_text = excluded.accumulated_text`,
		session.ID,
		types.DateKey(session.StartTime),
		session.StartTime.UnixNano(),
		session.EndTime.UnixNano(),
		session.LastSeen.UnixNano(),
		session.App.BundleID,
		session.App.Name,
		string(session.Category),
		session.Title,
		session.Summary,
		session.AccumulatedText,
	)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}
	return nil
}

// SessionsForDate returns the date's closed sessions in start order.
func (s *SQLiteStore) SessionsForDate(ctx context.Context, date string) ([]types.ActivitySession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, start_time, end_time, last_seen, bundle_id, app_name, category, title, summary, accumulated_text
		FROM sessions WHERE date = ? ORDER BY start_time ASC`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions for %s: %w", date, err)
	}
	defer rows.Close()

	var sessions []types.ActivitySession
	for rows.Next() {
		var (
			session                      types.ActivitySession
			startNanos, endNanos, seenNs int64
			category                     string
		)
		if err := rows.Scan(
			&session.ID, &startNanos, &endNanos, &seenNs,
			&session.App.BundleID, &session.App.Name, &category,
			&session.Title, &session.Summary, &session.AccumulatedText,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		session.StartTime = time.Unix(0, startNanos)
		end := time.Unix(0, endNanos)
		session.EndTime = &end
		session.LastSeen = time.Unix(0, seenNs)
		session.Category = types.Category(category)
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions for %s: %w", date, err)
	}
	return sessions, nil
}

// SaveDaySummary upserts the summary keyed by date.
func (s *SQLiteStore) SaveDaySummary(ctx context.Context, summary types.DaySummary) error {
	topApps, err := json.Marshal(summary.TopApps)
	if err != nil {
		return fmt.Errorf("failed to encode top apps: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO day_summaries (date, total_screen_time, activity_count, productivity_score, top_apps, ai_summary_text)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			total_screen_time = excluded.total_screen_time,
			activity_count = excluded.activity_count,
			productivity_score = excluded.productivity_score,
			top_apps = excluded.top_apps,
			ai_summary_text = excluded.ai_summary_text`,
		summary.Date,
		int64(summary.TotalScreenTime),
		summary.ActivityCount,
		summary.ProductivityScore,
		string(topApps),
		summary.AISummaryText,
	)
	if err != nil {
		return fmt.Errorf("failed to save summary for %s: %w", summary.Date, err)
	}
	return nil
}

// DaySummary loads the stored summary for a date.
func (s *SQLiteStore) DaySummary(ctx context.Context, date string) (types.DaySummary, error) {
	var (
		summary    types.DaySummary
		totalNanos int64
		topApps    string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT date, total_screen_time, activity_count, productivity_score, top_apps, ai_summary_text
		FROM day_summaries WHERE date = ?`, date).Scan(
		&summary.Date, &totalNanos, &summary.ActivityCount,
		&summary.ProductivityScore, &topApps, &summary.AISummaryText,
	)
	if err == sql.ErrNoRows {
		return types.DaySummary{}, ErrNotFound
	}
	if err != nil {
		return types.DaySummary{}, fmt.Errorf("failed to load summary for %s: %w", date, err)
	}

	summary.TotalScreenTime = time.Duration(totalNanos)
	if err := json.Unmarshal([]byte(topApps), &summary.TopApps); err != nil {
		return types.DaySummary{}, fmt.Errorf("failed to decode top apps for %s: %w", date, err)
	}
	return summary, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
