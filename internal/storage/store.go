package storage

import (
	"context"
	"errors"

	"github.com/glancelabs/glance/backend/internal/types"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store persists sessions and day summaries. Only closed sessions are
// ever stored; the open session lives in the classifier until it closes.
type Store interface {
	// SaveSession upserts a closed session by ID.
	SaveSession(ctx context.Context, session types.ActivitySession) error

	// SessionsForDate returns the closed sessions whose start time falls
	// on the given YYYY-MM-DD date, ordered by start time ascending.
	SessionsForDate(ctx context.Context, date string) ([]types.ActivitySession, error)

	// SaveDaySummary upserts the summary for its date.
	SaveDaySummary(ctx context.Context, summary types.DaySummary) error

	// DaySummary returns the stored summary for a date, or ErrNotFound.
	DaySummary(ctx context.Context, date string) (types.DaySummary, error)

	// Close releases the underlying resources.
	Close() error
}
