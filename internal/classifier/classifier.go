package classifier

import (
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/glancelabs/glance/backend/internal/logging"
	"github.com/glancelabs/glance/backend/internal/monitoring"
	"github.com/glancelabs/glance/backend/internal/shared/id"
	"github.com/glancelabs/glance/backend/internal/types"
)

// ErrNonMonotonicSample is returned when a sample's timestamp is not
// strictly increasing relative to the open session. That is an integration
// error in the caller; accepting it would corrupt session state.
var ErrNonMonotonicSample = errors.New("sample timestamp precedes open session")

// CloseReason records why a session was closed.
type CloseReason string

const (
	ReasonAppSwitch CloseReason = "app_switch"
	ReasonIdle      CloseReason = "idle"
	ReasonStop      CloseReason = "stop"
)

// Sample is one time-ordered unit of pipeline input: frame metadata plus
// the recognition result produced from that frame.
type Sample struct {
	App       types.AppInfo
	Timestamp time.Time
	Result    types.RecognitionResult
}

// Closed is an emitted closed session together with the reason it ended.
type Closed struct {
	Session types.ActivitySession
	Reason  CloseReason
}

// Classifier maintains at most one open activity session and decides, per
// incoming sample, whether to extend it or close it and open a new one.
// It retains no history beyond the open session.
type Classifier struct {
	mu            sync.Mutex
	open          *types.ActivitySession
	seenLines     map[string]struct{}
	idleThreshold time.Duration
	log           *logging.Logger
	metrics       *monitoring.Metrics
}

// New creates a classifier. idleThreshold closes the open session when the
// gap between samples exceeds it, regardless of application. metrics may
// be nil.
func New(idleThreshold time.Duration, log *logging.Logger, metrics *monitoring.Metrics) *Classifier {
	return &Classifier{
		idleThreshold: idleThreshold,
		log:           log.Component("classifier"),
		metrics:       metrics,
	}
}

// Ingest consumes one sample and returns the closed session it displaced,
// if any. Samples must arrive in strictly increasing timestamp order.
func (c *Classifier) Ingest(sample Sample) (*Closed, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open != nil && sample.Timestamp.Before(c.open.LastSeen) {
		return nil, ErrNonMonotonicSample
	}

	var closed *Closed

	// Idle gap closes the session even when the application is unchanged,
	// so an intermittently-foregrounded app never spans an idle stretch.
	if c.open != nil && sample.Timestamp.Sub(c.open.LastSeen) > c.idleThreshold {
		closed = c.close(c.open.LastSeen, ReasonIdle)
	}

	if c.open == nil {
		c.openSession(sample)
		return closed, nil
	}

	if sample.App.BundleID == c.open.App.BundleID {
		c.extend(sample)
		return closed, nil
	}

	closed = c.close(sample.Timestamp, ReasonAppSwitch)
	c.openSession(sample)
	return closed, nil
}

// Flush force-closes the open session at its last-seen timestamp. Called
// on capture stop and on exclusion transitions. Returns nil when idle.
func (c *Classifier) Flush() *Closed {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open == nil {
		return nil
	}
	return c.close(c.open.LastSeen, ReasonStop)
}

// Open returns a copy of the currently open session, or nil.
func (c *Classifier) Open() *types.ActivitySession {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open == nil {
		return nil
	}
	snapshot := *c.open
	return &snapshot
}

// openSession starts a new session seeded from the sample.
func (c *Classifier) openSession(sample Sample) {
	c.open = &types.ActivitySession{
		ID:        id.NewSessionID().String(),
		StartTime: sample.Timestamp,
		App:       sample.App,
		LastSeen:  sample.Timestamp,
	}
	c.seenLines = make(map[string]struct{})
	c.appendText(sample.Result.FullText)

	if c.metrics != nil {
		c.metrics.SessionsOpened.Inc()
		c.metrics.SessionOpen.Set(1)
	}
	c.log.Debug("session opened",
		zap.String("session_id", c.open.ID),
		zap.String("app", sample.App.Name))
}

// extend treats the sample as a continuation of the open session.
func (c *Classifier) extend(sample Sample) {
	c.appendText(sample.Result.FullText)
	c.open.LastSeen = sample.Timestamp
}

// appendText merges new, non-duplicate text fragments into the open
// session's accumulated text, preserving first-seen order.
func (c *Classifier) appendText(fullText string) {
	for _, line := range strings.Split(fullText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, dup := c.seenLines[line]; dup {
			continue
		}
		c.seenLines[line] = struct{}{}
		if c.open.AccumulatedText == "" {
			c.open.AccumulatedText = line
		} else {
			c.open.AccumulatedText += "\n" + line
		}
	}
}

// close finalizes the open session at endTime and derives its display
// fields. Caller holds the lock.
func (c *Classifier) close(endTime time.Time, reason CloseReason) *Closed {
	session := *c.open
	end := endTime
	session.EndTime = &end
	session.Category = Categorize(session.App)
	session.Title = deriveTitle(session)
	session.Summary = deriveSummary(session)

	c.open = nil
	c.seenLines = nil

	if c.metrics != nil {
		c.metrics.SessionsClosed.WithLabelValues(string(reason)).Inc()
		c.metrics.SessionOpen.Set(0)
	}
	c.log.Info("session closed",
		zap.String("session_id", session.ID),
		zap.String("app", session.App.Name),
		zap.String("reason", string(reason)),
		zap.Duration("duration", session.Duration(end)))

	return &Closed{Session: session, Reason: reason}
}

// deriveTitle picks a short label: the first accumulated line, falling
// back to the application name when recognition produced nothing.
func deriveTitle(session types.ActivitySession) string {
	for _, line := range strings.Split(session.AccumulatedText, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return truncate(line, 60)
		}
	}
	return session.App.Name
}

// deriveSummary builds a short description from the first few accumulated
// lines, or a generic one when no text was recognized.
func deriveSummary(session types.ActivitySession) string {
	lines := strings.Split(session.AccumulatedText, "\n")
	kept := make([]string, 0, 3)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kept = append(kept, line)
		if len(kept) == 3 {
			break
		}
	}
	if len(kept) == 0 {
		return "Time in " + session.App.Name
	}
	return truncate(strings.Join(kept, " · "), 200)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
