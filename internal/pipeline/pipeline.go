// Package pipeline wires recognition, classification, and aggregation
// into the single-worker frame processor driven by the capture scheduler.
package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/glancelabs/glance/backend/internal/aggregator"
	"github.com/glancelabs/glance/backend/internal/classifier"
	"github.com/glancelabs/glance/backend/internal/logging"
	"github.com/glancelabs/glance/backend/internal/recognition"
	"github.com/glancelabs/glance/backend/internal/types"
)

// Sink persists pipeline output. Implementations absorb failures; the
// pipeline never blocks on storage.
type Sink interface {
	SaveSession(session types.ActivitySession)
	SaveDaySummary(summary types.DaySummary)
}

// Pipeline turns captured frames into sessions and rolls them into the
// day aggregate. All Process and Flush calls arrive from one goroutine;
// read-side snapshots may arrive from any.
type Pipeline struct {
	engine     *recognition.Engine
	classifier *classifier.Classifier
	aggregator *aggregator.Aggregator
	sink       Sink
	log        *logging.Logger
}

// New assembles a pipeline around an already-seeded aggregator.
func New(engine *recognition.Engine, cls *classifier.Classifier, agg *aggregator.Aggregator, sink Sink, log *logging.Logger) *Pipeline {
	return &Pipeline{
		engine:     engine,
		classifier: cls,
		aggregator: agg,
		sink:       sink,
		log:        log.Component("pipeline"),
	}
}

// Process runs one frame through recognition and classification. Closed
// sessions roll into the aggregate and are persisted.
func (p *Pipeline) Process(ctx context.Context, frame *types.CapturedFrame) {
	result := p.engine.Recognize(ctx, frame)

	closed, err := p.classifier.Ingest(classifier.Sample{
		App:       frame.Source,
		Timestamp: frame.Timestamp,
		Result:    result,
	})
	if err != nil {
		if errors.Is(err, classifier.ErrNonMonotonicSample) {
			p.log.Warn("dropped out-of-order frame",
				zap.String("frame_id", frame.ID),
				zap.Time("timestamp", frame.Timestamp))
			return
		}
		p.log.Error("classification failed", zap.Error(err))
		return
	}

	if closed != nil {
		p.commit(closed.Session)
	}
}

// Flush force-closes the open session and commits it.
func (p *Pipeline) Flush() {
	if closed := p.classifier.Flush(); closed != nil {
		p.commit(closed.Session)
	}
}

// Snapshot returns the current day summary including the live duration
// of the open session, if any.
func (p *Pipeline) Snapshot(now time.Time) types.DaySummary {
	return p.aggregator.SummaryWithOpen(now, p.classifier.Open())
}

// OpenSession returns a copy of the currently open session, or nil.
func (p *Pipeline) OpenSession() *types.ActivitySession {
	return p.classifier.Open()
}

// commit attributes a closed session to its day, rolling the aggregate
// over first when the session belongs to a new day.
func (p *Pipeline) commit(session types.ActivitySession) {
	day := types.DateKey(session.StartTime)
	if day != p.aggregator.Date() {
		// Persist the finished day before the aggregate resets. The
		// nightly job recomputes it from storage and adds prose.
		p.sink.SaveDaySummary(p.aggregator.Summary())
		p.aggregator.Reset(session.StartTime)
	}

	p.aggregator.Apply(session)
	p.sink.SaveSession(session)

	p.log.Debug("session committed",
		zap.String("session_id", session.ID),
		zap.String("app", session.App.Name),
		zap.Duration("duration", session.Duration(time.Now())))
}
