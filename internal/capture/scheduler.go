package capture

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/glancelabs/glance/backend/internal/logging"
	"github.com/glancelabs/glance/backend/internal/monitoring"
	"github.com/glancelabs/glance/backend/internal/shared/id"
	"github.com/glancelabs/glance/backend/internal/types"
)

// Processor consumes frames in capture order. Process is called from a
// single worker goroutine, so implementations never see concurrent calls.
type Processor interface {
	// Process handles one captured frame.
	Process(ctx context.Context, frame *types.CapturedFrame)

	// Flush closes any open session. Called when capture stops and when
	// the foreground application becomes excluded.
	Flush()
}

// task is one unit of worker input. Exactly one of frame or flush is set.
type task struct {
	frame *types.CapturedFrame
	flush bool
}

// Scheduler drives the capture loop: a ticker decides when to look at the
// screen, a single worker processes frames one at a time. Ticks that
// arrive while the worker is busy and a frame is already queued are
// dropped rather than buffered, so the pipeline never falls behind
// wall-clock time.
type Scheduler struct {
	source    Source
	processor Processor
	interval  time.Duration

	exclMu     sync.RWMutex
	exclusions map[string]struct{}

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	tickDone chan struct{}
	workDone chan struct{}
	tasks    chan task
	cancel   context.CancelFunc

	wasExcluded bool

	log     *logging.Logger
	metrics *monitoring.Metrics
}

// NewScheduler creates a stopped scheduler. metrics may be nil.
func NewScheduler(source Source, processor Processor, interval time.Duration, exclusions []string, log *logging.Logger, metrics *monitoring.Metrics) *Scheduler {
	s := &Scheduler{
		source:    source,
		processor: processor,
		interval:  interval,
		log:       log.Component("capture"),
		metrics:   metrics,
	}
	s.SetExclusions(exclusions)
	return s
}

// Start begins capturing. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.stopCh = make(chan struct{})
	s.tickDone = make(chan struct{})
	s.workDone = make(chan struct{})
	s.tasks = make(chan task, 1)
	s.wasExcluded = false
	s.running = true

	go s.work(ctx, s.tasks, s.workDone)
	go s.run(s.stopCh, s.tasks, s.tickDone)

	s.log.Info("capture started", zap.Duration("interval", s.interval))
}

// Stop halts capturing, drains the in-flight frame, and flushes the open
// session. Calling Stop on a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	close(s.stopCh)
	<-s.tickDone
	close(s.tasks)
	<-s.workDone
	s.cancel()
	s.running = false

	s.processor.Flush()
	s.log.Info("capture stopped")
}

// Toggle flips the running state and reports the new state.
func (s *Scheduler) Toggle() bool {
	if s.Running() {
		s.Stop()
		return false
	}
	s.Start()
	return true
}

// Running reports whether the scheduler is capturing.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Interval returns the configured capture cadence.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// SetExclusions replaces the excluded bundle identifier set. Takes effect
// on the next tick.
func (s *Scheduler) SetExclusions(bundleIDs []string) {
	set := make(map[string]struct{}, len(bundleIDs))
	for _, b := range bundleIDs {
		b = strings.ToLower(strings.TrimSpace(b))
		if b != "" {
			set[b] = struct{}{}
		}
	}

	s.exclMu.Lock()
	s.exclusions = set
	s.exclMu.Unlock()
}

// Exclusions returns the current excluded bundle identifiers in
// arbitrary order.
func (s *Scheduler) Exclusions() []string {
	s.exclMu.RLock()
	defer s.exclMu.RUnlock()

	out := make([]string, 0, len(s.exclusions))
	for b := range s.exclusions {
		out = append(out, b)
	}
	return out
}

func (s *Scheduler) excluded(bundleID string) bool {
	s.exclMu.RLock()
	defer s.exclMu.RUnlock()
	_, ok := s.exclusions[strings.ToLower(bundleID)]
	return ok
}

// run is the control loop. It owns the ticker and is the only sender on
// the task channel.
func (s *Scheduler) run(stop <-chan struct{}, tasks chan<- task, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.tick(tasks)
		}
	}
}

// tick captures one frame and hands it to the worker, or records why it
// did not.
func (s *Scheduler) tick(tasks chan<- task) {
	if s.metrics != nil {
		s.metrics.TicksTotal.Inc()
	}

	app, err := s.source.CurrentApp()
	if err != nil {
		s.skip("source_error")
		s.log.Warn("failed to resolve foreground app", zap.Error(err))
		return
	}

	if s.excluded(app.BundleID) {
		s.skip("excluded")
		// Entering an excluded app ends the open session; time spent
		// there is never attributed to anything.
		if !s.wasExcluded {
			select {
			case tasks <- task{flush: true}:
				s.wasExcluded = true
			default:
			}
		}
		return
	}
	s.wasExcluded = false

	imageData, err := s.source.CaptureFrame()
	if err != nil {
		s.skip("source_error")
		s.log.Warn("failed to capture frame", zap.Error(err))
		return
	}

	frame := &types.CapturedFrame{
		ID:        id.NewFrameID().String(),
		Timestamp: time.Now(),
		Source:    app,
		ImageData: imageData,
	}

	select {
	case tasks <- task{frame: frame}:
		if s.metrics != nil {
			s.metrics.FramesCaptured.Inc()
		}
	default:
		// Worker is still busy with the previous frame. Drop this tick
		// so samples stay anchored to real capture times.
		s.skip("overdue")
	}
}

func (s *Scheduler) skip(reason string) {
	if s.metrics != nil {
		s.metrics.FramesSkipped.WithLabelValues(reason).Inc()
	}
}

// work is the single pipeline worker. It exits when the task channel is
// closed and drained.
func (s *Scheduler) work(ctx context.Context, tasks <-chan task, done chan<- struct{}) {
	defer close(done)

	for t := range tasks {
		if t.flush {
			s.processor.Flush()
			continue
		}
		s.processor.Process(ctx, t.frame)
		t.frame.ImageData = nil
	}
}
