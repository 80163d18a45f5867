package storage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/glancelabs/glance/backend/internal/logging"
	"github.com/glancelabs/glance/backend/internal/monitoring"
	"github.com/glancelabs/glance/backend/internal/resilience"
	"github.com/glancelabs/glance/backend/internal/types"
)

// maxBuffered bounds the retry buffer. When full, the oldest pending
// write is dropped; sessions are also recoverable from a later recompute,
// so bounded loss beats unbounded memory.
const maxBuffered = 1024

// writeTimeout bounds one persistence attempt.
const writeTimeout = 5 * time.Second

// pendingWrite is one buffered persistence operation.
type pendingWrite struct {
	session *types.ActivitySession
	summary *types.DaySummary
}

// BufferedSink writes through to a Store behind a circuit breaker.
// Failed writes are buffered in memory and retried on the next
// successful pass. Save calls never block on a wedged store and never
// return errors; degradation is observable instead.
type BufferedSink struct {
	store   Store
	breaker *resilience.Breaker

	mu      sync.Mutex
	pending []pendingWrite

	log     *logging.Logger
	metrics *monitoring.Metrics
}

// NewBufferedSink wraps store. metrics may be nil.
func NewBufferedSink(store Store, log *logging.Logger, metrics *monitoring.Metrics) *BufferedSink {
	sink := &BufferedSink{
		store:   store,
		log:     log.Component("storage"),
		metrics: metrics,
	}
	sink.breaker = resilience.New("storage", resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to resilience.State) {
			sink.log.Warn("storage breaker state changed",
				zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return sink
}

// SaveSession persists a closed session, buffering it on failure.
func (s *BufferedSink) SaveSession(session types.ActivitySession) {
	s.write(pendingWrite{session: &session})
}

// SaveDaySummary persists a day summary, buffering it on failure.
func (s *BufferedSink) SaveDaySummary(summary types.DaySummary) {
	s.write(pendingWrite{summary: &summary})
}

// Degraded reports whether writes are currently failing or buffered.
func (s *BufferedSink) Degraded() bool {
	s.mu.Lock()
	buffered := len(s.pending)
	s.mu.Unlock()
	return buffered > 0 || s.breaker.State() != resilience.StateClosed
}

// Buffered returns the number of writes awaiting retry.
func (s *BufferedSink) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Flush retries all buffered writes immediately. Returns the number
// still pending afterwards.
func (s *BufferedSink) Flush() int {
	s.drain()
	return s.Buffered()
}

func (s *BufferedSink) write(w pendingWrite) {
	if err := s.attempt(w); err != nil {
		s.buffer(w)
		s.log.Warn("persistence failed, write buffered", zap.Error(err))
		return
	}
	if s.metrics != nil {
		s.metrics.StorageSaves.Inc()
	}
	// A success is the cue that the store is healthy again.
	s.drain()
}

// attempt runs one store write through the breaker.
func (s *BufferedSink) attempt(w pendingWrite) error {
	return s.breaker.Do(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if w.session != nil {
			return s.store.SaveSession(ctx, *w.session)
		}
		return s.store.SaveDaySummary(ctx, *w.summary)
	})
}

func (s *BufferedSink) buffer(w pendingWrite) {
	s.mu.Lock()
	if len(s.pending) >= maxBuffered {
		s.pending = s.pending[1:]
	}
	s.pending = append(s.pending, w)
	buffered := len(s.pending)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.StorageFailures.Inc()
		s.metrics.StorageBuffered.Set(float64(buffered))
	}
}

// drain replays buffered writes in order, stopping at the first failure.
func (s *BufferedSink) drain() {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			return
		}
		w := s.pending[0]
		s.mu.Unlock()

		if err := s.attempt(w); err != nil {
			return
		}

		s.mu.Lock()
		// The head may have been dropped by a concurrent overflow; only
		// remove it if it is still the write we replayed.
		if len(s.pending) > 0 && s.pending[0] == w {
			s.pending = s.pending[1:]
		}
		buffered := len(s.pending)
		s.mu.Unlock()

		if s.metrics != nil {
			s.metrics.StorageSaves.Inc()
			s.metrics.StorageBuffered.Set(float64(buffered))
		}
	}
}
