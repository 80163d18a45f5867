package recognition

import (
	"bytes"
	"context"
	"image"
	"sort"
	"strings"
	"time"

	// Registered for image.DecodeConfig; frames arrive PNG or JPEG encoded.
	_ "image/jpeg"
	_ "image/png"

	"github.com/abadojack/whatlanggo"
	"go.uber.org/zap"

	"github.com/glancelabs/glance/backend/internal/config"
	"github.com/glancelabs/glance/backend/internal/logging"
	"github.com/glancelabs/glance/backend/internal/monitoring"
	"github.com/glancelabs/glance/backend/internal/types"
)

// Region is one raw candidate text region from a recognition backend.
// Box is in pixel coordinates with a top-left origin, as vision backends
// report them; the engine normalizes to the bottom-left-origin unit space.
type Region struct {
	Text       string
	Confidence float64 // [0,1]
	Box        image.Rectangle
}

// Backend runs the actual text recognition on encoded image bytes.
// Implementations are expected to honor ctx cancellation on a best-effort
// basis; the engine enforces its own deadline regardless.
type Backend interface {
	Recognize(ctx context.Context, imageData []byte) ([]Region, error)
	Close() error
}

// Engine turns one captured frame into a structured recognition result.
// It never returns an error: decode failures, backend errors, and timeouts
// all degrade to an empty result so the pipeline treats them as "no text".
type Engine struct {
	backend Backend
	cfg     config.RecognitionConfig
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// New creates a recognition engine. metrics may be nil.
func New(backend Backend, cfg config.RecognitionConfig, log *logging.Logger, metrics *monitoring.Metrics) *Engine {
	return &Engine{
		backend: backend,
		cfg:     cfg,
		log:     log.Component("recognition"),
		metrics: metrics,
	}
}

// Recognize runs one recognition pass over the frame. Must be called from
// the pipeline worker, never from a thread driving interactive updates.
func (e *Engine) Recognize(ctx context.Context, frame *types.CapturedFrame) types.RecognitionResult {
	start := time.Now()

	bounds, _, err := image.DecodeConfig(bytes.NewReader(frame.ImageData))
	if err != nil || bounds.Width <= 0 || bounds.Height <= 0 {
		e.countError("decode")
		e.log.Debug("frame not decodable, degrading to empty result",
			zap.String("frame_id", frame.ID), zap.Error(err))
		return e.finish(start, nil, "")
	}

	regions, err := e.recognizeWithTimeout(ctx, frame.ImageData)
	if err != nil {
		kind := "backend"
		if err == context.DeadlineExceeded || err == context.Canceled {
			kind = "timeout"
		}
		e.countError(kind)
		e.log.Warn("recognition degraded to empty result",
			zap.String("frame_id", frame.ID), zap.Error(err))
		return e.finish(start, nil, "")
	}

	observations := e.buildObservations(regions, bounds.Width, bounds.Height)
	fullText := joinReadingOrder(observations)
	lang := detectLanguage(fullText)

	return e.finish(start, observations, lang)
}

// Close releases the backend.
func (e *Engine) Close() error {
	return e.backend.Close()
}

// recognizeWithTimeout bounds the backend call so a pathological frame
// cannot stall the pipeline. The stranded goroutine's buffered send is
// simply dropped after a timeout.
func (e *Engine) recognizeWithTimeout(ctx context.Context, imageData []byte) ([]Region, error) {
	timeout := e.cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		regions []Region
		err     error
	}
	done := make(chan outcome, 1)

	go func() {
		regions, err := e.backend.Recognize(ctx, imageData)
		done <- outcome{regions: regions, err: err}
	}()

	select {
	case out := <-done:
		return out.regions, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// buildObservations filters candidates by confidence, normalizes bounding
// boxes to the bottom-left-origin unit space, and sorts into reading order.
func (e *Engine) buildObservations(regions []Region, width, height int) []types.TextObservation {
	observations := make([]types.TextObservation, 0, len(regions))
	w := float64(width)
	h := float64(height)

	for _, r := range regions {
		text := strings.TrimSpace(r.Text)
		if text == "" || r.Confidence < e.cfg.MinConfidence {
			continue
		}
		observations = append(observations, types.TextObservation{
			Text:       text,
			Confidence: clamp01(r.Confidence),
			Box: types.Rect{
				X:      clamp01(float64(r.Box.Min.X) / w),
				Y:      clamp01(1 - float64(r.Box.Max.Y)/h),
				Width:  clamp01(float64(r.Box.Dx()) / w),
				Height: clamp01(float64(r.Box.Dy()) / h),
			},
		})
	}

	// Reading order: top of screen first (descending Y with bottom-left
	// origin), ties broken left to right.
	sort.SliceStable(observations, func(i, j int) bool {
		if observations[i].Box.Y != observations[j].Box.Y {
			return observations[i].Box.Y > observations[j].Box.Y
		}
		return observations[i].Box.X < observations[j].Box.X
	})

	return observations
}

func (e *Engine) finish(start time.Time, observations []types.TextObservation, lang string) types.RecognitionResult {
	result := types.RecognitionResult{
		FullText:         joinReadingOrder(observations),
		Observations:     observations,
		DetectedLanguage: lang,
	}
	result.ProcessingDuration = time.Since(start)
	if e.metrics != nil {
		e.metrics.RecordRecognition(result.ProcessingDuration, len(observations), result.IsEmpty())
	}
	return result
}

func (e *Engine) countError(kind string) {
	if e.metrics != nil {
		e.metrics.RecognitionErrors.WithLabelValues(kind).Inc()
	}
}

// joinReadingOrder joins observation text with line separators.
func joinReadingOrder(observations []types.TextObservation) string {
	if len(observations) == 0 {
		return ""
	}
	lines := make([]string, len(observations))
	for i, o := range observations {
		lines[i] = o.Text
	}
	return strings.Join(lines, "\n")
}

// detectLanguage returns the dominant language of text as an ISO 639-3
// tag, or "" when detection is unreliable or text is empty. Detection is
// best-effort and never fails the recognition call.
func detectLanguage(text string) string {
	if text == "" {
		return ""
	}
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6393()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
