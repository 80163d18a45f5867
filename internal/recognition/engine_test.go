package recognition

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glancelabs/glance/backend/internal/config"
	"github.com/glancelabs/glance/backend/internal/logging"
	"github.com/glancelabs/glance/backend/internal/types"
)

// fakeBackend returns canned regions or fails on demand.
type fakeBackend struct {
	regions []Region
	err     error
	delay   time.Duration
}

func (f *fakeBackend) Recognize(ctx context.Context, imageData []byte) ([]Region, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.regions, f.err
}

func (f *fakeBackend) Close() error { return nil }

// testFrame returns a frame holding a valid 100x80 PNG.
func testFrame(t *testing.T) *types.CapturedFrame {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 100, 80))))
	return &types.CapturedFrame{
		ID:        "frm_test",
		Timestamp: time.Now(),
		Source:    types.AppInfo{BundleID: "com.editor.app", Name: "Editor"},
		ImageData: buf.Bytes(),
	}
}

func newTestEngine(backend Backend, minConfidence float64) *Engine {
	return New(backend, config.RecognitionConfig{
		MinConfidence: minConfidence,
		Timeout:       time.Second,
	}, logging.Nop(), nil)
}

func TestRecognizeFiltersLowConfidence(t *testing.T) {
	thresholds := []float64{0.0, 0.3, 0.5, 0.9}

	backend := &fakeBackend{regions: []Region{
		{Text: "high", Confidence: 0.95, Box: image.Rect(0, 0, 50, 10)},
		{Text: "mid", Confidence: 0.5, Box: image.Rect(0, 20, 50, 30)},
		{Text: "low", Confidence: 0.1, Box: image.Rect(0, 40, 50, 50)},
	}}

	for _, threshold := range thresholds {
		engine := newTestEngine(backend, threshold)
		result := engine.Recognize(context.Background(), testFrame(t))

		for _, obs := range result.Observations {
			assert.GreaterOrEqual(t, obs.Confidence, threshold,
				"threshold %.2f surfaced observation below it", threshold)
		}
	}
}

func TestRecognizeReadingOrder(t *testing.T) {
	// Pixel coordinates are top-left origin: smaller Y means higher on
	// screen. The middle two share a row and must sort left to right.
	backend := &fakeBackend{regions: []Region{
		{Text: "bottom", Confidence: 0.9, Box: image.Rect(10, 60, 90, 70)},
		{Text: "row right", Confidence: 0.9, Box: image.Rect(50, 30, 90, 40)},
		{Text: "row left", Confidence: 0.9, Box: image.Rect(5, 30, 45, 40)},
		{Text: "top", Confidence: 0.9, Box: image.Rect(10, 0, 90, 10)},
	}}

	engine := newTestEngine(backend, 0.3)
	result := engine.Recognize(context.Background(), testFrame(t))

	require.Len(t, result.Observations, 4)
	assert.Equal(t, "top", result.Observations[0].Text)
	assert.Equal(t, "row left", result.Observations[1].Text)
	assert.Equal(t, "row right", result.Observations[2].Text)
	assert.Equal(t, "bottom", result.Observations[3].Text)
	assert.Equal(t, "top\nrow left\nrow right\nbottom", result.FullText)

	// Descending vertical position holds pairwise
	for i := 1; i < len(result.Observations); i++ {
		assert.GreaterOrEqual(t,
			result.Observations[i-1].Box.Y, result.Observations[i].Box.Y)
	}
}

func TestRecognizeNormalizesBoxes(t *testing.T) {
	// 100x80 frame; a region occupying the top-left quarter.
	backend := &fakeBackend{regions: []Region{
		{Text: "corner", Confidence: 0.9, Box: image.Rect(0, 0, 50, 40)},
	}}

	engine := newTestEngine(backend, 0.3)
	result := engine.Recognize(context.Background(), testFrame(t))

	require.Len(t, result.Observations, 1)
	box := result.Observations[0].Box
	assert.InDelta(t, 0.0, box.X, 1e-9)
	assert.InDelta(t, 0.5, box.Y, 1e-9) // bottom edge at half height, bottom-left origin
	assert.InDelta(t, 0.5, box.Width, 1e-9)
	assert.InDelta(t, 0.5, box.Height, 1e-9)
}

func TestRecognizeDecodeFailure(t *testing.T) {
	backend := &fakeBackend{regions: []Region{
		{Text: "never seen", Confidence: 0.9, Box: image.Rect(0, 0, 10, 10)},
	}}
	engine := newTestEngine(backend, 0.3)

	frame := &types.CapturedFrame{ID: "frm_bad", ImageData: []byte("not an image")}
	result := engine.Recognize(context.Background(), frame)

	assert.True(t, result.IsEmpty())
	assert.Empty(t, result.Observations)
	assert.Zero(t, result.AverageConfidence())
	assert.Greater(t, result.ProcessingDuration, time.Duration(0))
}

func TestRecognizeBackendErrorDegrades(t *testing.T) {
	backend := &fakeBackend{err: errors.New("ocr backend exploded")}
	engine := newTestEngine(backend, 0.3)

	result := engine.Recognize(context.Background(), testFrame(t))

	assert.True(t, result.IsEmpty())
	assert.Empty(t, result.DetectedLanguage)
}

func TestRecognizeTimeoutDegrades(t *testing.T) {
	backend := &fakeBackend{
		delay:   200 * time.Millisecond,
		regions: []Region{{Text: "late", Confidence: 0.9, Box: image.Rect(0, 0, 10, 10)}},
	}
	engine := New(backend, config.RecognitionConfig{
		MinConfidence: 0.3,
		Timeout:       20 * time.Millisecond,
	}, logging.Nop(), nil)

	start := time.Now()
	result := engine.Recognize(context.Background(), testFrame(t))

	assert.True(t, result.IsEmpty())
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestRecognizeLanguageDetection(t *testing.T) {
	backend := &fakeBackend{regions: []Region{
		{Text: "The quick brown fox jumps over the lazy dog near the river bank", Confidence: 0.9, Box: image.Rect(0, 0, 90, 10)},
	}}
	engine := newTestEngine(backend, 0.3)

	result := engine.Recognize(context.Background(), testFrame(t))
	assert.Equal(t, "eng", result.DetectedLanguage)
}

func TestAverageConfidence(t *testing.T) {
	backend := &fakeBackend{regions: []Region{
		{Text: "a", Confidence: 0.4, Box: image.Rect(0, 0, 10, 10)},
		{Text: "b", Confidence: 0.8, Box: image.Rect(0, 20, 10, 30)},
	}}
	engine := newTestEngine(backend, 0.3)

	result := engine.Recognize(context.Background(), testFrame(t))
	assert.InDelta(t, 0.6, result.AverageConfidence(), 1e-9)
	assert.False(t, result.IsEmpty())

	empty := types.RecognitionResult{}
	assert.Zero(t, empty.AverageConfidence())
	assert.True(t, empty.IsEmpty())
}
