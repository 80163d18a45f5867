package types

import "time"

// AppInfo identifies the application that owned the screen when a frame
// was captured.
type AppInfo struct {
	// BundleID is the stable process/bundle identifier (e.g. "com.editor.app").
	BundleID string `json:"bundle_id"`
	// Name is the human-readable application name.
	Name string `json:"name"`
	// IconRef is an opaque reference to the app icon, resolved by the
	// presentation layer.
	IconRef string `json:"icon_ref,omitempty"`
}

// CapturedFrame is one screen snapshot handed to the recognition engine.
// Frames are ephemeral: the image data is released after one recognition
// call and never persisted.
type CapturedFrame struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Source    AppInfo   `json:"source"`
	ImageData []byte    `json:"-"`
}

// TextObservation is a single recognized text region.
type TextObservation struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // [0,1], already threshold-filtered
	Box        Rect    `json:"box"`
}

// Rect is a normalized rectangle with a bottom-left origin.
// All components are in [0,1] relative to the frame dimensions.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RecognitionResult is the immutable output of one recognition call.
// Observations are in reading order: top of screen first, ties broken
// left to right.
type RecognitionResult struct {
	FullText           string            `json:"full_text"`
	Observations       []TextObservation `json:"observations"`
	DetectedLanguage   string            `json:"detected_language,omitempty"` // ISO 639-3 tag, empty when undetermined
	ProcessingDuration time.Duration     `json:"processing_duration"`
}

// IsEmpty reports whether recognition produced no text.
func (r RecognitionResult) IsEmpty() bool {
	return r.FullText == ""
}

// AverageConfidence returns the mean confidence across observations,
// 0 when there are none.
func (r RecognitionResult) AverageConfidence() float64 {
	if len(r.Observations) == 0 {
		return 0
	}
	var sum float64
	for _, o := range r.Observations {
		sum += o.Confidence
	}
	return sum / float64(len(r.Observations))
}
