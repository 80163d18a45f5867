package capture

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/kbinani/screenshot"

	"github.com/glancelabs/glance/backend/internal/types"
)

// Source provides the two platform-specific inputs a capture tick needs:
// the application that currently owns the screen and the screen pixels.
type Source interface {
	// CurrentApp returns the frontmost application.
	CurrentApp() (types.AppInfo, error)

	// CaptureFrame returns an encoded snapshot of the screen.
	CaptureFrame() ([]byte, error)
}

// AppProber resolves the frontmost application. Implementations are
// platform-specific; a nil prober attributes everything to the display.
type AppProber func() (types.AppInfo, error)

// DisplaySource captures a physical display and resolves the foreground
// application through an optional prober.
type DisplaySource struct {
	display int
	prober  AppProber
}

// NewDisplaySource creates a source for the given display index. prober
// may be nil.
func NewDisplaySource(display int, prober AppProber) (*DisplaySource, error) {
	if n := screenshot.NumActiveDisplays(); display < 0 || display >= n {
		return nil, fmt.Errorf("display %d out of range (have %d)", display, n)
	}
	return &DisplaySource{display: display, prober: prober}, nil
}

// CurrentApp returns the frontmost application, or a stable per-display
// identity when no prober is configured.
func (s *DisplaySource) CurrentApp() (types.AppInfo, error) {
	if s.prober != nil {
		return s.prober()
	}
	return types.AppInfo{
		BundleID: fmt.Sprintf("display.%d", s.display),
		Name:     fmt.Sprintf("Display %d", s.display),
	}, nil
}

// CaptureFrame grabs the display and returns it PNG-encoded.
func (s *DisplaySource) CaptureFrame() ([]byte, error) {
	img, err := screenshot.CaptureRect(screenshot.GetDisplayBounds(s.display))
	if err != nil {
		return nil, fmt.Errorf("failed to capture display %d: %w", s.display, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
