package recognition

import (
	"context"
	"fmt"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// TesseractBackend recognizes text with a local Tesseract engine via
// gosseract. A single client is reused across calls; Tesseract is not
// safe for concurrent use, so calls are serialized, which matches the
// pipeline's one-in-flight guarantee anyway.
type TesseractBackend struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewTesseractBackend creates a Tesseract-backed recognizer.
// languages bias recognition (Tesseract traineddata tags, e.g. "eng");
// quality selects the page segmentation trade-off ("fast" or "accurate").
func NewTesseractBackend(languages []string, quality string) (*TesseractBackend, error) {
	client := gosseract.NewClient()

	if len(languages) > 0 {
		if err := client.SetLanguage(languages...); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set recognition languages: %w", err)
		}
	}

	mode := gosseract.PSM_AUTO
	if quality == "fast" {
		mode = gosseract.PSM_SPARSE_TEXT
	}
	if err := client.SetPageSegMode(mode); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}

	return &TesseractBackend{client: client}, nil
}

// Recognize extracts per-line text regions from the encoded image.
// Tesseract reports confidence in [0,100]; this scales to [0,1].
func (b *TesseractBackend) Recognize(ctx context.Context, imageData []byte) ([]Region, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := b.client.SetImageFromBytes(imageData); err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}

	boxes, err := b.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text regions: %w", err)
	}

	regions := make([]Region, 0, len(boxes))
	for _, box := range boxes {
		regions = append(regions, Region{
			Text:       box.Word,
			Confidence: box.Confidence / 100,
			Box:        box.Box,
		})
	}

	return regions, nil
}

// Close releases the Tesseract client.
func (b *TesseractBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.client.Close()
}
