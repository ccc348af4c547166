package coverart

import (
	"bytes"
	"fmt"
	"image"

	_ "image/jpeg"
	_ "image/png"
)

const (
	// maxImageBytes rejects pathological downloads.
	maxImageBytes = 15 << 20
	// minEdgePixels is the smallest acceptable cover dimension.
	minEdgePixels = 1000
	// Covers must be square within this tolerance.
	minAspect = 0.95
	maxAspect = 1.05
)

// Validate checks that data is a plausibly square, high-resolution cover
// image in a supported format.
func Validate(data []byte) error {
	if len(data) > maxImageBytes {
		return fmt.Errorf("image too large: %d bytes", len(data))
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width < minEdgePixels || cfg.Height < minEdgePixels {
		return fmt.Errorf("image too small: %dx%d %s", cfg.Width, cfg.Height, format)
	}
	aspect := float64(cfg.Width) / float64(cfg.Height)
	if aspect < minAspect || aspect > maxAspect {
		return fmt.Errorf("image not square: %dx%d", cfg.Width, cfg.Height)
	}
	return nil
}
