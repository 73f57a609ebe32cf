package pipeline

import (
	"context"
	"fmt"

	"github.com/dunamismax/pixeledit/internal/raster"
)

type Resizer interface {
	Resize(ctx context.Context, buf raster.PixelBuffer, width, height int) (raster.PixelBuffer, error)
}

// NewResizer returns the Lanczos resizer selected at build time, limited to
// raster.DefaultMaxPixels output pixels.
func NewResizer() (Resizer, error) {
	return newResizer(raster.DefaultMaxPixels)
}

// NewResizerWithLimit is NewResizer with a custom output pixel limit.
func NewResizerWithLimit(maxPixels int) (Resizer, error) {
	return newResizer(maxPixels)
}

func validateResize(buf raster.PixelBuffer, width, height, maxPixels int) error {
	if err := raster.CheckPixels(width, height, maxPixels); err != nil {
		return fmt.Errorf("resize target: %w", err)
	}
	return buf.Validate()
}

// matchChannels converts a resampled RGB buffer back to the source channel count.
func matchChannels(resized raster.PixelBuffer, channels int) (raster.PixelBuffer, error) {
	if channels == raster.Gray {
		return Luminance(resized)
	}
	return resized, nil
}
