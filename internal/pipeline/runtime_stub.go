//go:build !govips || !cgo

package pipeline

import (
	"context"

	"github.com/disintegration/imaging"
	"github.com/dunamismax/pixeledit/internal/raster"
)

func Startup() error {
	return nil
}

func Shutdown() {}

func newResizer(maxPixels int) (Resizer, error) {
	return imagingResizer{maxPixels: maxPixels}, nil
}

type imagingResizer struct {
	maxPixels int
}

func (r imagingResizer) Resize(ctx context.Context, buf raster.PixelBuffer, width, height int) (raster.PixelBuffer, error) {
	select {
	case <-ctx.Done():
		return raster.PixelBuffer{}, ctx.Err()
	default:
	}

	if err := validateResize(buf, width, height, r.maxPixels); err != nil {
		return raster.PixelBuffer{}, err
	}
	if width == buf.Width && height == buf.Height {
		return buf.Clone(), nil
	}

	resized := imaging.Resize(buf.Image(), width, height, imaging.Lanczos)
	return matchChannels(raster.FromImage(resized), buf.Channels)
}
