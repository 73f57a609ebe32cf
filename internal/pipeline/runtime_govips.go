//go:build govips && cgo

package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/dunamismax/pixeledit/internal/raster"
)

var (
	startupOnce sync.Once
	shutdownMu  sync.Mutex
	started     bool
)

func Startup() error {
	startupOnce.Do(func() {
		vips.LoggingSettings(nil, vips.LogLevelWarning)
		vips.Startup(&vips.Config{
			MaxCacheFiles: 0,
			MaxCacheMem:   64 * 1024 * 1024,
			MaxCacheSize:  50,
		})

		shutdownMu.Lock()
		started = true
		shutdownMu.Unlock()
	})
	return nil
}

func Shutdown() {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if !started {
		return
	}
	vips.Shutdown()
	started = false
}

func newResizer(maxPixels int) (Resizer, error) {
	if err := Startup(); err != nil {
		return nil, err
	}
	return govipsResizer{maxPixels: maxPixels}, nil
}

type govipsResizer struct {
	maxPixels int
}

func (r govipsResizer) Resize(ctx context.Context, buf raster.PixelBuffer, width, height int) (raster.PixelBuffer, error) {
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

	var encoded bytes.Buffer
	if err := png.Encode(&encoded, buf.Image()); err != nil {
		return raster.PixelBuffer{}, fmt.Errorf("stage buffer for vips: %w", err)
	}

	img, err := vips.NewImageFromBuffer(encoded.Bytes())
	if err != nil {
		return raster.PixelBuffer{}, fmt.Errorf("load vips image: %w", err)
	}
	defer img.Close()

	hScale := float64(width) / float64(buf.Width)
	vScale := float64(height) / float64(buf.Height)
	if err := img.ResizeWithVScale(hScale, vScale, vips.KernelLanczos3); err != nil {
		return raster.PixelBuffer{}, fmt.Errorf("resize image: %w", err)
	}
	if img.Width() != width || img.Height() != height {
		return raster.PixelBuffer{}, fmt.Errorf("vips produced %dx%d, want %dx%d", img.Width(), img.Height(), width, height)
	}

	data, _, err := img.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return raster.PixelBuffer{}, fmt.Errorf("export resized image: %w", err)
	}
	resized, _, err := raster.Decode(bytes.NewReader(data))
	if err != nil {
		return raster.PixelBuffer{}, err
	}
	return matchChannels(resized, buf.Channels)
}
