package pipeline

import (
	"errors"
	"fmt"
	"math"

	"github.com/disintegration/imaging"
	"github.com/dunamismax/pixeledit/internal/domain"
	"github.com/dunamismax/pixeledit/internal/raster"
)

var ErrInvalidParameter = errors.New("invalid parameter")

// sharpenKernel is the fixed 3x3 sharpening kernel. imaging normalizes it
// by its sum of 16.
var sharpenKernel = [9]float64{
	-2, -2, -2,
	-2, 32, -2,
	-2, -2, -2,
}

// Brightness scales every sample by factor. A factor of 1.0 is the identity.
func Brightness(buf raster.PixelBuffer, factor float64) (raster.PixelBuffer, error) {
	if err := buf.Validate(); err != nil {
		return raster.PixelBuffer{}, err
	}
	if err := checkFactor("brightness", factor); err != nil {
		return raster.PixelBuffer{}, err
	}

	out := buf.Clone()
	if factor == 1 {
		return out, nil
	}
	for i, v := range buf.Pix {
		out.Pix[i] = clampToUint8(float64(v) * factor)
	}
	return out, nil
}

// Contrast scales each channel's deviation from that channel's mean.
func Contrast(buf raster.PixelBuffer, factor float64) (raster.PixelBuffer, error) {
	if err := buf.Validate(); err != nil {
		return raster.PixelBuffer{}, err
	}
	if err := checkFactor("contrast", factor); err != nil {
		return raster.PixelBuffer{}, err
	}

	out := buf.Clone()
	if factor == 1 {
		return out, nil
	}

	means := channelMeans(buf)
	for i, v := range buf.Pix {
		mean := means[i%buf.Channels]
		out.Pix[i] = clampToUint8(mean + (float64(v)-mean)*factor)
	}
	return out, nil
}

// Blur applies a gaussian with sigma equal to radius. Near the edges the
// kernel is renormalized over the samples that fall inside the buffer.
func Blur(buf raster.PixelBuffer, radius float64) (raster.PixelBuffer, error) {
	if err := buf.Validate(); err != nil {
		return raster.PixelBuffer{}, err
	}
	if math.IsNaN(radius) || math.IsInf(radius, 0) {
		return raster.PixelBuffer{}, fmt.Errorf("%w: blur radius %v", ErrInvalidParameter, radius)
	}
	if radius <= 0 {
		return buf.Clone(), nil
	}

	blurred := imaging.Blur(buf.Image(), radius)
	return matchChannels(raster.FromImage(blurred), buf.Channels)
}

// Sharpen convolves the buffer with sharpenKernel. Samples outside the
// buffer are clamped to the nearest edge.
func Sharpen(buf raster.PixelBuffer) (raster.PixelBuffer, error) {
	if err := buf.Validate(); err != nil {
		return raster.PixelBuffer{}, err
	}

	sharpened := imaging.Convolve3x3(buf.Image(), sharpenKernel, &imaging.ConvolveOptions{Normalize: true})
	return matchChannels(raster.FromImage(sharpened), buf.Channels)
}

// Grayscale computes per-pixel luma and expands it back to three equal
// channels so later consumers always receive an RGB buffer.
func Grayscale(buf raster.PixelBuffer) (raster.PixelBuffer, error) {
	luma, err := Luminance(buf)
	if err != nil {
		return raster.PixelBuffer{}, err
	}
	return ExpandChannels(luma)
}

// Luminance returns a single-channel buffer using ITU-R 601-2 luma weights.
func Luminance(buf raster.PixelBuffer) (raster.PixelBuffer, error) {
	if err := buf.Validate(); err != nil {
		return raster.PixelBuffer{}, err
	}
	if buf.Channels == raster.Gray {
		return buf.Clone(), nil
	}

	out := raster.PixelBuffer{Width: buf.Width, Height: buf.Height, Channels: raster.Gray, Pix: make([]uint8, buf.Width*buf.Height)}
	for i, j := 0, 0; j < len(out.Pix); i, j = i+3, j+1 {
		out.Pix[j] = luma(buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2])
	}
	return out, nil
}

// ExpandChannels turns a single-channel buffer into three identical channels.
func ExpandChannels(buf raster.PixelBuffer) (raster.PixelBuffer, error) {
	if err := buf.Validate(); err != nil {
		return raster.PixelBuffer{}, err
	}
	if buf.Channels == raster.RGB {
		return buf.Clone(), nil
	}

	out := raster.PixelBuffer{Width: buf.Width, Height: buf.Height, Channels: raster.RGB, Pix: make([]uint8, len(buf.Pix)*3)}
	for i, v := range buf.Pix {
		out.Pix[i*3+0] = v
		out.Pix[i*3+1] = v
		out.Pix[i*3+2] = v
	}
	return out, nil
}

// DrawStroke fills the inclusive disc of stroke.Radius around (X, Y). Only
// pixels inside the buffer are touched, so a disc that misses the buffer
// entirely yields an unchanged copy.
func DrawStroke(buf raster.PixelBuffer, stroke domain.BrushStroke) (raster.PixelBuffer, error) {
	if err := buf.Validate(); err != nil {
		return raster.PixelBuffer{}, err
	}
	if stroke.Radius <= 0 {
		return raster.PixelBuffer{}, fmt.Errorf("%w: brush radius must be positive", ErrInvalidParameter)
	}

	out := buf.Clone()
	// Bounds and distances are computed in float64 so very large radii or
	// centers cannot overflow.
	r := float64(stroke.Radius)
	cx, cy := float64(stroke.X), float64(stroke.Y)
	x0, x1 := max(0, cx-r), min(float64(buf.Width-1), cx+r)
	y0, y1 := max(0, cy-r), min(float64(buf.Height-1), cy+r)
	if x0 > x1 || y0 > y1 {
		return out, nil
	}

	fill := stroke.Color[:]
	if buf.Channels == raster.Gray {
		fill = []uint8{luma(stroke.Color[0], stroke.Color[1], stroke.Color[2])}
	}

	for y := int(y0); y <= int(y1); y++ {
		dy := float64(y) - cy
		for x := int(x0); x <= int(x1); x++ {
			dx := float64(x) - cx
			if dx*dx+dy*dy > r*r {
				continue
			}
			copy(out.Pix[out.Offset(x, y):], fill)
		}
	}
	return out, nil
}

func channelMeans(buf raster.PixelBuffer) []float64 {
	sums := make([]float64, buf.Channels)
	for i, v := range buf.Pix {
		sums[i%buf.Channels] += float64(v)
	}
	n := float64(buf.Width * buf.Height)
	for ch := range sums {
		sums[ch] /= n
	}
	return sums
}

func luma(r, g, b uint8) uint8 {
	return uint8((299*int(r) + 587*int(g) + 114*int(b) + 500) / 1000)
}

func checkFactor(name string, factor float64) error {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return fmt.Errorf("%w: %s factor must be positive, got %v", ErrInvalidParameter, name, factor)
	}
	return nil
}

func clampToUint8(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
