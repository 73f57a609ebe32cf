// Package raster holds the decoded in-memory image representation shared by
// the operators, the history stack and the conversion services.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var ErrInvalidDimensions = errors.New("invalid dimensions")

const (
	Gray = 1
	RGB  = 3
)

// DefaultMaxPixels bounds decoded and resampled images (about 200 MiB of
// RGB samples).
const DefaultMaxPixels = 64 << 20

// PixelBuffer is a row-major, top-to-bottom sample array of Width*Height
// pixels with Channels interleaved 8-bit samples each.
type PixelBuffer struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8
}

func New(width, height, channels int) (PixelBuffer, error) {
	if width <= 0 || height <= 0 {
		return PixelBuffer{}, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if channels != Gray && channels != RGB {
		return PixelBuffer{}, fmt.Errorf("%w: unsupported channel count %d", ErrInvalidDimensions, channels)
	}
	return PixelBuffer{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]uint8, width*height*channels),
	}, nil
}

// Validate reports ErrInvalidDimensions when the sample slice does not
// match the declared geometry.
func (b PixelBuffer) Validate() error {
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, b.Width, b.Height)
	}
	if b.Channels != Gray && b.Channels != RGB {
		return fmt.Errorf("%w: unsupported channel count %d", ErrInvalidDimensions, b.Channels)
	}
	if want := b.Width * b.Height * b.Channels; len(b.Pix) != want {
		return fmt.Errorf("%w: have %d samples, want %d", ErrInvalidDimensions, len(b.Pix), want)
	}
	return nil
}

func (b PixelBuffer) Clone() PixelBuffer {
	out := b
	out.Pix = make([]uint8, len(b.Pix))
	copy(out.Pix, b.Pix)
	return out
}

func (b PixelBuffer) Equal(o PixelBuffer) bool {
	if b.Width != o.Width || b.Height != o.Height || b.Channels != o.Channels || len(b.Pix) != len(o.Pix) {
		return false
	}
	for i := range b.Pix {
		if b.Pix[i] != o.Pix[i] {
			return false
		}
	}
	return true
}

func (b PixelBuffer) Offset(x, y int) int {
	return (y*b.Width + x) * b.Channels
}

// At returns the samples of pixel (x, y). The slice aliases the buffer.
func (b PixelBuffer) At(x, y int) []uint8 {
	i := b.Offset(x, y)
	return b.Pix[i : i+b.Channels]
}

func (b PixelBuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.Width, b.Height)
}

// Image returns a standard library view of the buffer: *image.Gray for a
// single channel, opaque *image.NRGBA otherwise.
func (b PixelBuffer) Image() image.Image {
	if b.Channels == Gray {
		img := image.NewGray(b.Bounds())
		copy(img.Pix, b.Pix)
		return img
	}

	img := image.NewNRGBA(b.Bounds())
	for i, j := 0, 0; i < len(b.Pix); i, j = i+3, j+4 {
		img.Pix[j+0] = b.Pix[i+0]
		img.Pix[j+1] = b.Pix[i+1]
		img.Pix[j+2] = b.Pix[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

// FromImage converts any image into a 3-channel buffer. Alpha is dropped.
func FromImage(src image.Image) PixelBuffer {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := PixelBuffer{Width: w, Height: h, Channels: RGB, Pix: make([]uint8, w*h*RGB)}

	if n, ok := src.(*image.NRGBA); ok {
		idx := 0
		for y := 0; y < h; y++ {
			row := n.Pix[y*n.Stride : y*n.Stride+w*4]
			for x := 0; x < w; x++ {
				out.Pix[idx+0] = row[x*4+0]
				out.Pix[idx+1] = row[x*4+1]
				out.Pix[idx+2] = row[x*4+2]
				idx += 3
			}
		}
		return out
	}

	idx := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			out.Pix[idx+0] = c.R
			out.Pix[idx+1] = c.G
			out.Pix[idx+2] = c.B
			idx += 3
		}
	}
	return out
}

// CheckPixels reports ErrInvalidDimensions when width x height is not
// positive or exceeds maxPixels. A non-positive maxPixels selects
// DefaultMaxPixels.
func CheckPixels(width, height, maxPixels int) error {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if width > maxPixels/height {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrInvalidDimensions, width, height, maxPixels)
	}
	return nil
}

// Decode reads any registered image format (jpeg, png, gif, bmp, webp)
// within DefaultMaxPixels.
func Decode(r io.Reader) (PixelBuffer, string, error) {
	return DecodeLimited(r, DefaultMaxPixels)
}

// DecodeLimited checks the header dimensions against maxPixels before
// decoding the pixel data.
func DecodeLimited(r io.Reader, maxPixels int) (PixelBuffer, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return PixelBuffer{}, "", fmt.Errorf("read image: %w", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return PixelBuffer{}, "", fmt.Errorf("decode image header: %w", err)
	}
	if err := CheckPixels(cfg.Width, cfg.Height, maxPixels); err != nil {
		return PixelBuffer{}, "", err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return PixelBuffer{}, "", fmt.Errorf("decode image: %w", err)
	}
	buf := FromImage(img)
	if err := buf.Validate(); err != nil {
		return PixelBuffer{}, "", err
	}
	return buf, format, nil
}
