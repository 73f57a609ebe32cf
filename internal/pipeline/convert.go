package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dunamismax/pixeledit/internal/raster"
	"golang.org/x/image/bmp"
)

const (
	DefaultOutputDir   = "flagged/output"
	DefaultJPEGQuality = 90

	filenamePrefix  = "converted_image_"
	timestampLayout = "20060102_150405"
	maxNameAttempts = 1000
)

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrConversionFailed  = errors.New("conversion failed")
)

type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatBMP  Format = "bmp"
	FormatGIF  Format = "gif"
)

// SupportedFormats lists conversion targets in display order.
var SupportedFormats = []Format{FormatJPEG, FormatPNG, FormatBMP, FormatGIF}

// ParseFormat accepts a format name in any case. "jpg" is an alias of jpeg.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "jpg":
		return FormatJPEG, nil
	case FormatJPEG, FormatPNG, FormatBMP, FormatGIF:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q (supported: jpeg, png, bmp, gif)", ErrUnsupportedFormat, name)
	}
}

func (f Format) Extension() string {
	return string(f)
}

func (f Format) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatBMP:
		return "image/bmp"
	case FormatGIF:
		return "image/gif"
	default:
		return "image/png"
	}
}

type ConversionResult struct {
	Path   string
	Format Format
	Bytes  int64
	Width  int
	Height int
}

// Converter encodes buffers into OutputDir. File names are derived from the
// local time with second resolution; a numeric suffix is added when a name
// is already taken, so existing outputs are never overwritten.
type Converter struct {
	OutputDir string
	Quality   int
	Now       func() time.Time
}

func NewConverter(outputDir string, quality int) *Converter {
	return &Converter{OutputDir: outputDir, Quality: quality, Now: time.Now}
}

func (c *Converter) Convert(ctx context.Context, buf raster.PixelBuffer, target string) (ConversionResult, error) {
	format, err := ParseFormat(target)
	if err != nil {
		return ConversionResult{}, err
	}
	if err := buf.Validate(); err != nil {
		return ConversionResult{}, err
	}

	select {
	case <-ctx.Done():
		return ConversionResult{}, ctx.Err()
	default:
	}

	dir, err := filepath.Abs(c.outputDir())
	if err != nil {
		return ConversionResult{}, fmt.Errorf("%w: resolve output dir: %v", ErrConversionFailed, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ConversionResult{}, fmt.Errorf("%w: create output dir: %v", ErrConversionFailed, err)
	}

	f, err := c.createOutputFile(dir, format)
	if err != nil {
		return ConversionResult{}, err
	}

	written, err := c.writeEncoded(f, buf, format)
	if err != nil {
		return ConversionResult{}, err
	}

	return ConversionResult{
		Path:   f.Name(),
		Format: format,
		Bytes:  written,
		Width:  buf.Width,
		Height: buf.Height,
	}, nil
}

// writeEncoded owns f and closes it on every path. A partially written file
// is removed.
func (c *Converter) writeEncoded(f *os.File, buf raster.PixelBuffer, format Format) (n int64, err error) {
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("%w: close %s: %v", ErrConversionFailed, f.Name(), closeErr)
		}
		if err != nil {
			_ = os.Remove(f.Name())
		}
	}()

	counter := &countingWriter{w: f}
	if err := encode(counter, buf.Image(), format, c.quality()); err != nil {
		return 0, fmt.Errorf("%w: encode %s: %w", ErrConversionFailed, format, err)
	}
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("%w: flush %s: %v", ErrConversionFailed, f.Name(), err)
	}
	return counter.n, nil
}

func (c *Converter) createOutputFile(dir string, format Format) (*os.File, error) {
	stamp := c.now().Format(timestampLayout)
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := OutputFilename(stamp, attempt, format)
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: create output file: %v", ErrConversionFailed, err)
		}
	}
	return nil, fmt.Errorf("%w: no free file name for timestamp %s", ErrConversionFailed, stamp)
}

// OutputFilename builds converted_image_<stamp>[_<n>].<ext>.
func OutputFilename(stamp string, attempt int, format Format) string {
	if attempt == 0 {
		return fmt.Sprintf("%s%s.%s", filenamePrefix, stamp, format.Extension())
	}
	return fmt.Sprintf("%s%s_%d.%s", filenamePrefix, stamp, attempt, format.Extension())
}

func (c *Converter) outputDir() string {
	if strings.TrimSpace(c.OutputDir) == "" {
		return DefaultOutputDir
	}
	return c.OutputDir
}

func (c *Converter) quality() int {
	if c.Quality <= 0 || c.Quality > 100 {
		return DefaultJPEGQuality
	}
	return c.Quality
}

func (c *Converter) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func encode(w io.Writer, img image.Image, format Format, quality int) error {
	switch format {
	case FormatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case FormatPNG:
		encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
		return encoder.Encode(w, img)
	case FormatBMP:
		return bmp.Encode(w, img)
	case FormatGIF:
		return gif.Encode(w, img, &gif.Options{
			NumColors: len(palette.Plan9),
			Drawer:    draw.FloydSteinberg,
		})
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
