package pipeline

import (
	"errors"
	"math"
	"testing"

	"github.com/dunamismax/pixeledit/internal/domain"
	"github.com/dunamismax/pixeledit/internal/raster"
)

func TestIdentityFactors(t *testing.T) {
	src := gradientBuffer(t, 7, 5)

	bright, err := Brightness(src, 1.0)
	if err != nil {
		t.Fatalf("brightness: %v", err)
	}
	if !bright.Equal(src) {
		t.Fatal("expected brightness(b, 1.0) to equal b")
	}

	contrast, err := Contrast(src, 1.0)
	if err != nil {
		t.Fatalf("contrast: %v", err)
	}
	if !contrast.Equal(src) {
		t.Fatal("expected contrast(b, 1.0) to equal b")
	}
}

func TestBrightnessClamps(t *testing.T) {
	src := solidBuffer(t, 2, 2, [3]uint8{200, 10, 0})

	out, err := Brightness(src, 2.0)
	if err != nil {
		t.Fatalf("brightness: %v", err)
	}
	if got := out.At(1, 1); got[0] != 255 || got[1] != 20 || got[2] != 0 {
		t.Fatalf("unexpected pixel %v", got)
	}
	if src.At(1, 1)[0] != 200 {
		t.Fatal("expected input buffer to stay untouched")
	}
}

func TestContrastUsesChannelMean(t *testing.T) {
	src := mustBuffer(t, 2, 1, raster.RGB, []uint8{100, 0, 50, 200, 0, 50})

	out, err := Contrast(src, 2.0)
	if err != nil {
		t.Fatalf("contrast: %v", err)
	}
	want := []uint8{50, 0, 50, 250, 0, 50}
	for i := range want {
		if out.Pix[i] != want[i] {
			t.Fatalf("sample %d: expected %d, got %d", i, want[i], out.Pix[i])
		}
	}
}

func TestOperatorsRejectNonPositiveFactors(t *testing.T) {
	src := gradientBuffer(t, 3, 3)
	if _, err := Brightness(src, 0); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if _, err := Contrast(src, -1); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestOperatorsRejectInvalidBuffers(t *testing.T) {
	bad := raster.PixelBuffer{Width: 3, Height: 3, Channels: raster.RGB, Pix: make([]uint8, 5)}

	ops := map[string]func() error{
		"brightness": func() error { _, err := Brightness(bad, 1); return err },
		"contrast":   func() error { _, err := Contrast(bad, 1); return err },
		"blur":       func() error { _, err := Blur(bad, 2); return err },
		"sharpen":    func() error { _, err := Sharpen(bad); return err },
		"grayscale":  func() error { _, err := Grayscale(bad); return err },
		"stroke": func() error {
			_, err := DrawStroke(bad, domain.BrushStroke{X: 1, Y: 1, Radius: 1})
			return err
		},
	}
	for name, op := range ops {
		if err := op(); !errors.Is(err, raster.ErrInvalidDimensions) {
			t.Fatalf("%s: expected ErrInvalidDimensions, got %v", name, err)
		}
	}
}

func TestBlurSmoothsAndPreservesFlatRegions(t *testing.T) {
	flat := solidBuffer(t, 6, 6, [3]uint8{90, 120, 30})
	out, err := Blur(flat, 2.5)
	if err != nil {
		t.Fatalf("blur: %v", err)
	}
	if !out.Equal(flat) {
		t.Fatal("expected blur of a flat buffer to be unchanged")
	}

	spike := solidBuffer(t, 5, 5, [3]uint8{0, 0, 0})
	spike.Pix[spike.Offset(2, 2)] = 255
	blurred, err := Blur(spike, 1)
	if err != nil {
		t.Fatalf("blur: %v", err)
	}
	center := blurred.At(2, 2)[0]
	neighbour := blurred.At(1, 2)[0]
	if center >= 255 || center == 0 {
		t.Fatalf("expected spike to spread, center=%d", center)
	}
	if neighbour == 0 || neighbour > center {
		t.Fatalf("expected neighbour between 0 and center, got %d (center %d)", neighbour, center)
	}
}

func TestBlurZeroRadiusIsCopy(t *testing.T) {
	src := gradientBuffer(t, 4, 4)
	out, err := Blur(src, 0)
	if err != nil {
		t.Fatalf("blur: %v", err)
	}
	if !out.Equal(src) {
		t.Fatal("expected zero-radius blur to return an equal buffer")
	}
	out.Pix[0]++
	if out.Pix[0] == src.Pix[0] {
		t.Fatal("expected zero-radius blur to return a copy")
	}
}

func TestSharpenIncreasesLocalContrast(t *testing.T) {
	flat := solidBuffer(t, 4, 4, [3]uint8{80, 80, 80})
	out, err := Sharpen(flat)
	if err != nil {
		t.Fatalf("sharpen: %v", err)
	}
	if !out.Equal(flat) {
		t.Fatal("expected sharpen of a flat buffer to be unchanged")
	}

	edge := solidBuffer(t, 4, 1, [3]uint8{100, 100, 100})
	copy(edge.At(2, 0), []uint8{150, 150, 150})
	copy(edge.At(3, 0), []uint8{150, 150, 150})
	sharp, err := Sharpen(edge)
	if err != nil {
		t.Fatalf("sharpen: %v", err)
	}
	if sharp.At(1, 0)[0] >= 100 {
		t.Fatalf("expected dark side of the edge to darken, got %d", sharp.At(1, 0)[0])
	}
	if sharp.At(2, 0)[0] <= 150 {
		t.Fatalf("expected bright side of the edge to brighten, got %d", sharp.At(2, 0)[0])
	}
}

func TestGrayscaleHasEqualChannels(t *testing.T) {
	out, err := Grayscale(gradientBuffer(t, 6, 4))
	if err != nil {
		t.Fatalf("grayscale: %v", err)
	}
	if out.Channels != raster.RGB {
		t.Fatalf("expected 3 channels, got %d", out.Channels)
	}
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			px := out.At(x, y)
			if px[0] != px[1] || px[1] != px[2] {
				t.Fatalf("pixel (%d,%d) channels differ: %v", x, y, px)
			}
		}
	}

	red, err := Grayscale(solidBuffer(t, 1, 1, [3]uint8{255, 0, 0}))
	if err != nil {
		t.Fatalf("grayscale: %v", err)
	}
	if red.Pix[0] != 76 {
		t.Fatalf("expected luma 76 for pure red, got %d", red.Pix[0])
	}
}

func TestLuminanceProducesSingleChannel(t *testing.T) {
	out, err := Luminance(gradientBuffer(t, 3, 2))
	if err != nil {
		t.Fatalf("luminance: %v", err)
	}
	if out.Channels != raster.Gray || len(out.Pix) != 6 {
		t.Fatalf("expected 1-channel 3x2 buffer, got %d channels %d samples", out.Channels, len(out.Pix))
	}
}

func TestDrawStroke(t *testing.T) {
	src := solidBuffer(t, 5, 5, [3]uint8{0, 0, 0})
	color := [3]uint8{10, 20, 30}

	out, err := DrawStroke(src, domain.BrushStroke{X: 2, Y: 2, Radius: 1, Color: color})
	if err != nil {
		t.Fatalf("draw stroke: %v", err)
	}
	painted := 0
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			if out.At(x, y)[0] == 10 {
				painted++
			}
		}
	}
	if painted != 5 {
		t.Fatalf("expected a 5 pixel disc, got %d", painted)
	}
	if px := out.At(1, 1); px[0] != 0 {
		t.Fatalf("expected diagonal pixel outside radius 1 to stay unpainted, got %v", px)
	}
	if src.At(2, 2)[0] != 0 {
		t.Fatal("expected input buffer to stay untouched")
	}

	corner, err := DrawStroke(src, domain.BrushStroke{X: -1, Y: 0, Radius: 1, Color: color})
	if err != nil {
		t.Fatalf("draw stroke: %v", err)
	}
	if px := corner.At(0, 0); px[0] != 10 || px[1] != 20 || px[2] != 30 {
		t.Fatalf("expected clipped disc to paint (0,0), got %v", px)
	}

	outside, err := DrawStroke(src, domain.BrushStroke{X: 40, Y: 40, Radius: 3, Color: color})
	if err != nil {
		t.Fatalf("draw stroke: %v", err)
	}
	if !outside.Equal(src) {
		t.Fatal("expected stroke outside the buffer to be a no-op")
	}
}

func TestDrawStrokeHugeRadiusCoversBuffer(t *testing.T) {
	src := solidBuffer(t, 3, 3, [3]uint8{0, 0, 0})
	color := [3]uint8{200, 100, 50}

	for _, stroke := range []domain.BrushStroke{
		{X: 1, Y: 1, Radius: math.MaxInt32, Color: color},
		{X: 1, Y: 1, Radius: math.MaxInt, Color: color},
		{X: math.MinInt / 2, Y: 0, Radius: math.MaxInt, Color: color},
	} {
		out, err := DrawStroke(src, stroke)
		if err != nil {
			t.Fatalf("draw stroke radius %d: %v", stroke.Radius, err)
		}
		for y := 0; y < 3; y++ {
			for x := 0; x < 3; x++ {
				if px := out.At(x, y); px[0] != 200 || px[1] != 100 || px[2] != 50 {
					t.Fatalf("radius %d center (%d,%d): expected (%d,%d) painted, got %v", stroke.Radius, stroke.X, stroke.Y, x, y, px)
				}
			}
		}
	}

	far, err := DrawStroke(src, domain.BrushStroke{X: math.MaxInt, Y: math.MaxInt, Radius: math.MaxInt32, Color: color})
	if err != nil {
		t.Fatalf("draw stroke: %v", err)
	}
	if !far.Equal(src) {
		t.Fatal("expected a distant stroke to leave the buffer unchanged")
	}
}

func TestBlurAndSharpenKeepGrayChannelCount(t *testing.T) {
	gray, err := raster.New(4, 4, raster.Gray)
	if err != nil {
		t.Fatalf("new buffer: %v", err)
	}
	for i := range gray.Pix {
		gray.Pix[i] = 120
	}

	blurred, err := Blur(gray, 1.5)
	if err != nil {
		t.Fatalf("blur: %v", err)
	}
	sharpened, err := Sharpen(gray)
	if err != nil {
		t.Fatalf("sharpen: %v", err)
	}
	for name, out := range map[string]raster.PixelBuffer{"blur": blurred, "sharpen": sharpened} {
		if out.Channels != raster.Gray {
			t.Fatalf("%s: expected 1 channel, got %d", name, out.Channels)
		}
		if !out.Equal(gray) {
			t.Fatalf("%s: expected a flat gray buffer to be unchanged", name)
		}
	}
}

func gradientBuffer(t testing.TB, w, h int) raster.PixelBuffer {
	t.Helper()

	buf, err := raster.New(w, h, raster.RGB)
	if err != nil {
		t.Fatalf("new buffer: %v", err)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			copy(buf.At(x, y), []uint8{
				uint8((x * 255) / w),
				uint8((y * 255) / h),
				140,
			})
		}
	}
	return buf
}

func solidBuffer(t testing.TB, w, h int, c [3]uint8) raster.PixelBuffer {
	t.Helper()

	buf, err := raster.New(w, h, raster.RGB)
	if err != nil {
		t.Fatalf("new buffer: %v", err)
	}
	for i := 0; i < len(buf.Pix); i += 3 {
		copy(buf.Pix[i:], c[:])
	}
	return buf
}

func mustBuffer(t testing.TB, w, h, channels int, pix []uint8) raster.PixelBuffer {
	t.Helper()

	buf := raster.PixelBuffer{Width: w, Height: h, Channels: channels, Pix: pix}
	if err := buf.Validate(); err != nil {
		t.Fatalf("validate buffer: %v", err)
	}
	return buf
}
