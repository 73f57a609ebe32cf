package pipeline

import (
	"errors"
	"reflect"
	"testing"

	"github.com/dunamismax/pixeledit/internal/domain"
	"github.com/dunamismax/pixeledit/internal/raster"
)

func TestApplyBrightensRedBuffer(t *testing.T) {
	src := solidBuffer(t, 2, 2, [3]uint8{230, 0, 0})
	params := domain.OperatorParameters{Brightness: 1.2, Contrast: 1.0}

	out, err := Apply(src, params)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out.Width != 2 || out.Height != 2 || out.Channels != raster.RGB {
		t.Fatalf("unexpected geometry %dx%dx%d", out.Width, out.Height, out.Channels)
	}
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			if px := out.At(x, y); px[0] != 255 || px[1] != 0 || px[2] != 0 {
				t.Fatalf("pixel (%d,%d): expected clamped red, got %v", x, y, px)
			}
		}
	}

	dim := solidBuffer(t, 2, 2, [3]uint8{100, 0, 0})
	out, err = Apply(dim, params)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out.At(0, 0)[0] != 120 {
		t.Fatalf("expected red 120, got %d", out.At(0, 0)[0])
	}
}

func TestApplyZeroBlurMatchesNoBlur(t *testing.T) {
	src := gradientBuffer(t, 8, 6)

	withZero, ran, err := ApplyTraced(src, domain.OperatorParameters{Brightness: 1.3, Contrast: 0.8, BlurRadius: 0, Sharpen: true})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	for _, name := range ran {
		if name == StepBlur {
			t.Fatal("expected blur step to be skipped at radius 0")
		}
	}

	bright, _ := Brightness(src, 1.3)
	contrasted, _ := Contrast(bright, 0.8)
	manual, _ := Sharpen(contrasted)
	if !withZero.Equal(manual) {
		t.Fatal("expected pipeline output to equal the manual composition without blur")
	}
}

func TestApplyRunsStepsInFixedOrder(t *testing.T) {
	src := gradientBuffer(t, 4, 4)
	_, ran, err := ApplyTraced(src, domain.OperatorParameters{
		Brightness: 1.1,
		Contrast:   1.1,
		BlurRadius: 1.5,
		Sharpen:    true,
		Grayscale:  true,
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := []string{StepBrightness, StepContrast, StepBlur, StepSharpen, StepGrayscale}
	if !reflect.DeepEqual(ran, want) {
		t.Fatalf("expected steps %v, got %v", want, ran)
	}
}

func TestApplyGrayscaleKeepsThreeChannels(t *testing.T) {
	out, err := Apply(gradientBuffer(t, 3, 3), domain.OperatorParameters{Brightness: 1, Contrast: 1, Grayscale: true})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out.Channels != raster.RGB || len(out.Pix) != 27 {
		t.Fatalf("expected normalized 3-channel output, got %d channels", out.Channels)
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	src := gradientBuffer(t, 5, 5)
	before := src.Clone()

	if _, err := Apply(src, domain.OperatorParameters{Brightness: 1.8, Contrast: 1.5, BlurRadius: 2, Sharpen: true, Grayscale: true}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !src.Equal(before) {
		t.Fatal("expected apply to leave its input untouched")
	}
}

func TestApplyPropagatesOperatorErrors(t *testing.T) {
	_, err := Apply(gradientBuffer(t, 2, 2), domain.OperatorParameters{Brightness: 0, Contrast: 1})
	if !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}

	bad := raster.PixelBuffer{Width: 2, Height: 2, Channels: raster.RGB}
	if _, err := Apply(bad, domain.DefaultOperatorParameters()); !errors.Is(err, raster.ErrInvalidDimensions) {
		t.Fatalf("expected ErrInvalidDimensions, got %v", err)
	}
}

func TestDefaultParamsAreIdentity(t *testing.T) {
	src := gradientBuffer(t, 6, 6)
	out, ran, err := ApplyTraced(src, DefaultParams())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !out.Equal(src) {
		t.Fatal("expected default parameters to leave the buffer unchanged")
	}
	if !reflect.DeepEqual(ran, []string{StepBrightness, StepContrast}) {
		t.Fatalf("expected only tone steps to run, got %v", ran)
	}
}
