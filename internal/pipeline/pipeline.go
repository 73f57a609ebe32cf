package pipeline

import (
	"fmt"

	"github.com/dunamismax/pixeledit/internal/domain"
	"github.com/dunamismax/pixeledit/internal/raster"
)

// Step names, in the order Apply runs them.
const (
	StepBrightness = "brightness"
	StepContrast   = "contrast"
	StepBlur       = "blur"
	StepSharpen    = "sharpen"
	StepGrayscale  = "grayscale"
)

// Params are the operator settings of one Apply call.
type Params = domain.OperatorParameters

// DefaultParams returns the identity edit.
func DefaultParams() Params {
	return domain.DefaultOperatorParameters()
}

type step struct {
	name    string
	enabled func(domain.OperatorParameters) bool
	run     func(raster.PixelBuffer, domain.OperatorParameters) (raster.PixelBuffer, error)
}

// steps is the fixed operator order: tone adjustments come before
// blur, sharpen and grayscale.
var steps = []step{
	{
		name:    StepBrightness,
		enabled: func(domain.OperatorParameters) bool { return true },
		run: func(b raster.PixelBuffer, p domain.OperatorParameters) (raster.PixelBuffer, error) {
			return Brightness(b, p.Brightness)
		},
	},
	{
		name:    StepContrast,
		enabled: func(domain.OperatorParameters) bool { return true },
		run: func(b raster.PixelBuffer, p domain.OperatorParameters) (raster.PixelBuffer, error) {
			return Contrast(b, p.Contrast)
		},
	},
	{
		name:    StepBlur,
		enabled: func(p domain.OperatorParameters) bool { return p.BlurRadius > 0 },
		run: func(b raster.PixelBuffer, p domain.OperatorParameters) (raster.PixelBuffer, error) {
			return Blur(b, p.BlurRadius)
		},
	},
	{
		name:    StepSharpen,
		enabled: func(p domain.OperatorParameters) bool { return p.Sharpen },
		run: func(b raster.PixelBuffer, _ domain.OperatorParameters) (raster.PixelBuffer, error) {
			return Sharpen(b)
		},
	},
	{
		name:    StepGrayscale,
		enabled: func(p domain.OperatorParameters) bool { return p.Grayscale },
		run: func(b raster.PixelBuffer, _ domain.OperatorParameters) (raster.PixelBuffer, error) {
			return Grayscale(b)
		},
	},
}

// Apply runs the enabled operators over buf and returns a new buffer. buf is
// never modified.
func Apply(buf raster.PixelBuffer, params domain.OperatorParameters) (raster.PixelBuffer, error) {
	out, _, err := ApplyTraced(buf, params)
	return out, err
}

// ApplyTraced is Apply that also reports which steps ran.
func ApplyTraced(buf raster.PixelBuffer, params domain.OperatorParameters) (raster.PixelBuffer, []string, error) {
	if err := buf.Validate(); err != nil {
		return raster.PixelBuffer{}, nil, err
	}

	result := buf
	ran := make([]string, 0, len(steps))
	for _, s := range steps {
		if !s.enabled(params) {
			continue
		}
		next, err := s.run(result, params)
		if err != nil {
			return raster.PixelBuffer{}, ran, fmt.Errorf("%s step: %w", s.name, err)
		}
		result = next
		ran = append(ran, s.name)
	}
	return result, ran, nil
}
