package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Editing control bounds for adjustable parameters.
const (
	MinFactor     = 0.1
	MaxFactor     = 2.0
	MaxBlurRadius = 10.0
)

// MaxKernelBlurRadius caps the blur radius any caller may request; it
// bounds the gaussian kernel at 601 taps.
const MaxKernelBlurRadius = 100.0

type OperatorParameters struct {
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
	BlurRadius float64 `json:"blur_radius"`
	Sharpen    bool    `json:"sharpen"`
	Grayscale  bool    `json:"grayscale"`
}

// DefaultOperatorParameters returns the identity edit.
func DefaultOperatorParameters() OperatorParameters {
	return OperatorParameters{Brightness: 1, Contrast: 1}
}

// Validate accepts any finite positive factor and a blur radius within
// [0, MaxKernelBlurRadius].
func (p OperatorParameters) Validate() error {
	if err := checkPositive("brightness", p.Brightness); err != nil {
		return err
	}
	if err := checkPositive("contrast", p.Contrast); err != nil {
		return err
	}
	if err := checkRange("blur_radius", p.BlurRadius, 0, MaxKernelBlurRadius); err != nil {
		return err
	}
	return nil
}

// ValidateControls enforces the narrower ranges exposed by the editing
// controls.
func (p OperatorParameters) ValidateControls() error {
	if err := checkRange("brightness", p.Brightness, MinFactor, MaxFactor); err != nil {
		return err
	}
	if err := checkRange("contrast", p.Contrast, MinFactor, MaxFactor); err != nil {
		return err
	}
	if err := checkRange("blur_radius", p.BlurRadius, 0, MaxBlurRadius); err != nil {
		return err
	}
	return nil
}

type BrushStroke struct {
	X      int      `json:"x"`
	Y      int      `json:"y"`
	Radius int      `json:"radius"`
	Color  [3]uint8 `json:"color"`
}

func (s BrushStroke) Validate() error {
	if s.Radius <= 0 {
		return errors.New("radius must be positive")
	}
	return nil
}

type ResizeRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r ResizeRequest) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("width and height must be positive, got %dx%d", r.Width, r.Height)
	}
	return nil
}

type ConversionRequest struct {
	Format string `json:"format"`
}

func (r ConversionRequest) Validate() error {
	if strings.TrimSpace(r.Format) == "" {
		return errors.New("format is required")
	}
	return nil
}

func checkPositive(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("%s must be a finite positive factor, got %g", name, v)
	}
	return nil
}

func checkRange(name string, v, lo, hi float64) error {
	if math.IsNaN(v) || v < lo || v > hi {
		return fmt.Errorf("%s must be within [%g, %g], got %g", name, lo, hi, v)
	}
	return nil
}
