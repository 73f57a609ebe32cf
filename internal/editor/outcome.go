package editor

import (
	"context"
	"errors"

	"github.com/dunamismax/pixeledit/internal/history"
	"github.com/dunamismax/pixeledit/internal/pipeline"
	"github.com/dunamismax/pixeledit/internal/raster"
)

// ErrorKind classifies a failed action for the caller that renders it.
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindInvalidDimensions ErrorKind = "invalid_dimensions"
	KindInvalidParameter  ErrorKind = "invalid_parameter"
	KindUnsupportedFormat ErrorKind = "unsupported_format"
	KindConversionFailed  ErrorKind = "conversion_failed"
	KindEmptyHistory      ErrorKind = "empty_history"
	KindCanceled          ErrorKind = "canceled"
	KindInternal          ErrorKind = "internal"
)

func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, pipeline.ErrUnsupportedFormat):
		return KindUnsupportedFormat
	case errors.Is(err, raster.ErrInvalidDimensions):
		return KindInvalidDimensions
	case errors.Is(err, pipeline.ErrInvalidParameter), errors.Is(err, ErrInvalidParameters):
		return KindInvalidParameter
	case errors.Is(err, pipeline.ErrConversionFailed):
		return KindConversionFailed
	case errors.Is(err, history.ErrEmptyHistory):
		return KindEmptyHistory
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}

// Outcome is the typed result of a convert or resize action: the value on
// success, or the error with its kind. Message is always set.
type Outcome[T any] struct {
	Value   T
	Kind    ErrorKind
	Message string
	Err     error
}

func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

func succeeded[T any](value T, message string) Outcome[T] {
	return Outcome[T]{Value: value, Message: message}
}

func failed[T any](err error) Outcome[T] {
	return Outcome[T]{Kind: KindOf(err), Message: "Error: " + err.Error(), Err: err}
}
