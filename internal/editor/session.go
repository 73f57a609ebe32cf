// Package editor is the entry point used by front ends: it owns a session's
// undo history and routes apply, undo, stroke, convert and resize actions to
// the pipeline.
package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/dunamismax/pixeledit/internal/domain"
	"github.com/dunamismax/pixeledit/internal/history"
	"github.com/dunamismax/pixeledit/internal/id"
	"github.com/dunamismax/pixeledit/internal/pipeline"
	"github.com/dunamismax/pixeledit/internal/raster"
)

var ErrInvalidParameters = errors.New("invalid operator parameters")

// Recorder persists conversion records.
type Recorder interface {
	Create(ctx context.Context, conversion domain.Conversion) error
}

// Publisher hands a saved conversion to background delivery.
type Publisher interface {
	PublishConversion(ctx context.Context, conversion domain.Conversion) error
}

type Capabilities struct {
	// Canvas is false when the front end cannot draw brush strokes.
	Canvas bool
}

type Options struct {
	HistoryCapacity int
	Capabilities    Capabilities
	Converter       *pipeline.Converter
	Resizer         pipeline.Resizer
	Recorder        Recorder
	Publisher       Publisher
	Logger          *log.Logger
	Now             func() time.Time
}

// Session serializes the actions of one editing session. Sessions share no
// state; each owns its history stack.
type Session struct {
	id           string
	mu           sync.Mutex
	history      *history.Stack
	capabilities Capabilities
	converter    *pipeline.Converter
	resizer      pipeline.Resizer
	recorder     Recorder
	publisher    Publisher
	logger       *log.Logger
	now          func() time.Time
}

func NewSession(sessionID string, opts Options) (*Session, error) {
	if opts.Converter == nil {
		return nil, fmt.Errorf("converter is required")
	}
	if opts.Resizer == nil {
		resizer, err := pipeline.NewResizer()
		if err != nil {
			return nil, fmt.Errorf("build resizer: %w", err)
		}
		opts.Resizer = resizer
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Session{
		id:           sessionID,
		history:      history.NewStack(opts.HistoryCapacity),
		capabilities: opts.Capabilities,
		converter:    opts.Converter,
		resizer:      opts.Resizer,
		recorder:     opts.Recorder,
		publisher:    opts.Publisher,
		logger:       opts.Logger,
		now:          opts.Now,
	}, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Capabilities() Capabilities {
	return s.capabilities
}

func (s *Session) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Len()
}

// Reset drops all snapshots, e.g. when a new image is loaded.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Clear()
}

// Apply snapshots buf and runs the pipeline over it. A failed edit leaves
// the history as it was.
func (s *Session) Apply(ctx context.Context, buf raster.PixelBuffer, params domain.OperatorParameters) (raster.PixelBuffer, error) {
	if err := buf.Validate(); err != nil {
		return raster.PixelBuffer{}, err
	}
	if err := params.Validate(); err != nil {
		return raster.PixelBuffer{}, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	if err := ctx.Err(); err != nil {
		return raster.PixelBuffer{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.history.Push(buf)
	out, ran, err := pipeline.ApplyTraced(buf, params)
	if err != nil {
		s.history.Pop()
		return raster.PixelBuffer{}, err
	}

	s.logger.Printf("applied session_id=%s steps=%v history=%d", s.id, ran, s.history.Len())
	return out, nil
}

// Undo returns the buffer as it was before the most recent edit, or false
// when there is nothing to undo.
func (s *Session) Undo() (raster.PixelBuffer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf, ok := s.history.Pop()
	if ok {
		s.logger.Printf("undo session_id=%s history=%d", s.id, s.history.Len())
	}
	return buf, ok
}

// DrawStroke paints stroke onto a copy of buf. Without canvas support it
// returns buf unchanged and false.
func (s *Session) DrawStroke(ctx context.Context, buf raster.PixelBuffer, stroke domain.BrushStroke) (raster.PixelBuffer, bool, error) {
	if !s.capabilities.Canvas {
		return buf, false, nil
	}
	if err := buf.Validate(); err != nil {
		return raster.PixelBuffer{}, false, err
	}
	if err := stroke.Validate(); err != nil {
		return raster.PixelBuffer{}, false, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	if err := ctx.Err(); err != nil {
		return raster.PixelBuffer{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.history.Push(buf)
	out, err := pipeline.DrawStroke(buf, stroke)
	if err != nil {
		s.history.Pop()
		return raster.PixelBuffer{}, false, err
	}
	return out, true, nil
}

// Convert writes buf in the target format. The history is not touched.
func (s *Session) Convert(ctx context.Context, buf raster.PixelBuffer, format string) Outcome[pipeline.ConversionResult] {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.converter.Convert(ctx, buf, format)
	if err != nil {
		s.logger.Printf("convert failed session_id=%s format=%q err=%v", s.id, format, err)
		return failed[pipeline.ConversionResult](err)
	}

	s.logger.Printf("converted session_id=%s format=%s path=%s bytes=%d", s.id, result.Format, result.Path, result.Bytes)
	s.handOff(ctx, result)
	return succeeded(result, fmt.Sprintf("Saved image to %s", result.Path))
}

// Resize resamples buf to width x height. The history is not touched.
func (s *Session) Resize(ctx context.Context, buf raster.PixelBuffer, width, height int) Outcome[raster.PixelBuffer] {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.resizer.Resize(ctx, buf, width, height)
	if err != nil {
		s.logger.Printf("resize failed session_id=%s target=%dx%d err=%v", s.id, width, height, err)
		return failed[raster.PixelBuffer](err)
	}
	return succeeded(out, fmt.Sprintf("Resized image to %dx%d", width, height))
}

// handOff records and publishes a saved conversion. Failures are logged
// only; the file is already on disk.
func (s *Session) handOff(ctx context.Context, result pipeline.ConversionResult) {
	if s.recorder == nil && s.publisher == nil {
		return
	}

	conversion := domain.Conversion{
		ID:        id.New(),
		SessionID: s.id,
		Status:    domain.ConversionStatusSaved,
		Format:    string(result.Format),
		Path:      result.Path,
		Bytes:     result.Bytes,
		Width:     result.Width,
		Height:    result.Height,
		CreatedAt: s.now().UTC(),
	}

	if s.recorder != nil {
		if err := s.recorder.Create(ctx, conversion); err != nil {
			s.logger.Printf("conversion record failed session_id=%s conversion_id=%s err=%v", s.id, conversion.ID, err)
			return
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishConversion(ctx, conversion); err != nil {
			s.logger.Printf("conversion publish failed session_id=%s conversion_id=%s err=%v", s.id, conversion.ID, err)
		}
	}
}
