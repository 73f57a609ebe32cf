package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/dunamismax/pixeledit/internal/editor"
	"github.com/dunamismax/pixeledit/internal/pipeline"
	"github.com/dunamismax/pixeledit/internal/raster"
	"github.com/dunamismax/pixeledit/internal/store"
	"go.opentelemetry.io/otel/trace"
)

const defaultMaxUploadBytes = 32 << 20

type Options struct {
	Logger          *log.Logger
	Sessions        store.SessionStore
	Conversions     store.ConversionStore
	Converter       *pipeline.Converter
	Resizer         pipeline.Resizer
	Publisher       editor.Publisher
	HistoryCapacity int
	CanvasEnabled   bool
	MaxUploadBytes  int64
	MaxPixels       int
	RateLimiter     RateLimiter
	RateLimitHeader string
	Tracer          trace.Tracer
	Now             func() time.Time
}

type Server struct {
	logger                *log.Logger
	sessions              store.SessionStore
	conversions           store.ConversionStore
	converter             *pipeline.Converter
	resizer               pipeline.Resizer
	publisher             editor.Publisher
	historyCapacity       int
	canvasEnabled         bool
	maxUploadBytes        int64
	maxPixels             int
	rateLimiter           RateLimiter
	rateLimitUserIDHeader string
	tracer                trace.Tracer
	metrics               *metrics
	now                   func() time.Time
	mux                   *http.ServeMux
}

func NewServer(opts Options) (*Server, error) {
	if opts.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if opts.Converter == nil {
		return nil, errors.New("converter is required")
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = raster.DefaultMaxPixels
	}
	if opts.Resizer == nil {
		resizer, err := pipeline.NewResizerWithLimit(opts.MaxPixels)
		if err != nil {
			return nil, fmt.Errorf("build resizer: %w", err)
		}
		opts.Resizer = resizer
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.RateLimitHeader == "" {
		opts.RateLimitHeader = "X-User-ID"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		logger:                opts.Logger,
		sessions:              opts.Sessions,
		conversions:           opts.Conversions,
		converter:             opts.Converter,
		resizer:               opts.Resizer,
		publisher:             opts.Publisher,
		historyCapacity:       opts.HistoryCapacity,
		canvasEnabled:         opts.CanvasEnabled,
		maxUploadBytes:        opts.MaxUploadBytes,
		maxPixels:             opts.MaxPixels,
		rateLimiter:           opts.RateLimiter,
		rateLimitUserIDHeader: opts.RateLimitHeader,
		tracer:                opts.Tracer,
		metrics:               newMetrics(),
		now:                   opts.Now,
		mux:                   http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.metrics.withHTTPMetrics(s.withTracing(s.withRateLimit(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("GET /v1/output", s.handleOutput)

	s.mux.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	s.mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleDeleteSession)
	s.mux.HandleFunc("PUT /v1/sessions/{id}/image", s.handleLoadImage)
	s.mux.HandleFunc("GET /v1/sessions/{id}/image", s.handleGetImage)
	s.mux.HandleFunc("POST /v1/sessions/{id}/apply", s.handleApply)
	s.mux.HandleFunc("POST /v1/sessions/{id}/stroke", s.handleStroke)
	s.mux.HandleFunc("POST /v1/sessions/{id}/undo", s.handleUndo)
	s.mux.HandleFunc("POST /v1/sessions/{id}/convert", s.handleConvert)
	s.mux.HandleFunc("POST /v1/sessions/{id}/resize", s.handleResize)
	s.mux.HandleFunc("GET /v1/sessions/{id}/conversions", s.handleListConversions)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleOutput reports where converted files land. Opening the folder is
// left to the client's environment.
func (s *Server) handleOutput(w http.ResponseWriter, _ *http.Request) {
	dir := s.converter.OutputDir
	if dir == "" {
		dir = pipeline.DefaultOutputDir
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		s.logger.Printf("resolve output dir failed dir=%s err=%v", dir, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to resolve output folder"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"output_dir": abs,
		"formats":    pipeline.SupportedFormats,
	})
}

// SweepIdle drops sessions without activity for ttl and returns how many
// were removed.
func (s *Server) SweepIdle(ttl time.Duration) int {
	removed := s.sessions.Sweep(s.now().Add(-ttl))
	if removed > 0 {
		s.logger.Printf("sessions swept removed=%d remaining=%d", removed, s.sessions.Len())
	}
	s.metrics.activeSessions.Set(float64(s.sessions.Len()))
	return removed
}

// RunSweeper calls SweepIdle every interval until ctx is done.
func (s *Server) RunSweeper(ctx context.Context, ttl, interval time.Duration) {
	if ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = ttl / 4
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepIdle(ttl)
		}
	}
}

func decodeJSON(r *http.Request, into any) error {
	const maxBodyBytes = 1 << 20
	limited := io.LimitReader(r.Body, maxBodyBytes)
	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON body: multiple JSON values are not allowed")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusForKind maps an editor error kind onto an HTTP status.
func statusForKind(kind editor.ErrorKind) int {
	switch kind {
	case editor.KindInvalidDimensions, editor.KindInvalidParameter, editor.KindUnsupportedFormat:
		return http.StatusBadRequest
	case editor.KindEmptyHistory:
		return http.StatusConflict
	case editor.KindCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
