package api

import (
	"bytes"
	"errors"
	"image/png"
	"net/http"

	"github.com/dunamismax/pixeledit/internal/domain"
	"github.com/dunamismax/pixeledit/internal/editor"
	"github.com/dunamismax/pixeledit/internal/id"
	"github.com/dunamismax/pixeledit/internal/raster"
	"github.com/dunamismax/pixeledit/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sessionID := id.New()
	session, err := editor.NewSession(sessionID, editor.Options{
		HistoryCapacity: s.historyCapacity,
		Capabilities:    editor.Capabilities{Canvas: s.canvasEnabled},
		Converter:       s.converter,
		Resizer:         s.resizer,
		Recorder:        s.conversions,
		Publisher:       s.publisher,
		Logger:          s.logger,
		Now:             s.now,
	})
	if err != nil {
		s.logger.Printf("create session failed session_id=%s err=%v", sessionID, err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	ws := store.NewWorkspace(session, s.now().UTC())
	if err := s.sessions.Create(ws); err != nil {
		s.logger.Printf("store session failed session_id=%s err=%v", sessionID, err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	s.metrics.activeSessions.Set(float64(s.sessions.Len()))
	s.logger.Printf("session created session_id=%s canvas=%t", sessionID, s.canvasEnabled)

	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": sessionID,
		"canvas":     s.canvasEnabled,
		"image_url":  "/v1/sessions/" + sessionID + "/image",
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if !s.sessions.Delete(sessionID) {
		writeError(w, http.StatusNotFound, store.ErrSessionNotFound.Error())
		return
	}
	s.metrics.activeSessions.Set(float64(s.sessions.Len()))
	s.logger.Printf("session deleted session_id=%s", sessionID)
	w.WriteHeader(http.StatusNoContent)
}

// handleLoadImage replaces the displayed buffer with the decoded body. The
// session's history starts over.
func (s *Server) handleLoadImage(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	body := http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	buf, format, err := raster.DecodeLimited(body, s.maxPixels)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "image exceeds upload limit")
			return
		}
		if errors.Is(err, raster.ErrInvalidDimensions) {
			s.metrics.editActions.WithLabelValues("load", string(editor.KindInvalidDimensions)).Inc()
			writeError(w, http.StatusRequestEntityTooLarge, "image exceeds pixel limit")
			return
		}
		writeError(w, http.StatusBadRequest, "unsupported or corrupt image")
		return
	}

	ws.Lock()
	defer ws.Unlock()
	ws.Current = buf
	ws.Loaded = true
	ws.Editor.Reset()
	ws.Touch(s.now())

	s.metrics.editActions.WithLabelValues("load", "ok").Inc()
	s.logger.Printf("image loaded session_id=%s format=%s size=%dx%d", ws.ID, format, buf.Width, buf.Height)
	writeJSON(w, http.StatusOK, map[string]any{
		"width":  buf.Width,
		"height": buf.Height,
		"format": format,
	})
}

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	ws.Lock()
	if !ws.Loaded {
		ws.Unlock()
		writeError(w, http.StatusConflict, "no image loaded")
		return
	}
	img := ws.Current.Clone().Image()
	ws.Touch(s.now())
	ws.Unlock()

	var encoded bytes.Buffer
	if err := png.Encode(&encoded, img); err != nil {
		s.logger.Printf("encode preview failed session_id=%s err=%v", ws.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to encode image")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(encoded.Bytes())
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	params := domain.DefaultOperatorParameters()
	if err := decodeJSON(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := params.ValidateControls(); err != nil {
		s.invalidParameter(w, r, "apply", err)
		return
	}

	ws.Lock()
	defer ws.Unlock()
	if !requireImage(w, ws) {
		return
	}

	out, err := ws.Editor.Apply(r.Context(), ws.Current, params)
	if err != nil {
		s.actionFailed(w, r, ws.ID, "apply", err)
		return
	}
	ws.Current = out
	ws.Touch(s.now())

	s.metrics.editActions.WithLabelValues("apply", "ok").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"width":   out.Width,
		"height":  out.Height,
		"history": ws.Editor.HistoryLen(),
	})
}

func (s *Server) handleStroke(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var stroke domain.BrushStroke
	if err := decodeJSON(r, &stroke); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := stroke.Validate(); err != nil {
		s.invalidParameter(w, r, "stroke", err)
		return
	}

	ws.Lock()
	defer ws.Unlock()
	if !requireImage(w, ws) {
		return
	}

	out, drawn, err := ws.Editor.DrawStroke(r.Context(), ws.Current, stroke)
	if err != nil {
		s.actionFailed(w, r, ws.ID, "stroke", err)
		return
	}
	if !drawn {
		s.metrics.editActions.WithLabelValues("stroke", "unsupported").Inc()
		writeJSON(w, http.StatusNotImplemented, map[string]any{
			"drawn":              false,
			"canvas_unsupported": true,
			"history":            ws.Editor.HistoryLen(),
		})
		return
	}
	ws.Current = out
	ws.Touch(s.now())

	s.metrics.editActions.WithLabelValues("stroke", "ok").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"drawn":   true,
		"history": ws.Editor.HistoryLen(),
	})
}

// handleUndo restores the previous buffer. An empty history is reported,
// not treated as an error.
func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	ws.Lock()
	defer ws.Unlock()

	restored, undone := ws.Editor.Undo()
	if undone {
		ws.Current = restored
	}
	ws.Touch(s.now())

	outcome := "ok"
	if !undone {
		outcome = "empty"
	}
	s.metrics.editActions.WithLabelValues("undo", outcome).Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"undone":  undone,
		"history": ws.Editor.HistoryLen(),
	})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req domain.ConversionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ws.Lock()
	defer ws.Unlock()
	if !requireImage(w, ws) {
		return
	}

	result := ws.Editor.Convert(r.Context(), ws.Current, req.Format)
	ws.Touch(s.now())
	if !result.OK() {
		s.metrics.conversions.WithLabelValues(req.Format, string(result.Kind)).Inc()
		traceKind(r, result.Kind)
		writeJSON(w, statusForKind(result.Kind), map[string]any{
			"status":  "error",
			"kind":    result.Kind,
			"message": result.Message,
		})
		return
	}

	s.metrics.conversions.WithLabelValues(string(result.Value.Format), "ok").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"message": result.Message,
		"path":    result.Value.Path,
		"format":  result.Value.Format,
		"bytes":   result.Value.Bytes,
	})
}

// handleResize replaces the displayed buffer with the resampled one. Resizing
// is not recorded in the history.
func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req domain.ResizeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ws.Lock()
	defer ws.Unlock()
	if !requireImage(w, ws) {
		return
	}

	result := ws.Editor.Resize(r.Context(), ws.Current, req.Width, req.Height)
	ws.Touch(s.now())
	if !result.OK() {
		s.metrics.editActions.WithLabelValues("resize", string(result.Kind)).Inc()
		traceKind(r, result.Kind)
		writeJSON(w, statusForKind(result.Kind), map[string]any{
			"status":  "error",
			"kind":    result.Kind,
			"message": result.Message,
		})
		return
	}
	ws.Current = result.Value

	s.metrics.editActions.WithLabelValues("resize", "ok").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"message": result.Message,
		"width":   result.Value.Width,
		"height":  result.Value.Height,
	})
}

func (s *Server) handleListConversions(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	if s.conversions == nil {
		writeJSON(w, http.StatusOK, map[string]any{"conversions": []domain.Conversion{}})
		return
	}

	conversions, err := s.conversions.ListBySession(r.Context(), ws.ID)
	if err != nil {
		s.logger.Printf("list conversions failed session_id=%s err=%v", ws.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to list conversions")
		return
	}
	if conversions == nil {
		conversions = []domain.Conversion{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversions": conversions})
}

func (s *Server) workspace(w http.ResponseWriter, r *http.Request) (*store.Workspace, bool) {
	sessionID := r.PathValue("id")
	ws, ok := s.sessions.Get(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, store.ErrSessionNotFound.Error())
		return nil, false
	}
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("pixeledit.session_id", sessionID))
	return ws, true
}

// requireImage is called with the workspace locked.
func requireImage(w http.ResponseWriter, ws *store.Workspace) bool {
	if ws.Loaded {
		return true
	}
	writeError(w, http.StatusConflict, "no image loaded")
	return false
}

func (s *Server) actionFailed(w http.ResponseWriter, r *http.Request, sessionID, action string, err error) {
	kind := editor.KindOf(err)
	s.metrics.editActions.WithLabelValues(action, string(kind)).Inc()
	traceKind(r, kind)
	if kind == editor.KindInternal {
		s.logger.Printf("%s failed session_id=%s err=%v", action, sessionID, err)
	}
	writeJSON(w, statusForKind(kind), map[string]any{
		"error": err.Error(),
		"kind":  kind,
	})
}

// invalidParameter rejects input outside the editing controls before the
// workspace is locked.
func (s *Server) invalidParameter(w http.ResponseWriter, r *http.Request, action string, err error) {
	s.metrics.editActions.WithLabelValues(action, string(editor.KindInvalidParameter)).Inc()
	traceKind(r, editor.KindInvalidParameter)
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error": err.Error(),
		"kind":  editor.KindInvalidParameter,
	})
}

func traceKind(r *http.Request, kind editor.ErrorKind) {
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("pixeledit.error_kind", string(kind)))
}
