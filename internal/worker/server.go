package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dunamismax/pixeledit/internal/config"
	"github.com/dunamismax/pixeledit/internal/domain"
	"github.com/dunamismax/pixeledit/internal/pipeline"
	"github.com/dunamismax/pixeledit/internal/queue"
	"github.com/dunamismax/pixeledit/internal/store"
	"github.com/dunamismax/pixeledit/internal/webhook"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const outputPrefix = "outputs"

// Server publishes converted files to object storage.
type Server struct {
	logger        *log.Logger
	server        *asynq.Server
	uploader      objectUploader
	conversions   conversionMarker
	webhookClient webhookSender
	metrics       *metrics
	tracer        trace.Tracer
	now           func() time.Time
}

type objectUploader interface {
	UploadFile(ctx context.Context, objectKey, path, contentType string) (int64, error)
}

type conversionMarker interface {
	MarkPublished(ctx context.Context, id, objectKey string, at time.Time) (domain.Conversion, error)
}

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

func NewServer(
	logger *log.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	uploader objectUploader,
	webhookClient webhookSender,
	conversions conversionMarker,
) (*Server, error) {
	if uploader == nil {
		return nil, fmt.Errorf("object uploader is required")
	}

	s := &Server{
		logger: logger,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: max(1, workerCfg.Concurrency),
				Queues: map[string]int{
					queueCfg.Name: 1,
				},
				LogLevel: asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.Printf("task failed type=%s retry=%d/%d err=%v", task.Type(), retried, maxRetry, err)
				}),
			},
		),
		uploader:      uploader,
		conversions:   conversions,
		webhookClient: webhookClient,
		metrics:       newMetrics(),
		tracer:        otel.Tracer("pixeledit/worker"),
		now:           time.Now,
	}
	return s, nil
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypePublishConversion, s.handlePublishConversion)
	return s.server.Run(mux)
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handlePublishConversion(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := "failed"

	payload, err := queue.ParsePublishConversionPayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}
	format := formatLabel(payload.Format)

	ctx, span := s.tracer.Start(ctx, "worker.publish_conversion", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("conversion.id", payload.ConversionID),
		attribute.String("conversion.session_id", payload.SessionID),
		attribute.String("conversion.format", format),
	)
	defer span.End()
	defer func() {
		s.metrics.publishDuration.WithLabelValues(format, outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.publishTotal.WithLabelValues(format, outcome).Inc()
	}()

	s.metrics.activeTasks.Inc()
	defer s.metrics.activeTasks.Dec()

	if _, err := os.Stat(payload.Path); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "output file unavailable")
		if errors.Is(err, os.ErrNotExist) {
			outcome = "missing"
			return fmt.Errorf("output file %s is gone: %w", payload.Path, asynq.SkipRetry)
		}
		return fmt.Errorf("stat output file: %w", err)
	}

	objectKey := ObjectKey(payload.SessionID, payload.Path)
	s.logger.Printf("publishing conversion_id=%s session_id=%s object_key=%s", payload.ConversionID, payload.SessionID, objectKey)

	uploaded, err := s.uploader.UploadFile(ctx, objectKey, payload.Path, contentType(payload.Format))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		return fmt.Errorf("upload conversion: %w", err)
	}
	s.metrics.uploadedBytesTotal.Add(float64(uploaded))

	publishedAt := s.now().UTC()
	s.markPublished(ctx, payload.ConversionID, objectKey, publishedAt)

	if err := s.dispatchWebhook(ctx, payload, map[string]any{
		"conversion_id": payload.ConversionID,
		"session_id":    payload.SessionID,
		"status":        domain.ConversionStatusPublished,
		"format":        payload.Format,
		"bytes":         uploaded,
		"width":         payload.Width,
		"height":        payload.Height,
		"object_key":    objectKey,
		"requested_at":  payload.RequestedAt,
		"published_at":  publishedAt,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook dispatch failed")
		return err
	}

	outcome = "published"
	span.SetStatus(codes.Ok, "published")
	s.logger.Printf("published conversion_id=%s object_key=%s bytes=%d", payload.ConversionID, objectKey, uploaded)
	return nil
}

// markPublished tolerates missing records: the API may run with a memory
// store this worker cannot see.
func (s *Server) markPublished(ctx context.Context, conversionID, objectKey string, at time.Time) {
	if s.conversions == nil {
		return
	}
	if _, err := s.conversions.MarkPublished(ctx, conversionID, objectKey, at); err != nil {
		if errors.Is(err, store.ErrConversionNotFound) {
			s.logger.Printf("conversion record missing conversion_id=%s", conversionID)
			return
		}
		s.logger.Printf("conversion status update failed conversion_id=%s err=%v", conversionID, err)
	}
}

func (s *Server) dispatchWebhook(ctx context.Context, payload queue.PublishConversionPayload, body map[string]any) error {
	if payload.WebhookURL == "" || s.webhookClient == nil {
		return nil
	}

	if err := s.webhookClient.Send(ctx, payload.WebhookURL, webhook.EventConversionPublished, body); err != nil {
		s.logger.Printf("webhook delivery failed conversion_id=%s err=%v", payload.ConversionID, err)
		return fmt.Errorf("dispatch webhook: %w", err)
	}
	return nil
}

// ObjectKey places a converted file under outputs/<session>/<file>.
func ObjectKey(sessionID, path string) string {
	session := sanitizePathToken(sessionID)
	if session == "" {
		session = "unknown"
	}
	return strings.Join([]string{outputPrefix, session, sanitizePathToken(filepath.Base(path))}, "/")
}

func sanitizePathToken(value string) string {
	value = strings.TrimSpace(value)
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), ".")
}

func contentType(format string) string {
	parsed, err := pipeline.ParseFormat(format)
	if err != nil {
		return "application/octet-stream"
	}
	return parsed.ContentType()
}

func formatLabel(format string) string {
	parsed, err := pipeline.ParseFormat(format)
	if err != nil {
		return "unknown"
	}
	return string(parsed)
}
