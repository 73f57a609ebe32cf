package worker

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dunamismax/pixeledit/internal/domain"
	"github.com/dunamismax/pixeledit/internal/queue"
	"github.com/dunamismax/pixeledit/internal/store"
	"github.com/dunamismax/pixeledit/internal/webhook"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
)

func TestPublishConversionUploadsAndMarksRecord(t *testing.T) {
	path := writeOutput(t, "converted_image_20260301_120000.png")
	conversions := store.NewMemoryConversionStore()
	if err := conversions.Create(context.Background(), domain.Conversion{
		ID:        "conv-1",
		SessionID: "session-1",
		Status:    domain.ConversionStatusSaved,
		Format:    "png",
		Path:      path,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed conversion: %v", err)
	}

	uploader := &captureUploader{}
	hooks := &captureWebhook{}
	s := newTestWorker(uploader, hooks, conversions)

	task := publishTask(t, queue.PublishConversionPayload{
		ConversionID: "conv-1",
		SessionID:    "session-1",
		Path:         path,
		Format:       "png",
		WebhookURL:   "https://example.test/hooks",
	})
	if err := s.handlePublishConversion(context.Background(), task); err != nil {
		t.Fatalf("publish: %v", err)
	}

	wantKey := "outputs/session-1/converted_image_20260301_120000.png"
	if uploader.key != wantKey {
		t.Fatalf("expected object key %s, got %s", wantKey, uploader.key)
	}
	if uploader.contentType != "image/png" {
		t.Fatalf("expected image/png, got %s", uploader.contentType)
	}

	record, ok, err := conversions.Get(context.Background(), "conv-1")
	if err != nil || !ok {
		t.Fatalf("get conversion: ok=%t err=%v", ok, err)
	}
	if record.Status != domain.ConversionStatusPublished || record.ObjectKey != wantKey {
		t.Fatalf("expected published record, got %+v", record)
	}

	if hooks.event != webhook.EventConversionPublished || hooks.endpoint != "https://example.test/hooks" {
		t.Fatalf("unexpected webhook delivery event=%s endpoint=%s", hooks.event, hooks.endpoint)
	}
}

func TestPublishConversionToleratesMissingRecord(t *testing.T) {
	path := writeOutput(t, "out.jpeg")
	uploader := &captureUploader{}
	s := newTestWorker(uploader, nil, store.NewMemoryConversionStore())

	task := publishTask(t, queue.PublishConversionPayload{ConversionID: "ghost", SessionID: "s", Path: path, Format: "jpeg"})
	if err := s.handlePublishConversion(context.Background(), task); err != nil {
		t.Fatalf("expected publish to succeed without a record, got %v", err)
	}
	if uploader.contentType != "image/jpeg" {
		t.Fatalf("expected image/jpeg, got %s", uploader.contentType)
	}
}

func TestPublishConversionSkipsRetryForMissingFile(t *testing.T) {
	s := newTestWorker(&captureUploader{}, nil, nil)
	task := publishTask(t, queue.PublishConversionPayload{
		ConversionID: "conv-2",
		Path:         filepath.Join(t.TempDir(), "missing.png"),
		Format:       "png",
	})
	if err := s.handlePublishConversion(context.Background(), task); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestPublishConversionRejectsBadPayload(t *testing.T) {
	s := newTestWorker(&captureUploader{}, nil, nil)
	err := s.handlePublishConversion(context.Background(), asynq.NewTask(queue.TypePublishConversion, []byte(`{"path":""}`)))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestPublishConversionRetriesUploadFailure(t *testing.T) {
	path := writeOutput(t, "out.gif")
	s := newTestWorker(&captureUploader{err: errors.New("connection refused")}, nil, nil)

	task := publishTask(t, queue.PublishConversionPayload{ConversionID: "conv-3", Path: path, Format: "gif"})
	err := s.handlePublishConversion(context.Background(), task)
	if err == nil || errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

func TestObjectKey(t *testing.T) {
	cases := []struct {
		session string
		path    string
		want    string
	}{
		{"abc123", "/tmp/out/converted_image_1.bmp", "outputs/abc123/converted_image_1.bmp"},
		{"../etc", "/tmp/x y.png", "outputs/_etc/x_y.png"},
		{"", "/tmp/a.gif", "outputs/unknown/a.gif"},
	}
	for _, tc := range cases {
		if got := ObjectKey(tc.session, tc.path); got != tc.want {
			t.Fatalf("ObjectKey(%q, %q): expected %s, got %s", tc.session, tc.path, tc.want, got)
		}
	}
}

func newTestWorker(uploader objectUploader, hooks webhookSender, conversions conversionMarker) *Server {
	return &Server{
		logger:        log.New(io.Discard, "", 0),
		uploader:      uploader,
		conversions:   conversions,
		webhookClient: hooks,
		metrics:       newMetrics(),
		tracer:        otel.Tracer("pixeledit/worker-test"),
		now:           time.Now,
	}
}

func publishTask(t *testing.T, payload queue.PublishConversionPayload) *asynq.Task {
	t.Helper()

	task, err := queue.NewPublishConversionTask(payload)
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	return task
}

func writeOutput(t *testing.T, name string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("encoded"), 0o644); err != nil {
		t.Fatalf("write output: %v", err)
	}
	return path
}

type captureUploader struct {
	key         string
	path        string
	contentType string
	err         error
}

func (u *captureUploader) UploadFile(_ context.Context, objectKey, path, contentType string) (int64, error) {
	if u.err != nil {
		return 0, u.err
	}
	u.key = objectKey
	u.path = path
	u.contentType = contentType
	return 7, nil
}

type captureWebhook struct {
	endpoint string
	event    string
	payload  any
}

func (w *captureWebhook) Send(_ context.Context, endpoint, event string, payload any) error {
	w.endpoint = endpoint
	w.event = event
	w.payload = payload
	return nil
}
