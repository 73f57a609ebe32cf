package queue

import (
	"testing"
	"time"

	"github.com/dunamismax/pixeledit/internal/domain"
	"github.com/hibiken/asynq"
)

func TestPublishConversionTask(t *testing.T) {
	conversion := domain.Conversion{
		ID:        "conv-1",
		SessionID: "session-1",
		Format:    "jpeg",
		Path:      "/tmp/flagged/output/converted_image_20261019_101500.jpeg",
		Bytes:     512,
		Width:     10,
		Height:    10,
	}

	task, err := NewPublishConversionTask(PayloadFromConversion(conversion, "https://example.test/hook", time.Now()))
	if err != nil {
		t.Fatalf("NewPublishConversionTask returned error: %v", err)
	}
	if task.Type() != TypePublishConversion {
		t.Fatalf("expected task type %q, got %q", TypePublishConversion, task.Type())
	}

	parsed, err := ParsePublishConversionPayload(task)
	if err != nil {
		t.Fatalf("ParsePublishConversionPayload returned error: %v", err)
	}
	if parsed.ConversionID != "conv-1" || parsed.Path != conversion.Path {
		t.Fatalf("unexpected payload %+v", parsed)
	}
	if parsed.WebhookURL != "https://example.test/hook" {
		t.Fatalf("expected webhook url to be carried, got %q", parsed.WebhookURL)
	}
}

func TestParsePublishConversionPayloadRejectsIncomplete(t *testing.T) {
	task := asynq.NewTask(TypePublishConversion, []byte(`{"session_id":"s"}`))
	if _, err := ParsePublishConversionPayload(task); err == nil {
		t.Fatal("expected error for payload without conversion id")
	}
}
