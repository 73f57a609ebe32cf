package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dunamismax/pixeledit/internal/domain"
	"github.com/hibiken/asynq"
)

const TypePublishConversion = "conversion:publish"

type PublishConversionPayload struct {
	ConversionID string    `json:"conversion_id"`
	SessionID    string    `json:"session_id"`
	Path         string    `json:"path"`
	Format       string    `json:"format"`
	Bytes        int64     `json:"bytes"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	WebhookURL   string    `json:"webhook_url,omitempty"`
	RequestedAt  time.Time `json:"requested_at"`
}

func PayloadFromConversion(c domain.Conversion, webhookURL string, now time.Time) PublishConversionPayload {
	return PublishConversionPayload{
		ConversionID: c.ID,
		SessionID:    c.SessionID,
		Path:         c.Path,
		Format:       c.Format,
		Bytes:        c.Bytes,
		Width:        c.Width,
		Height:       c.Height,
		WebhookURL:   webhookURL,
		RequestedAt:  now.UTC(),
	}
}

func NewPublishConversionTask(payload PublishConversionPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal publish payload: %w", err)
	}
	return asynq.NewTask(TypePublishConversion, body), nil
}

func ParsePublishConversionPayload(task *asynq.Task) (PublishConversionPayload, error) {
	var payload PublishConversionPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return PublishConversionPayload{}, fmt.Errorf("unmarshal publish payload: %w", err)
	}
	if payload.ConversionID == "" || payload.Path == "" {
		return PublishConversionPayload{}, fmt.Errorf("publish payload requires conversion_id and path")
	}
	return payload, nil
}
