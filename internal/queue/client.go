package queue

import (
	"context"
	"time"

	"github.com/dunamismax/pixeledit/internal/domain"
	"github.com/hibiken/asynq"
)

type Client struct {
	client     *asynq.Client
	queue      string
	webhookURL string
	now        func() time.Time
}

func NewClient(redisOpt asynq.RedisClientOpt, queueName, webhookURL string) *Client {
	return &Client{
		client:     asynq.NewClient(redisOpt),
		queue:      queueName,
		webhookURL: webhookURL,
		now:        time.Now,
	}
}

// PublishConversion enqueues delivery of a saved conversion to object storage.
func (c *Client) PublishConversion(ctx context.Context, conversion domain.Conversion) error {
	_, err := c.EnqueuePublish(ctx, PayloadFromConversion(conversion, c.webhookURL, c.now()))
	return err
}

func (c *Client) EnqueuePublish(ctx context.Context, payload PublishConversionPayload) (*asynq.TaskInfo, error) {
	task, err := NewPublishConversionTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(
		ctx,
		task,
		asynq.Queue(c.queue),
		asynq.MaxRetry(5),
		asynq.Timeout(2*time.Minute),
		asynq.TaskID("publish:"+payload.ConversionID),
	)
}

func (c *Client) Close() error {
	return c.client.Close()
}
