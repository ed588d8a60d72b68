package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"rental/internal/service"
)

// SubjectWebhookPrefix is followed by the platform id.
const SubjectWebhookPrefix = "webhook."

// WebhookEvent is the envelope published for every platform webhook.
type WebhookEvent struct {
	Type       string    `json:"type"`
	PlatformID string    `json:"platformId"`
	Data       any       `json:"data"`
	CreatedAt  time.Time `json:"createdAt"`
}

// WebhookPublisher dispatches platform webhooks over NATS.
type WebhookPublisher struct {
	nc *nats.Conn
}

// NewWebhookPublisher creates a new WebhookPublisher.
func NewWebhookPublisher(nc *nats.Conn) *WebhookPublisher {
	return &WebhookPublisher{nc: nc}
}

var _ service.Notifier = (*WebhookPublisher)(nil)

// WebhookSubject returns the subject a platform's webhooks are published on.
func WebhookSubject(platformID string) string {
	return SubjectWebhookPrefix + platformID
}

// Notify publishes webhook for platformID and waits for the server to
// acknowledge the flush.
func (p *WebhookPublisher) Notify(ctx context.Context, platformID string, webhook service.Webhook) error {
	if platformID == "" {
		return errors.New("webhook without platform id")
	}

	data, err := json.Marshal(WebhookEvent{
		Type:       string(webhook.Type),
		PlatformID: platformID,
		Data:       webhook.Data,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook: %w", err)
	}

	if err := p.nc.Publish(WebhookSubject(platformID), data); err != nil {
		return fmt.Errorf("failed to publish webhook: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
	}

	return p.nc.FlushWithContext(ctx)
}
