package client

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"rental/internal/service"
)

const (
	messageGatewayAccessKeyHeader = "X-Message-Gateway-Access-Key-Id"
	messageGatewaySecretHeader    = "X-Message-Gateway-Secret-Access-Key"
)

// MessageGatewayConfig holds the message gateway credentials.
type MessageGatewayConfig struct {
	Config
	AccessKeyID     string
	SecretAccessKey string
}

// MessageGatewayClient sends templated messages to riders.
type MessageGatewayClient struct {
	client *Client
}

// NewMessageGatewayClient creates a new MessageGatewayClient.
func NewMessageGatewayClient(cfg MessageGatewayConfig, logger logrus.FieldLogger) *MessageGatewayClient {
	c := New("message-gateway", cfg.Config, logger)
	c.SetHeader(messageGatewayAccessKeyHeader, cfg.AccessKeyID)
	c.SetHeader(messageGatewaySecretHeader, cfg.SecretAccessKey)
	return &MessageGatewayClient{client: c}
}

var _ service.MessageSender = (*MessageGatewayClient)(nil)

type sendMessageRequest struct {
	Phone  string            `json:"phone"`
	Name   string            `json:"name"`
	Fields map[string]string `json:"fields"`
}

// Send delivers the named template to phone.
func (c *MessageGatewayClient) Send(ctx context.Context, phone, template string, fields map[string]string) error {
	req := sendMessageRequest{Phone: phone, Name: template, Fields: fields}
	return c.client.SendJSON(ctx, http.MethodPost, "/send", req, nil)
}
