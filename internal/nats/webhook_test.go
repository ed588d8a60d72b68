package nats

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental/internal/service"
)

var testNatsServer *server.Server

func TestMain(m *testing.M) {
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	testNatsServer = natsserver.RunServer(&opts)

	code := m.Run()
	testNatsServer.Shutdown()
	os.Exit(code)
}

func setupNatsConn(t *testing.T) *nats.Conn {
	t.Helper()

	nc, err := nats.Connect(testNatsServer.ClientURL())
	require.NoError(t, err, "Failed to connect to NATS server")
	t.Cleanup(nc.Close)
	return nc
}

func TestWebhookPublisher_Notify(t *testing.T) {
	nc := setupNatsConn(t)

	msgCh := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(WebhookSubject("platform-1"), msgCh)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	publisher := NewWebhookPublisher(nc)
	err = publisher.Notify(context.Background(), "platform-1", service.Webhook{
		Type: service.WebhookRideEnd,
		Data: map[string]any{"rideId": "ride-1", "price": 1500},
	})
	require.NoError(t, err)

	select {
	case msg := <-msgCh:
		assert.Equal(t, "webhook.platform-1", msg.Subject)

		var event WebhookEvent
		require.NoError(t, json.Unmarshal(msg.Data, &event))
		assert.Equal(t, "rideEnd", event.Type)
		assert.Equal(t, "platform-1", event.PlatformID)
		assert.False(t, event.CreatedAt.IsZero())

		data, ok := event.Data.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "ride-1", data["rideId"])
		assert.Equal(t, 1500.0, data["price"])
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not delivered")
	}
}

func TestWebhookPublisher_OnlyTargetPlatform(t *testing.T) {
	nc := setupNatsConn(t)

	otherCh := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(WebhookSubject("platform-2"), otherCh)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	publisher := NewWebhookPublisher(nc)
	require.NoError(t, publisher.Notify(context.Background(), "platform-1", service.Webhook{Type: service.WebhookPayment}))

	select {
	case msg := <-otherCh:
		t.Fatalf("unexpected webhook on %s", msg.Subject)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWebhookPublisher_Errors(t *testing.T) {
	nc := setupNatsConn(t)
	publisher := NewWebhookPublisher(nc)

	err := publisher.Notify(context.Background(), "", service.Webhook{Type: service.WebhookRefund})
	assert.Error(t, err)

	nc.Close()
	err = publisher.Notify(context.Background(), "platform-1", service.Webhook{Type: service.WebhookRefund})
	assert.ErrorIs(t, err, nats.ErrConnectionClosed)
}
