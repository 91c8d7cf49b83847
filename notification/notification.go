package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	c "ticketmarket-settlement-backend/context"
	"ticketmarket-settlement-backend/logger"

	"github.com/go-redis/redis"
)

const (
	EventHoldConfirmed    = "hold.confirmed"
	EventWaitlistPromoted = "waitlist.promoted"
	EventPayoutCompleted  = "payout.completed"
	EventOrderCancelled   = "order.cancelled"
	EventResaleSettled    = "resale.settled"
)

// Event is the fire-and-forget message emitted outside the settlement
// transaction. Consumers (email, SMS, webhooks) live elsewhere.
type Event struct {
	Type          string      `json:"type"`
	CorrelationID string      `json:"correlation_id"`
	Payload       interface{} `json:"payload"`
	EmittedAt     time.Time   `json:"emitted_at"`
}

type Dispatcher interface {
	Dispatch(ctx context.Context, eventType string, payload interface{})
}

// RedisDispatcher publishes events to redis channels named
// "<prefix>.<event type>". Delivery failures are logged, never propagated.
type RedisDispatcher struct {
	client *redis.Client
	prefix string
}

func NewRedisDispatcher(client *redis.Client, prefix string) *RedisDispatcher {
	return &RedisDispatcher{client: client, prefix: prefix}
}

func (d *RedisDispatcher) Dispatch(ctx context.Context, eventType string, payload interface{}) {
	e := Event{
		Type:          eventType,
		CorrelationID: c.GetContextValue(ctx, c.ContextKeyCorrelationID),
		Payload:       payload,
		EmittedAt:     time.Now().UTC(),
	}
	buf, err := json.Marshal(e)
	if err != nil {
		logger.Errorf(ctx, "dispatch: error marshalling event %s: %+v", eventType, err)
		return
	}
	if err := d.client.Publish(fmt.Sprintf("%s.%s", d.prefix, eventType), buf).Err(); err != nil {
		logger.Errorf(ctx, "dispatch: error publishing event %s: %+v", eventType, err)
	}
}

// WebhookDispatcher POSTs events to a configured endpoint.
type WebhookDispatcher struct {
	url    string
	client *http.Client
}

func NewWebhookDispatcher(url string) *WebhookDispatcher {
	return &WebhookDispatcher{url: url, client: &http.Client{Timeout: c.DefaultHttpTimeout}}
}

func (d *WebhookDispatcher) Dispatch(ctx context.Context, eventType string, payload interface{}) {
	e := Event{
		Type:          eventType,
		CorrelationID: c.GetContextValue(ctx, c.ContextKeyCorrelationID),
		Payload:       payload,
		EmittedAt:     time.Now().UTC(),
	}
	buf, err := json.Marshal(e)
	if err != nil {
		logger.Errorf(ctx, "dispatch: error marshalling event %s: %+v", eventType, err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, d.url, bytes.NewReader(buf))
	if err != nil {
		logger.Errorf(ctx, "dispatch: error building webhook request: %+v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		logger.Errorf(ctx, "dispatch: error delivering event %s: %+v", eventType, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		logger.Warnf(ctx, "dispatch: webhook for %s answered %d", eventType, resp.StatusCode)
	}
}

// Nop discards every event; used in tests.
type Nop struct{}

func (Nop) Dispatch(ctx context.Context, eventType string, payload interface{}) {}
