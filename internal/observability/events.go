package observability

import (
	"context"
	"time"
)

// Publisher ships event envelopes to the message broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

// EventEnvelope wraps every delivery event published to the broker.
type EventEnvelope struct {
	EventType  string      `json:"event_type"`
	EventName  string      `json:"event_name"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// Routing keys of the delivery events.
const (
	RouteMessageSent   = "delivery.sent"
	RouteMessageStatus = "delivery.status"
	RouteSeenFlush     = "seen.flush"
	RouteReconnect     = "ws.reconnect"
)

var defaultPublisher Publisher

// SetPublisher installs the process-wide event publisher. A nil publisher
// disables publishing.
func SetPublisher(publisher Publisher) {
	defaultPublisher = publisher
}

// PublishEvent publishes a delivery event if a publisher is installed.
func PublishEvent(ctx context.Context, routingKey, eventName string, payload interface{}, headers map[string]string) error {
	if defaultPublisher == nil {
		return nil
	}

	err := defaultPublisher.Publish(ctx, routingKey, EventEnvelope{
		EventType:  "delivery_events",
		EventName:  eventName,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}, headers)
	if err != nil {
		IncAMQPPublishError()
	}
	return err
}

// BuildHeaders returns broker headers for request and trace correlation.
func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
