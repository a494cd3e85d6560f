// Package events publishes storefront domain events to a message broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/config"
)

const (
	OrderCreated       = "order.created"
	OrderCancelled     = "order.cancelled"
	OrderStatusUpdated = "order.status_updated"
	ReturnRequested    = "return.requested"
	ReturnUpdated      = "return.updated"
	ProductCreated     = "product.created"
	ProductUpdated     = "product.updated"
	ProductDeleted     = "product.deleted"
)

// Event is the JSON envelope written to the broker.
type Event struct {
	Type       string         `json:"type"`
	Key        string         `json:"key"`
	Payload    map[string]any `json:"payload"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func New(eventType, key string, payload map[string]any) Event {
	return Event{Type: eventType, Key: key, Payload: payload, OccurredAt: time.Now().UTC()}
}

func (e Event) Encode() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", e.Type, err)
	}
	return body, nil
}

func Decode(body []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return Event{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return e, nil
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Handler processes one consumed event; a non-nil error leaves the event for redelivery.
type Handler func(ctx context.Context, e Event) error

type Consumer interface {
	Consume(ctx context.Context, handler Handler) error
	Close() error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// NewPublisher returns the publisher of the configured broker.
func NewPublisher(cfg *config.Config) (Publisher, error) {
	switch cfg.Events.Broker {
	case "rabbitmq":
		return NewRabbitPublisher(cfg.RabbitMQ)
	case "kafka":
		return NewKafkaPublisher(cfg.Kafka)
	case "none", "":
		return NopPublisher{}, nil
	default:
		return nil, fmt.Errorf("unsupported events broker %q", cfg.Events.Broker)
	}
}

// NewConsumer returns the consumer of the configured broker.
func NewConsumer(cfg *config.Config) (Consumer, error) {
	switch cfg.Events.Broker {
	case "rabbitmq":
		return NewRabbitConsumer(cfg.RabbitMQ)
	case "kafka":
		return NewKafkaConsumer(cfg.Kafka), nil
	default:
		return nil, fmt.Errorf("events broker %q cannot be consumed", cfg.Events.Broker)
	}
}
