package events

import (
	"context"
	"log/slog"

	"github.com/streadway/amqp"

	"storefront/internal/config"
	"storefront/pkg/rabbitmq"
)

type RabbitPublisher struct {
	client *rabbitmq.Client
}

func NewRabbitPublisher(cfg config.RabbitMQConfig) (*RabbitPublisher, error) {
	client, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.URL, Queue: cfg.Queue})
	if err != nil {
		return nil, err
	}
	return &RabbitPublisher{client: client}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, e Event) error {
	body, err := e.Encode()
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, e.Type, body)
}

func (p *RabbitPublisher) Close() error {
	return p.client.Close()
}

type RabbitConsumer struct {
	client *rabbitmq.Client
}

func NewRabbitConsumer(cfg config.RabbitMQConfig) (*RabbitConsumer, error) {
	client, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.URL, Queue: cfg.Queue})
	if err != nil {
		return nil, err
	}
	return &RabbitConsumer{client: client}, nil
}

func (c *RabbitConsumer) Consume(ctx context.Context, handler Handler) error {
	return c.client.Consume(ctx, func(msg amqp.Delivery) error {
		e, err := Decode(msg.Body)
		if err != nil {
			slog.Error("skipping undecodable event", "delivery_tag", msg.DeliveryTag, "error", err)
			return nil
		}
		return handler(ctx, e)
	})
}

func (c *RabbitConsumer) Close() error {
	return c.client.Close()
}
