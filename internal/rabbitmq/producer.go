package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Exchange and routing keys for outbound notification events.
const (
	NotificationExchange = "lexbridge.notifications"
)

// Publisher is the interface implemented by types that can publish events.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body any) error
	Close()
}

// EventProducer holds the RabbitMQ connection and channel for publishing.
type EventProducer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	log     *slog.Logger
}

var _ Publisher = (*EventProducer)(nil)

// FallbackProducer is a no-op publisher used when RabbitMQ is not configured
// or unavailable at startup. Outbox rows stay unpublished and can be drained
// once a broker is available.
type FallbackProducer struct {
	log *slog.Logger
}

func NewFallbackProducer(log *slog.Logger) *FallbackProducer {
	if log == nil {
		log = slog.Default()
	}
	return &FallbackProducer{log: log}
}

func (p *FallbackProducer) Publish(_ context.Context, exchange, routingKey string, _ any) error {
	p.log.Warn("publish skipped: no broker configured", "exchange", exchange, "routing_key", routingKey)
	return nil
}

func (p *FallbackProducer) Close() {}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewEventProducer dials RabbitMQ with a bounded timeout so startup does not
// hang when the broker is down.
func NewEventProducer(amqpURL string, log *slog.Logger) (*EventProducer, error) {
	if log == nil {
		log = slog.Default()
	}
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &EventProducer{conn: conn, channel: ch, log: log}, nil
}

// Publish sends a JSON message to a durable topic exchange. On a channel
// failure it reopens the channel and retries once.
func (p *EventProducer) Publish(ctx context.Context, exchange, routingKey string, body any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	if err := p.declareAndPublish(ctx, exchange, routingKey, jsonBody); err != nil {
		p.log.Warn("publish failed; reopening channel", "exchange", exchange, "routing_key", routingKey, "error", err)
		ch, chErr := p.conn.Channel()
		if chErr != nil {
			return chErr
		}
		p.channel = ch
		return p.declareAndPublish(ctx, exchange, routingKey, jsonBody)
	}
	return nil
}

func (p *EventProducer) declareAndPublish(ctx context.Context, exchange, routingKey string, jsonBody []byte) error {
	if err := p.channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // autoDelete
		false,    // internal
		false,    // noWait
		nil,      // args
	); err != nil {
		return err
	}
	return p.channel.PublishWithContext(ctx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        jsonBody,
		},
	)
}

// Close gracefully closes the channel and connection.
func (p *EventProducer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
