package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const exchangeKind = "topic"

// RabbitMQSink publishes notifications to a topic exchange with routing key
// "notification.<severity>". Consumers (mail, push, in-app inbox) bind their
// own queues.
type RabbitMQSink struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// NewRabbitMQSink dials the broker and declares the exchange.
func NewRabbitMQSink(url, exchange string, logger *zap.Logger) (*RabbitMQSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, exchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
	}

	logger.Info("connected to rabbitmq", zap.String("exchange", exchange))
	return &RabbitMQSink{conn: conn, channel: ch, exchange: exchange, logger: logger}, nil
}

func (s *RabbitMQSink) Notify(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.channel.PublishWithContext(ctx,
		s.exchange,
		RoutingKey(n),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    n.CreatedAt,
			Body:         body,
		},
	); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	s.logger.Debug("notification published", zap.String("routing_key", RoutingKey(n)), zap.String("user_id", n.UserID))
	return nil
}

// RoutingKey returns the topic a notification is published under.
func RoutingKey(n Notification) string {
	severity := n.Severity
	if severity == "" {
		severity = SeverityInfo
	}
	return "notification." + string(severity)
}

func (s *RabbitMQSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channel != nil {
		s.channel.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
