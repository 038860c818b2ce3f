package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Rollout/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeDeployRequested MessageType = "deploy.requested"
	MessageTypeDeployCompleted MessageType = "deploy.completed"
)

// Message — конверт сообщения.
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage упаковывает payload в конверт.
func NewMessage(msgType MessageType, payload any) (*Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   body,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),
			string(routingKey),
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Type:         string(msg.Type),
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishDeployRequested ставит запрос на выполнение очереди.
// Потребитель: rollout-agent.
func (p *Publisher) PublishDeployRequested(ctx context.Context, req *domain.DeployRequest) error {
	msg, err := NewMessage(MessageTypeDeployRequested, req)
	if err != nil {
		return err
	}
	return p.Publish(ctx, ExchangeDeploys, RoutingKeyRequested, msg)
}

// PublishDeployCompleted публикует итог выполнения запроса.
func (p *Publisher) PublishDeployCompleted(ctx context.Context, outcome domain.DeployOutcome) error {
	msg, err := NewMessage(MessageTypeDeployCompleted, outcome)
	if err != nil {
		return err
	}
	return p.Publish(ctx, ExchangeDeploys, RoutingKeyCompleted, msg)
}
