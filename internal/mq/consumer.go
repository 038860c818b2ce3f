package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNoChannel — канал ещё не открыт или соединение потеряно.
var ErrNoChannel = errors.New("no channel available")

// Handler — функция обработки сообщения.
// Ошибка означает nack: первая доставка возвращается в очередь, повторная уходит в DLQ.
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — доставленное сообщение.
type Delivery struct {
	Message Message
	Raw     amqp.Delivery
}

// Redelivered сообщает, доставлялось ли сообщение раньше.
func (d *Delivery) Redelivered() bool {
	return d.Raw.Redelivered
}

// Consumer потребляет сообщения из очереди RabbitMQ.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    Queue
	handler  Handler
	prefetch int

	cancelFunc context.CancelFunc
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	Queue   Queue
	Handler Handler

	// Prefetch — сколько сообщений брокер выдаёт без ack. Деплой тяжёлый, по умолчанию 1.
	Prefetch int
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	return &Consumer{
		conn:     conn,
		logger:   logger.With("queue", cfg.Queue),
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Start потребляет сообщения до отмены контекста или Stop.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	defer cancel()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		deliveries, err := c.setupConsume()
		if err != nil {
			c.logger.Error("failed to setup consume", "error", err)
			if err := c.waitReconnect(ctx); err != nil {
				return err
			}
			continue
		}

		c.logger.Info("consumer started")

		if err := c.processDeliveries(ctx, deliveries); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("deliveries channel closed, reconnecting")
			if err := c.waitReconnect(ctx); err != nil {
				return err
			}
		}
	}
}

func (c *Consumer) waitReconnect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.conn.ReconnectNotify():
		c.logger.Info("reconnected, restarting consumer")
		return nil
	}
}

func (c *Consumer) setupConsume() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		string(c.queue), // queue
		"",              // consumer tag
		false,           // auto-ack
		false,           // exclusive
		false,           // no-local
		false,           // no-wait
		nil,             // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}
	return deliveries, nil
}

func (c *Consumer) processDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handleDelivery(ctx, raw)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("failed to unmarshal message", "error", err, "body", string(raw.Body))
		_ = raw.Nack(false, false)
		return
	}

	delivery := &Delivery{Message: msg, Raw: raw}
	c.logger.Debug("received message", "message_id", msg.ID, "type", msg.Type)

	if err := c.handler(ctx, delivery); err != nil {
		requeue := ShouldRequeue(raw.Redelivered)
		c.logger.Error("handler failed",
			"message_id", msg.ID,
			"type", msg.Type,
			"requeue", requeue,
			"error", err,
		)
		_ = raw.Nack(false, requeue)
		return
	}

	_ = raw.Ack(false)
}

// ShouldRequeue решает судьбу сообщения после ошибки обработчика:
// первая неудача возвращает его в очередь, повторная отправляет в DLQ.
func ShouldRequeue(redelivered bool) bool {
	return !redelivered
}

// Stop останавливает consumer.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

// ParsePayload разбирает payload сообщения в указанный тип.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T
	if len(msg.Payload) == 0 {
		return result, errors.New("empty payload")
	}
	if err := json.Unmarshal(msg.Payload, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}
	return result, nil
}
