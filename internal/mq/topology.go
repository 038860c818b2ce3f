package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeDeploys Exchange = "rollout.deploys"
	ExchangeDLQ     Exchange = "rollout.dlq"
)

// Queues — имена очередей.
const (
	QueueDeploysRequested Queue = "deploys.requested"
	QueueDeploysCompleted Queue = "deploys.completed"
	QueueDLQDeploys       Queue = "dlq.deploys"
)

// Routing keys.
const (
	RoutingKeyRequested  RoutingKey = "requested"
	RoutingKeyCompleted  RoutingKey = "completed"
	RoutingKeyDLQDeploys RoutingKey = "deploys"
)

type exchangeDecl struct {
	name Exchange
	kind string
}

type queueDecl struct {
	name Queue
	args amqp.Table
}

type bindingDecl struct {
	queue      Queue
	routingKey RoutingKey
	exchange   Exchange
}

// Topology — полный набор объявлений брокера.
type Topology struct {
	exchanges []exchangeDecl
	queues    []queueDecl
	bindings  []bindingDecl
}

// DefaultTopology возвращает топологию деплоев.
//
// deploys.requested отправляет отклонённые запросы в dlq.deploys,
// чтобы повторно не выкатывать один и тот же релиз бесконечно.
func DefaultTopology() Topology {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQDeploys),
	}

	return Topology{
		exchanges: []exchangeDecl{
			{ExchangeDeploys, "direct"},
			{ExchangeDLQ, "direct"},
		},
		queues: []queueDecl{
			{QueueDeploysRequested, dlqArgs},
			{QueueDeploysCompleted, nil},
			{QueueDLQDeploys, nil},
		},
		bindings: []bindingDecl{
			{QueueDeploysRequested, RoutingKeyRequested, ExchangeDeploys},
			{QueueDeploysCompleted, RoutingKeyCompleted, ExchangeDeploys},
			{QueueDLQDeploys, RoutingKeyDLQDeploys, ExchangeDLQ},
		},
	}
}

// Queues возвращает имена объявляемых очередей.
func (t Topology) Queues() []Queue {
	names := make([]Queue, 0, len(t.queues))
	for _, q := range t.queues {
		names = append(names, q.name)
	}
	return names
}

// SetupTopology объявляет exchanges, queues и bindings.
func SetupTopology(ctx context.Context, conn *Connection) error {
	topology := DefaultTopology()
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		return topology.declare(ch)
	})
}

func (t Topology) declare(ch *amqp.Channel) error {
	for _, ex := range t.exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	for _, q := range t.queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	for _, b := range t.bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Rollout RabbitMQ Topology:

    rollout.deploys (direct)
    ├── deploys.requested [routing: requested]
    │       Consumer: rollout-agent
    │       DLQ: dlq.deploys
    └── deploys.completed [routing: completed]
            Consumer: rollout request --wait

    rollout.dlq (direct)
    └── dlq.deploys [routing: deploys]
            Manual processing
  `
}
