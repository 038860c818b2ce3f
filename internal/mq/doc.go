// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с reconnect и graceful shutdown
//   - topology.go   — exchanges, queues, bindings
//   - publisher.go  — публикация запросов и итогов деплоя
//   - consumer.go   — потребление сообщений
//
// Типы сообщений:
//   - deploy.requested — запрос на выполнение очереди задач
//   - deploy.completed — итог выполнения запроса
//
// Exchanges:
//   - rollout.deploys — запросы и итоги
//   - rollout.dlq     — dead letter queue
package mq
