// Package api содержит HTTP API агента.
//
// Структура:
//   - handler.go          — Handler с зависимостями (publisher, история, расписания)
//   - routes.go           — регистрация маршрутов, /healthz и /metrics
//   - middleware.go       — middleware (logging, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - request_handler.go  — постановка запросов деплоя
//   - pass_handler.go     — история проходов
//   - schedule_handler.go — расписания агента
//
// Запросы не выполняются синхронно: API публикует их в RabbitMQ,
// а результат появляется в истории проходов.
package api
