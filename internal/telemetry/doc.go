// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики проходов, задач и релизов
//
// CLI пишет логи в stderr текстом, агент — в JSON
// и экспортирует метрики на /metrics endpoint.
package telemetry
