// Package cli реализует инструмент командной строки Rollout.
//
// # Обзор
//
// CLI читает rollout.yaml, открывает хранилище состояния и транспорт
// к хостам и выполняет очереди задач локально, без агента.
// Команда request вместо этого отправляет очередь агенту через RabbitMQ.
//
// # Ключевые компоненты
//
// ## App
//
// Окружение команды: конфигурация, state.Store, remote.Router,
// реестры задач и стратегий, история проходов (если задан DSN).
// Создаётся лениво через AppFn после разбора PersistentFlags.
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: rollout releases --json | jq .
//
// ## Commands
//
//   - deploy, rollback, setup, cleanup, current, test — встроенные задачи
//   - run — произвольная очередь задач и shell-команд
//   - releases — релизы по соединениям и stages
//   - history — история проходов из Postgres
//   - request — запрос агенту
//   - schedules — cron-расписания агента
//
// Неуспешный проход превращает код выхода в ненулевой (ErrQueueFailed).
package cli
