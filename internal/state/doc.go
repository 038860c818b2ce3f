// Package state хранит персистентное состояние релизов.
//
// # Обзор
//
// Store — плоское key/value хранилище, значения которого разделены
// по handle (имя соединения или "connection.stage"). Поверх него
// пакет releases хранит указатель current_release и реестр releases.
//
// Реализации:
//   - FileStore — JSON-файл на машине оператора
//   - MemoryStore — для тестов и одноразовых запусков
//   - PGStore — таблица rollout_state в PostgreSQL (pgx)
//   - RedisStore — ключи "<prefix><key>.<handle>" в Redis (go-redis)
//
// Open выбирает реализацию по секции state конфигурации.
//
// Блокировок между процессами нет: два одновременных деплоя на один
// handle могут перезаписать реестр друг друга.
package state
