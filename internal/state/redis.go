package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient — подмножество методов go-redis, которые использует RedisStore.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// RedisStore хранит состояние в Redis под ключами "<prefix><key>.<handle>".
type RedisStore struct {
	client RedisClient
	prefix string
}

// NewRedisStore создаёт RedisStore поверх клиента.
func NewRedisStore(client RedisClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Get возвращает значение.
func (s *RedisStore) Get(ctx context.Context, handle, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.prefix+PhysicalKey(handle, key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

// Set сохраняет значение без TTL.
func (s *RedisStore) Set(ctx context.Context, handle, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+PhysicalKey(handle, key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close закрывает клиент.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
