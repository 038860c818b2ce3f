package state

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/shaiso/Rollout/internal/config"
	"github.com/shaiso/Rollout/internal/repo"
)

// Open создаёт Store по секции state конфигурации.
// Возвращаемая функция освобождает ресурсы хранилища.
func Open(ctx context.Context, cfg config.State, logger *slog.Logger) (Store, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case config.StateMemory:
		return NewMemoryStore(), func() {}, nil

	case config.StateFile, "":
		logger.Debug("state store opened", "backend", config.StateFile, "path", cfg.Path)
		return NewFileStore(cfg.Path), func() {}, nil

	case config.StatePostgres:
		if cfg.DSN == "" {
			return nil, nil, fmt.Errorf("%w: postgres dsn is empty", ErrStoreUnavailable)
		}
		pool, err := repo.NewPool(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		store := NewPGStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Debug("state store opened", "backend", config.StatePostgres)
		return store, pool.Close, nil

	case config.StateRedis:
		if cfg.RedisURL == "" {
			return nil, nil, fmt.Errorf("%w: redis url is empty", ErrStoreUnavailable)
		}
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		logger.Debug("state store opened", "backend", config.StateRedis)
		store := NewRedisStore(client, cfg.Prefix)
		return store, func() { _ = store.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("%w: %s", config.ErrUnknownBackend, cfg.Backend)
	}
}
