package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Rollout/internal/remote"
	"github.com/shaiso/Rollout/internal/telemetry"
)

// ParallelEngine выполняет пачку команд одновременно
// и возвращается, когда завершены все.
type ParallelEngine interface {
	Run(ctx context.Context, commands []string) error
}

// CommandPool — ParallelEngine поверх remote.Connector.
//
// Все команды выполняются на одном соединении, одновременно не более limit.
// Сбой команды не отменяет остальные; ошибки объединяются через errors.Join.
type CommandPool struct {
	connector  remote.Connector
	connection string
	limit      int
	logger     *slog.Logger
}

// NewCommandPool создаёт CommandPool. limit <= 0 — без ограничения.
func NewCommandPool(connector remote.Connector, connection string, limit int, logger *slog.Logger) *CommandPool {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandPool{
		connector:  connector,
		connection: connection,
		limit:      limit,
		logger:     telemetry.WithConnection(logger, connection),
	}
}

// Run выполняет команды и ждёт завершения всех.
func (p *CommandPool) Run(ctx context.Context, commands []string) error {
	var g errgroup.Group
	if p.limit > 0 {
		g.SetLimit(p.limit)
	}

	errs := make([]error, len(commands))
	for i, cmd := range commands {
		g.Go(func() error {
			res, err := p.connector.Run(ctx, p.connection, cmd)
			switch {
			case err != nil:
				errs[i] = fmt.Errorf("%s: %w", cmd, err)
			case !res.Success:
				errs[i] = fmt.Errorf("%w: %s: %s", ErrCommandFailed, cmd, strings.TrimSpace(res.Output))
			}

			status := telemetry.StatusSucceeded
			if errs[i] != nil {
				status = telemetry.StatusFailed
				p.logger.Warn("parallel command failed", "command", cmd, "error", errs[i])
			}
			telemetry.ParallelCommandsTotal.WithLabelValues(status).Inc()
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

var _ ParallelEngine = (*CommandPool)(nil)
