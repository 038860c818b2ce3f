package remote

import (
	"context"
	"log/slog"

	"github.com/shaiso/Rollout/internal/config"
)

// Router направляет команды в LocalConnector или SSHConnector
// в зависимости от флага local соединения.
type Router struct {
	cfg   *config.Config
	local Connector
	ssh   *SSHConnector
}

// NewRouter создаёт Router для конфигурации.
func NewRouter(cfg *config.Config, logger *slog.Logger) *Router {
	return &Router{
		cfg:   cfg,
		local: NewLocalConnector(),
		ssh:   NewSSHConnector(cfg, logger),
	}
}

// Run выполняет команду на соединении.
func (r *Router) Run(ctx context.Context, connection, command string) (Result, error) {
	return r.pick(connection).Run(ctx, connection, command)
}

// List читает каталог на соединении.
func (r *Router) List(ctx context.Context, connection, dir string) ([]string, error) {
	return r.pick(connection).List(ctx, connection, dir)
}

// Close закрывает SSH-клиенты.
func (r *Router) Close() error {
	return r.ssh.Close()
}

func (r *Router) pick(connection string) Connector {
	if conn, ok := r.cfg.Connections[connection]; ok && conn.Local {
		return r.local
	}
	return r.ssh
}

var _ Connector = (*Router)(nil)
