package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/shaiso/Rollout/internal/config"
	"github.com/shaiso/Rollout/internal/releases"
	"github.com/shaiso/Rollout/internal/remote"
	"github.com/shaiso/Rollout/internal/strategies"
)

// Context — окружение задачи на одном проходе.
type Context struct {
	Connection string
	Stage      string
	Options    Options
	Logger     *slog.Logger

	Config     *config.Config
	Connector  remote.Connector
	Releases   *releases.Manager
	Strategies *strategies.Registry
	Runner     Runner
}

// Run выполняет команду на соединении прохода.
func (c *Context) Run(ctx context.Context, command string) (remote.Result, error) {
	c.logger().Debug("running command", "command", command)
	return c.Connector.Run(ctx, c.Connection, command)
}

// RunInRelease выполняет команды в каталоге релиза.
func (c *Context) RunInRelease(ctx context.Context, release int64, commands ...string) (remote.Result, error) {
	dir := remote.Quote(c.Releases.ReleasePath(release))
	return c.Run(ctx, "cd "+dir+" && "+strings.Join(commands, " && "))
}

// ExecuteTask запускает задачу по имени на том же соединении и stage.
func (c *Context) ExecuteTask(ctx context.Context, name string) (Result, error) {
	if c.Runner == nil {
		return Result{Failed: true}, fmt.Errorf("%w: %s", ErrNoRunner, name)
	}
	return c.Runner.ExecuteTask(ctx, c, name)
}

// Strategy возвращает стратегию, привязанную к роли.
func (c *Context) Strategy(role strategies.Role) (strategies.Strategy, error) {
	return c.Strategies.Get(role)
}

// IsSetup сообщает, существует ли каталог releases на хосте.
func (c *Context) IsSetup(ctx context.Context) (bool, error) {
	res, err := c.Run(ctx, "test -d "+remote.Quote(c.Releases.ReleasesPath()))
	if err != nil {
		return false, err
	}
	return res.Success, nil
}

// UpdateSymlink атомарно переключает симлинк current на релиз.
func (c *Context) UpdateSymlink(ctx context.Context, release int64) (remote.Result, error) {
	current := c.Releases.CurrentPath()
	tmp := current + "-tmp"
	cmd := fmt.Sprintf("ln -sfn %s %s && mv -Tf %s %s",
		remote.Quote(c.Releases.ReleasePath(release)),
		remote.Quote(tmp),
		remote.Quote(tmp),
		remote.Quote(current),
	)
	return c.Run(ctx, cmd)
}

// Target описывает релиз для стратегий.
// PreviousPath пуст, если предыдущий релиз совпадает с release.
func (c *Context) Target(ctx context.Context, release int64) (strategies.Target, error) {
	target := strategies.Target{
		Release:     release,
		ReleasePath: c.Releases.ReleasePath(release),
	}

	previous, err := c.Releases.PreviousRelease(ctx)
	if err != nil {
		return target, err
	}
	if previous != release {
		target.PreviousPath = c.Releases.ReleasePath(previous)
	}
	return target, nil
}

// ReleaseFile возвращает путь внутри релиза с подстановкой {path.<name>}.
func (c *Context) ReleaseFile(release int64, file string) string {
	return path.Join(c.Releases.ReleasePath(release), c.Releases.ResolvePlaceholders(file))
}

func (c *Context) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
