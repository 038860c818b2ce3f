package tasks

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/shaiso/Rollout/internal/remote"
)

// Deploy — полный пайплайн деплоя.
//
// Порядок: Setup при необходимости, новый релиз, CreateRelease,
// Dependencies, Test (опция tests), права, Migrate (опция migrate),
// shared-файлы из предыдущего релиза, переключение current и пометка
// релиза валидным. Сбой CreateRelease, Dependencies или Test запускает
// Rollback, а результат Deploy становится неуспешным.
type Deploy struct{}

func (t *Deploy) Name() string        { return "Deploy" }
func (t *Deploy) Description() string { return "Deploy the website" }

// Execute выполняет пайплайн.
func (t *Deploy) Execute(ctx context.Context, tc *Context) (Result, error) {
	log := tc.logger()

	ready, err := tc.IsSetup(ctx)
	if err != nil {
		return Result{Failed: true}, err
	}
	if !ready {
		log.Info("Server is not ready, running Setup task")
		res, err := tc.ExecuteTask(ctx, "Setup")
		if err != nil || !res.OK() {
			return Failure("setup failed: %s", res.Output), err
		}
	}

	release, err := tc.Releases.UpdateCurrentRelease(ctx, 0)
	if err != nil {
		return Result{Failed: true}, err
	}

	steps := []string{"CreateRelease", "Dependencies"}
	if tc.Options.Bool(OptTests) {
		steps = append(steps, "Test")
	}
	for _, step := range steps {
		res, err := tc.ExecuteTask(ctx, step)
		if err != nil || !res.OK() {
			return t.rollback(ctx, tc, release, step, res, err)
		}
	}

	if err := t.setPermissions(ctx, tc, release); err != nil {
		return Result{Failed: true}, err
	}

	if tc.Options.Bool(OptMigrate) {
		res, err := tc.ExecuteTask(ctx, "Migrate")
		if err != nil || !res.OK() {
			log.Warn("migration failed", "release", release, "output", res.Output, "error", err)
		}
	}

	if err := t.syncSharedFolders(ctx, tc, release); err != nil {
		return Result{Failed: true}, err
	}

	res, err := tc.UpdateSymlink(ctx, release)
	if err != nil {
		return Result{Failed: true}, err
	}
	if !res.Success {
		return t.rollback(ctx, tc, release, "symlink", Result{Output: res.Output, Failed: true}, nil)
	}

	if err := tc.Releases.MarkReleaseAsValid(ctx, release); err != nil {
		return Result{Failed: true}, err
	}

	log.Info(fmt.Sprintf("Successfully deployed release %d", release), "release", release)
	return Success(fmt.Sprintf("release %d deployed", release)), nil
}

// rollback запускает Rollback и возвращает неуспешный результат с причиной.
func (t *Deploy) rollback(ctx context.Context, tc *Context, release int64, step string, res Result, stepErr error) (Result, error) {
	log := tc.logger()
	log.Error("deploy step failed, rolling back",
		"release", release,
		"step", step,
		"output", res.Output,
		"error", stepErr,
	)

	rb, err := tc.ExecuteTask(ctx, "Rollback")
	if err != nil || !rb.OK() {
		log.Error("rollback failed", "output", rb.Output, "error", err)
	}

	out := fmt.Sprintf("%s failed for release %d", step, release)
	if res.Output != "" {
		out += ": " + res.Output
	}
	return Result{Output: out, Failed: true}, nil
}

// setPermissions выставляет права на файлы из permissions.files.
func (t *Deploy) setPermissions(ctx context.Context, tc *Context, release int64) error {
	perms := tc.Config.Permissions
	if len(perms.Files) == 0 {
		return nil
	}

	var cmds []string
	for _, file := range perms.Files {
		target := remote.Quote(tc.ReleaseFile(release, file))
		cmds = append(cmds, fmt.Sprintf("chmod -R %s %s", perms.Mode, target))
		if perms.User != "" {
			cmds = append(cmds, fmt.Sprintf("chown -R %s %s", remote.Quote(perms.User), target))
		}
	}

	res, err := tc.Run(ctx, strings.Join(cmds, " && "))
	if err != nil {
		return fmt.Errorf("set permissions: %w", err)
	}
	if !res.Success {
		tc.logger().Warn("failed to set permissions", "output", res.Output)
	}
	return nil
}

// syncSharedFolders копирует shared-файлы из предыдущего релиза в новый.
func (t *Deploy) syncSharedFolders(ctx context.Context, tc *Context, release int64) error {
	if len(tc.Config.Shared) == 0 {
		return nil
	}

	previous, err := tc.Releases.PreviousRelease(ctx)
	if err != nil {
		return err
	}
	if previous == release {
		return nil
	}

	var cmds []string
	for _, file := range tc.Config.Shared {
		from := remote.Quote(tc.ReleaseFile(previous, file))
		to := tc.ReleaseFile(release, file)
		cmds = append(cmds, fmt.Sprintf("if [ -e %s ]; then rm -rf %s && mkdir -p %s && cp -a %s %s; fi",
			from,
			remote.Quote(to),
			remote.Quote(path.Dir(to)),
			from,
			remote.Quote(to),
		))
	}

	res, err := tc.Run(ctx, strings.Join(cmds, " && "))
	if err != nil {
		return fmt.Errorf("sync shared folders: %w", err)
	}
	if !res.Success {
		tc.logger().Warn("failed to sync shared folders", "output", res.Output)
	}
	return nil
}

var _ Task = (*Deploy)(nil)
