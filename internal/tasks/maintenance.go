package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shaiso/Rollout/internal/releases"
	"github.com/shaiso/Rollout/internal/remote"
	"github.com/shaiso/Rollout/internal/telemetry"
)

// Rollback возвращает current на предыдущий валидный релиз
// или на релиз из опции release.
type Rollback struct{}

func (t *Rollback) Name() string        { return "Rollback" }
func (t *Rollback) Description() string { return "Rollback to the previous release" }

// Execute переключает указатель и симлинк.
func (t *Rollback) Execute(ctx context.Context, tc *Context) (Result, error) {
	target := tc.Options.Int64(OptRelease)
	if target != 0 {
		known, err := tc.Releases.Releases(ctx)
		if err != nil {
			return Result{Failed: true}, err
		}
		if !containsRelease(known, target) {
			return Failure("release %d does not exist", target), nil
		}
	} else {
		previous, err := tc.Releases.PreviousRelease(ctx)
		if err != nil {
			return Result{Failed: true}, err
		}
		ledger, err := tc.Releases.ValidationFile(ctx)
		if err != nil {
			return Result{Failed: true}, err
		}
		// Более старого валидного релиза нет: current не трогаем.
		if valid, _ := ledger.Get(previous); !valid {
			return Failure("no previous release to roll back to"), nil
		}
		target = previous
	}

	tc.logger().Info(fmt.Sprintf("Rolling back to release %d", target), "release", target)

	if _, err := tc.Releases.UpdateCurrentRelease(ctx, target); err != nil {
		return Result{Failed: true}, err
	}
	res, err := tc.UpdateSymlink(ctx, target)
	if err != nil {
		return Result{Failed: true}, err
	}
	if !res.Success {
		return Failure("failed to switch current to %d: %s", target, res.Output), nil
	}

	telemetry.RollbacksTotal.WithLabelValues(tc.Connection).Inc()
	return Success(fmt.Sprintf("rolled back to release %d", target)), nil
}

// Cleanup удаляет каталоги старых релизов сверх keep_releases.
// Реестр не меняется.
type Cleanup struct{}

func (t *Cleanup) Name() string        { return "Cleanup" }
func (t *Cleanup) Description() string { return "Clean up old releases from the server" }

// Execute удаляет устаревшие каталоги. С опцией clean_all — все кроме текущего.
func (t *Cleanup) Execute(ctx context.Context, tc *Context) (Result, error) {
	deprecated, err := tc.Releases.DeprecatedReleases(ctx)
	if err != nil {
		if errors.Is(err, releases.ErrNoReleases) {
			return Success("no releases to clean up"), nil
		}
		return Result{Failed: true}, err
	}

	keep := tc.Config.KeepReleases - 1
	if keep < 0 || tc.Options.Bool(OptCleanAll) {
		keep = 0
	}
	if len(deprecated) <= keep {
		return Success("no releases to clean up"), nil
	}
	trash := deprecated[keep:]

	paths := make([]string, len(trash))
	for i, r := range trash {
		paths[i] = remote.Quote(tc.Releases.ReleasePath(r))
	}

	res, err := tc.Run(ctx, "rm -rf "+strings.Join(paths, " "))
	if err != nil {
		return Result{Failed: true}, err
	}
	if !res.Success {
		return Failure("cleanup failed: %s", res.Output), nil
	}

	tc.logger().Info("removed old releases", "count", len(trash))
	return Success(fmt.Sprintf("removed %d releases", len(trash))), nil
}

// Current сообщает текущий релиз и его валидность.
type Current struct{}

func (t *Current) Name() string        { return "Current" }
func (t *Current) Description() string { return "Display what the current release is" }

// Execute читает указатель и реестр.
func (t *Current) Execute(ctx context.Context, tc *Context) (Result, error) {
	current, err := tc.Releases.CurrentRelease(ctx)
	if err != nil {
		if errors.Is(err, releases.ErrNoReleases) {
			return Failure("No release has yet been deployed"), nil
		}
		return Result{Failed: true}, err
	}

	ledger, err := tc.Releases.ValidationFile(ctx)
	if err != nil {
		return Result{Failed: true}, err
	}

	status := "invalid"
	if valid, _ := ledger.Get(current); valid {
		status = "valid"
	}
	return Success(fmt.Sprintf("%d (%s)", current, status)), nil
}

func containsRelease(list []int64, release int64) bool {
	for _, r := range list {
		if r == release {
			return true
		}
	}
	return false
}

var (
	_ Task = (*Rollback)(nil)
	_ Task = (*Cleanup)(nil)
	_ Task = (*Current)(nil)
)
