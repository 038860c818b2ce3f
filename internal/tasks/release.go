package tasks

import (
	"context"
	"fmt"

	"github.com/shaiso/Rollout/internal/remote"
	"github.com/shaiso/Rollout/internal/strategies"
)

// fromRemote переводит результат команды в результат задачи.
func fromRemote(step string, res remote.Result, err error) (Result, error) {
	if err != nil {
		return Result{Output: res.Output, Failed: true}, fmt.Errorf("%s: %w", step, err)
	}
	return Result{Output: res.Output, Failed: !res.Success}, nil
}

// currentTarget возвращает описание текущего релиза для стратегий.
func currentTarget(ctx context.Context, tc *Context) (strategies.Target, error) {
	release, err := tc.Releases.CurrentRelease(ctx)
	if err != nil {
		return strategies.Target{}, err
	}
	return tc.Target(ctx, release)
}

// CreateRelease размещает код в каталоге текущего релиза стратегией Deploy.
type CreateRelease struct{}

func (t *CreateRelease) Name() string        { return "CreateRelease" }
func (t *CreateRelease) Description() string { return "Create a new release on the server" }

// Execute вызывает стратегию Deploy.
func (t *CreateRelease) Execute(ctx context.Context, tc *Context) (Result, error) {
	strategy, err := tc.Strategies.Deploy()
	if err != nil {
		return Result{Failed: true}, err
	}
	target, err := currentTarget(ctx, tc)
	if err != nil {
		return Result{Failed: true}, err
	}

	tc.logger().Info("creating release", "release", target.Release, "strategy", strategy.Name())
	res, err := strategy.Deploy(ctx, tc, target)
	return fromRemote("create release", res, err)
}

// Dependencies устанавливает зависимости в текущем релизе.
type Dependencies struct{}

func (t *Dependencies) Name() string        { return "Dependencies" }
func (t *Dependencies) Description() string { return "Install the project dependencies" }

// Execute вызывает стратегию Dependencies.
func (t *Dependencies) Execute(ctx context.Context, tc *Context) (Result, error) {
	strategy, err := tc.Strategies.Dependencies()
	if err != nil {
		return Result{Failed: true}, err
	}
	target, err := currentTarget(ctx, tc)
	if err != nil {
		return Result{Failed: true}, err
	}

	tc.logger().Info("installing dependencies", "release", target.Release, "strategy", strategy.Name())
	res, err := strategy.Install(ctx, tc, target)
	return fromRemote("dependencies", res, err)
}

// Test запускает тесты в текущем релизе.
type Test struct{}

func (t *Test) Name() string        { return "Test" }
func (t *Test) Description() string { return "Run the tests on the server" }

// Execute вызывает стратегию Test.
func (t *Test) Execute(ctx context.Context, tc *Context) (Result, error) {
	strategy, err := tc.Strategies.Test()
	if err != nil {
		return Result{Failed: true}, err
	}
	target, err := currentTarget(ctx, tc)
	if err != nil {
		return Result{Failed: true}, err
	}

	tc.logger().Info("running tests", "release", target.Release, "strategy", strategy.Name())
	res, err := strategy.Test(ctx, tc, target)
	return fromRemote("test", res, err)
}

// Migrate применяет миграции в текущем релизе.
type Migrate struct{}

func (t *Migrate) Name() string        { return "Migrate" }
func (t *Migrate) Description() string { return "Migrate the database" }

// Execute вызывает стратегию Migrate; seed берётся из опций.
func (t *Migrate) Execute(ctx context.Context, tc *Context) (Result, error) {
	strategy, err := tc.Strategies.Migrate()
	if err != nil {
		return Result{Failed: true}, err
	}
	target, err := currentTarget(ctx, tc)
	if err != nil {
		return Result{Failed: true}, err
	}

	seed := tc.Options.Bool(OptSeed)
	tc.logger().Info("migrating database", "release", target.Release, "seed", seed)
	res, err := strategy.Migrate(ctx, tc, target, seed)
	return fromRemote("migrate", res, err)
}

var (
	_ Task = (*CreateRelease)(nil)
	_ Task = (*Dependencies)(nil)
	_ Task = (*Test)(nil)
	_ Task = (*Migrate)(nil)

	_ strategies.Shell = (*Context)(nil)
)
