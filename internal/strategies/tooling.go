package strategies

import (
	"context"

	"github.com/shaiso/Rollout/internal/remote"
)

// ComposerStrategy ставит PHP-зависимости через composer.
type ComposerStrategy struct{}

func (ComposerStrategy) Name() string  { return "composer" }
func (ComposerStrategy) Roles() []Role { return []Role{RoleDependencies} }

// Install выполняет composer install.
func (ComposerStrategy) Install(ctx context.Context, sh Shell, target Target) (remote.Result, error) {
	return sh.Run(ctx, inRelease(target, "composer install --no-interaction --no-dev --prefer-dist"))
}

// NpmStrategy ставит Node-зависимости через npm.
type NpmStrategy struct{}

func (NpmStrategy) Name() string  { return "npm" }
func (NpmStrategy) Roles() []Role { return []Role{RoleDependencies} }

// Install выполняет npm ci.
func (NpmStrategy) Install(ctx context.Context, sh Shell, target Target) (remote.Result, error) {
	return sh.Run(ctx, inRelease(target, "npm ci --no-audit --no-fund"))
}

// PhpunitStrategy запускает phpunit.
type PhpunitStrategy struct{}

func (PhpunitStrategy) Name() string  { return "phpunit" }
func (PhpunitStrategy) Roles() []Role { return []Role{RoleTest} }

// Test запускает тесты до первой ошибки.
func (PhpunitStrategy) Test(ctx context.Context, sh Shell, target Target) (remote.Result, error) {
	return sh.Run(ctx, inRelease(target, "vendor/bin/phpunit --stop-on-failure"))
}

// ArtisanStrategy мигрирует базу через artisan.
type ArtisanStrategy struct{}

func (ArtisanStrategy) Name() string  { return "artisan" }
func (ArtisanStrategy) Roles() []Role { return []Role{RoleMigrate} }

// Migrate выполняет migrate и, при seed, db:seed.
func (ArtisanStrategy) Migrate(ctx context.Context, sh Shell, target Target, seed bool) (remote.Result, error) {
	cmds := []string{"php artisan migrate --force"}
	if seed {
		cmds = append(cmds, "php artisan db:seed --force")
	}
	return sh.Run(ctx, inRelease(target, cmds...))
}

// CommandStrategy выполняет произвольные команды из конфигурации.
// Одна реализация обслуживает роли Dependencies, Test и Migrate.
type CommandStrategy struct {
	// Commands — роль → команды, выполняемые в каталоге релиза.
	Commands map[Role][]string
}

// NewCommandStrategy создаёт CommandStrategy из секции strategies.commands.
func NewCommandStrategy(commands map[string][]string) *CommandStrategy {
	s := &CommandStrategy{Commands: make(map[Role][]string)}
	for role, cmds := range commands {
		s.Commands[Role(role)] = cmds
	}
	return s
}

func (s *CommandStrategy) Name() string { return "command" }
func (s *CommandStrategy) Roles() []Role {
	return []Role{RoleDependencies, RoleTest, RoleMigrate}
}

func (s *CommandStrategy) run(ctx context.Context, sh Shell, target Target, role Role) (remote.Result, error) {
	cmds := s.Commands[role]
	if len(cmds) == 0 {
		return remote.Result{Success: true}, nil
	}
	return sh.Run(ctx, inRelease(target, cmds...))
}

// Install выполняет команды роли Dependencies.
func (s *CommandStrategy) Install(ctx context.Context, sh Shell, target Target) (remote.Result, error) {
	return s.run(ctx, sh, target, RoleDependencies)
}

// Test выполняет команды роли Test.
func (s *CommandStrategy) Test(ctx context.Context, sh Shell, target Target) (remote.Result, error) {
	return s.run(ctx, sh, target, RoleTest)
}

// Migrate выполняет команды роли Migrate. Seed управляется самими командами.
func (s *CommandStrategy) Migrate(ctx context.Context, sh Shell, target Target, _ bool) (remote.Result, error) {
	return s.run(ctx, sh, target, RoleMigrate)
}

var (
	_ DependenciesStrategy = ComposerStrategy{}
	_ DependenciesStrategy = NpmStrategy{}
	_ TestStrategy         = PhpunitStrategy{}
	_ MigrateStrategy      = ArtisanStrategy{}
	_ DependenciesStrategy = (*CommandStrategy)(nil)
	_ TestStrategy         = (*CommandStrategy)(nil)
	_ MigrateStrategy      = (*CommandStrategy)(nil)
)
