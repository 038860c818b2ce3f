package strategies

import (
	"context"
	"errors"
	"strings"

	"github.com/shaiso/Rollout/internal/remote"
)

// Ошибки стратегий.
var (
	// ErrUnknownStrategy — реализация не найдена в каталоге.
	ErrUnknownStrategy = errors.New("unknown strategy")

	// ErrStrategyNotBound — для роли не выбрана реализация.
	ErrStrategyNotBound = errors.New("strategy not bound")

	// ErrWrongRole — реализация не подходит для роли.
	ErrWrongRole = errors.New("strategy does not implement role")
)

// Role — роль стратегии в пайплайне.
type Role string

// Роли.
const (
	RoleDeploy       Role = "Deploy"
	RoleDependencies Role = "Dependencies"
	RoleTest         Role = "Test"
	RoleMigrate      Role = "Migrate"
)

// Roles возвращает все роли в порядке пайплайна.
func Roles() []Role {
	return []Role{RoleDeploy, RoleDependencies, RoleTest, RoleMigrate}
}

// Shell выполняет команду на текущем соединении.
type Shell interface {
	Run(ctx context.Context, command string) (remote.Result, error)
}

// Target — релиз, над которым работает стратегия.
type Target struct {
	Release     int64
	ReleasePath string

	// PreviousPath — каталог предыдущего релиза, пустой при первом деплое.
	PreviousPath string
}

// Strategy — общая часть всех реализаций.
type Strategy interface {
	// Name возвращает имя реализации в каталоге.
	Name() string

	// Roles возвращает роли, которые реализация умеет исполнять.
	Roles() []Role
}

// DeployStrategy размещает код в каталоге релиза.
type DeployStrategy interface {
	Strategy
	Deploy(ctx context.Context, sh Shell, target Target) (remote.Result, error)
}

// DependenciesStrategy устанавливает зависимости.
type DependenciesStrategy interface {
	Strategy
	Install(ctx context.Context, sh Shell, target Target) (remote.Result, error)
}

// TestStrategy запускает тесты.
type TestStrategy interface {
	Strategy
	Test(ctx context.Context, sh Shell, target Target) (remote.Result, error)
}

// MigrateStrategy применяет миграции и, при seed, наполняет базу.
type MigrateStrategy interface {
	Strategy
	Migrate(ctx context.Context, sh Shell, target Target, seed bool) (remote.Result, error)
}

// inRelease формирует команду, выполняемую в каталоге релиза.
func inRelease(target Target, commands ...string) string {
	return "cd " + remote.Quote(target.ReleasePath) + " && " + strings.Join(commands, " && ")
}

func hasRole(s Strategy, role Role) bool {
	for _, r := range s.Roles() {
		if r == role {
			return true
		}
	}
	return false
}
