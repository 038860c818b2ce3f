package strategies

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shaiso/Rollout/internal/config"
)

// Registry — каталог реализаций и привязка ролей.
// Потокобезопасен.
type Registry struct {
	mu      sync.RWMutex
	catalog map[string]Strategy
	bound   map[Role]Strategy
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		catalog: make(map[string]Strategy),
		bound:   make(map[Role]Strategy),
	}
}

// FromConfig регистрирует встроенные реализации и привязывает роли
// согласно секции strategies.
func FromConfig(cfg *config.Config) (*Registry, error) {
	r := NewRegistry()

	r.Register(NewCloneStrategy(cfg.Repository.URL, cfg.Repository.Branch))
	r.Register(NewCopyStrategy(cfg.Repository.URL, cfg.Repository.Branch))
	r.Register(NewArchiveStrategy(cfg.Archive.URL))
	r.Register(ComposerStrategy{})
	r.Register(NpmStrategy{})
	r.Register(PhpunitStrategy{})
	r.Register(ArtisanStrategy{})
	r.Register(NewCommandStrategy(cfg.Strategies.Commands))

	bindings := map[Role]string{
		RoleDeploy:       cfg.Strategies.Deploy,
		RoleDependencies: cfg.Strategies.Dependencies,
		RoleTest:         cfg.Strategies.Test,
		RoleMigrate:      cfg.Strategies.Migrate,
	}
	for _, role := range Roles() {
		name := bindings[role]
		if name == "" {
			continue
		}
		if err := r.Bind(role, name); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register добавляет реализацию в каталог, заменяя одноимённую.
func (r *Registry) Register(s Strategy) {
	if s == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catalog[s.Name()] = s
}

// Bind привязывает роль к реализации из каталога.
func (r *Registry) Bind(role Role, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.catalog[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
	}
	if !hasRole(s, role) {
		return fmt.Errorf("%w: %s as %s", ErrWrongRole, name, role)
	}
	r.bound[role] = s
	return nil
}

// Get возвращает реализацию, привязанную к роли.
func (r *Registry) Get(role Role) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.bound[role]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStrategyNotBound, role)
	}
	return s, nil
}

// Names возвращает отсортированные имена реализаций в каталоге.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.catalog))
	for name := range r.catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Deploy возвращает стратегию роли Deploy.
func (r *Registry) Deploy() (DeployStrategy, error) {
	return typed[DeployStrategy](r, RoleDeploy)
}

// Dependencies возвращает стратегию роли Dependencies.
func (r *Registry) Dependencies() (DependenciesStrategy, error) {
	return typed[DependenciesStrategy](r, RoleDependencies)
}

// Test возвращает стратегию роли Test.
func (r *Registry) Test() (TestStrategy, error) {
	return typed[TestStrategy](r, RoleTest)
}

// Migrate возвращает стратегию роли Migrate.
func (r *Registry) Migrate() (MigrateStrategy, error) {
	return typed[MigrateStrategy](r, RoleMigrate)
}

func typed[T Strategy](r *Registry, role Role) (T, error) {
	var zero T

	s, err := r.Get(role)
	if err != nil {
		return zero, err
	}
	t, ok := s.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s as %s", ErrWrongRole, s.Name(), role)
	}
	return t, nil
}
