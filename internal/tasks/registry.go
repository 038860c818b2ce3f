package tasks

import (
	"fmt"
	"sort"
	"sync"
)

// Factory создаёт новый экземпляр задачи.
type Factory func() Task

// Registry — реестр задач по имени.
//
// Хранит фабрики: каждый проход получает свежий экземпляр задачи.
// Потокобезопасен.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// DefaultRegistry создаёт реестр со всеми встроенными задачами.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register("Setup", func() Task { return &Setup{} })
	r.Register("Deploy", func() Task { return &Deploy{} })
	r.Register("CreateRelease", func() Task { return &CreateRelease{} })
	r.Register("Dependencies", func() Task { return &Dependencies{} })
	r.Register("Test", func() Task { return &Test{} })
	r.Register("Migrate", func() Task { return &Migrate{} })
	r.Register("Rollback", func() Task { return &Rollback{} })
	r.Register("Cleanup", func() Task { return &Cleanup{} })
	r.Register("Current", func() Task { return &Current{} })

	return r
}

// Register регистрирует фабрику. Одноимённая фабрика перезаписывается.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Build создаёт задачу по имени.
// Возвращает ErrUnknownTask, если имя не зарегистрировано.
func (r *Registry) Build(name string) (Task, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return factory(), nil
}

// Has проверяет, зарегистрирована ли задача.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names возвращает отсортированные имена задач.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
