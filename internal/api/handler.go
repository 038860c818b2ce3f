package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Rollout/internal/domain"
	"github.com/shaiso/Rollout/internal/repo"
)

// Dispatcher ставит запрос деплоя в очередь. Реализация: mq.Publisher.
type Dispatcher interface {
	PublishDeployRequested(ctx context.Context, req *domain.DeployRequest) error
}

// PassStore — чтение истории проходов. Реализация: repo.PassRepo.
type PassStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Pass, error)
	List(ctx context.Context, filter repo.PassFilter) ([]domain.Pass, error)
}

// ScheduleView — расписания агента. Реализация: scheduler.Scheduler.
type ScheduleView interface {
	Names() []string
	Next(name string) (time.Time, bool)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	dispatcher  Dispatcher
	passes      PassStore
	schedules   ScheduleView
	connections map[string]bool
	logger      *slog.Logger
}

// Config — конфигурация для создания Handler.
// Nil-зависимости отключают соответствующие endpoints (503).
type Config struct {
	Dispatcher Dispatcher
	Passes     PassStore
	Schedules  ScheduleView

	// Connections — известные соединения для проверки запросов.
	Connections []string

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	known := make(map[string]bool, len(cfg.Connections))
	for _, name := range cfg.Connections {
		known[name] = true
	}
	return &Handler{
		dispatcher:  cfg.Dispatcher,
		passes:      cfg.Passes,
		schedules:   cfg.Schedules,
		connections: known,
		logger:      cfg.Logger,
	}
}
