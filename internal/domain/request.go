package domain

import (
	"time"

	"github.com/google/uuid"
)

// Источники запросов деплоя.
const (
	SourceCLI      = "cli"
	SourceSchedule = "schedule"
	SourceAPI      = "api"
)

// DeployRequest — запрос на выполнение очереди.
//
// Запрос создаётся CLI (команда request), HTTP API агента или cron-расписанием,
// передаётся агенту через RabbitMQ и выполняется им на соединениях.
type DeployRequest struct {
	// ID — уникальный идентификатор запроса.
	ID uuid.UUID `json:"id"`

	// Queue — элементы очереди: имена задач или shell-команды.
	Queue []string `json:"queue"`

	// Connections — соединения. Пусто — соединения по умолчанию.
	Connections []string `json:"connections,omitempty"`

	// Stage — ограничение одним stage. Пусто — все stages соединения.
	Stage string `json:"stage,omitempty"`

	// Options — опции задач, перекрывают options из конфигурации.
	Options map[string]any `json:"options,omitempty"`

	// Source — кто создал запрос: cli, api или schedule.
	Source string `json:"source"`

	// ScheduleName — имя расписания для Source == schedule.
	ScheduleName string `json:"schedule_name,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewDeployRequest создаёт запрос с новым ID.
func NewDeployRequest(queue, connections []string, source string) *DeployRequest {
	return &DeployRequest{
		ID:          uuid.New(),
		Queue:       queue,
		Connections: connections,
		Options:     make(map[string]any),
		Source:      source,
		CreatedAt:   time.Now(),
	}
}

// DeployOutcome — итог выполнения запроса агентом.
type DeployOutcome struct {
	RequestID  uuid.UUID `json:"request_id"`
	Succeeded  bool      `json:"succeeded"`
	Passes     []Pass    `json:"passes"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}
