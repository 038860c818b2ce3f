package domain

import (
	"time"

	"github.com/google/uuid"
)

// Pass — одно выполнение очереди на паре (connection, stage).
//
// Проход создаётся планировщиком для каждой ячейки матрицы
// connection × stage и сохраняется в историю, если подключён Recorder.
type Pass struct {
	// ID — уникальный идентификатор прохода.
	ID uuid.UUID `json:"id"`

	// RequestID — запрос деплоя, в рамках которого выполнен проход.
	// Nil для локальных запусков без запроса.
	RequestID *uuid.UUID `json:"request_id,omitempty"`

	Connection string `json:"connection"`
	Stage      string `json:"stage,omitempty"`

	Status PassStatus `json:"status"`

	// Tasks — имена задач очереди в порядке выполнения.
	Tasks []string `json:"tasks"`

	// Executed — сколько задач было запущено.
	Executed int `json:"executed"`

	// CanceledBy — имя задачи, прервавшей очередь.
	CanceledBy string `json:"canceled_by,omitempty"`

	// Output — вывод последней выполненной задачи.
	Output string `json:"output,omitempty"`

	// Error — текст ошибки для FAILED и CANCELED.
	Error string `json:"error,omitempty"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewPass создаёт проход в статусе PENDING.
func NewPass(connection, stage string, tasks []string) *Pass {
	return &Pass{
		ID:         uuid.New(),
		Connection: connection,
		Stage:      stage,
		Status:     PassStatusPending,
		Tasks:      tasks,
		CreatedAt:  time.Now(),
	}
}

// Duration возвращает продолжительность прохода.
// Возвращает 0, если проход не завершён.
func (p *Pass) Duration() time.Duration {
	if p.StartedAt == nil || p.FinishedAt == nil {
		return 0
	}
	return p.FinishedAt.Sub(*p.StartedAt)
}

// MarkRunning переводит проход в статус RUNNING.
func (p *Pass) MarkRunning() {
	now := time.Now()
	p.Status = PassStatusRunning
	p.StartedAt = &now
}

// MarkCompleted переводит проход в статус COMPLETED.
func (p *Pass) MarkCompleted() {
	now := time.Now()
	p.Status = PassStatusCompleted
	p.FinishedAt = &now
}

// MarkFailed переводит проход в статус FAILED.
func (p *Pass) MarkFailed(err string) {
	now := time.Now()
	p.Status = PassStatusFailed
	p.FinishedAt = &now
	p.Error = err
}

// MarkCanceled переводит проход в статус CANCELED.
func (p *Pass) MarkCanceled(task, err string) {
	now := time.Now()
	p.Status = PassStatusCanceled
	p.FinishedAt = &now
	p.CanceledBy = task
	p.Error = err
}
