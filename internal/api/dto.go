package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Rollout/internal/domain"
)

// Request DTOs

// CreateRequestBody — запрос на постановку очереди агенту.
type CreateRequestBody struct {
	Queue       []string       `json:"queue"`
	Connections []string       `json:"connections,omitempty"`
	Stage       string         `json:"stage,omitempty"`
	Options     map[string]any `json:"options,omitempty"`
}

// ToDomain конвертирует тело запроса в domain.DeployRequest.
func (b CreateRequestBody) ToDomain() *domain.DeployRequest {
	req := domain.NewDeployRequest(b.Queue, b.Connections, domain.SourceAPI)
	req.Stage = b.Stage
	for k, v := range b.Options {
		req.Options[k] = v
	}
	return req
}

// RequestResponse — ответ о принятом запросе.
type RequestResponse struct {
	ID          uuid.UUID `json:"id"`
	Queue       []string  `json:"queue"`
	Connections []string  `json:"connections,omitempty"`
	Stage       string    `json:"stage,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RequestFromDomain конвертирует domain.DeployRequest в RequestResponse.
func RequestFromDomain(r *domain.DeployRequest) RequestResponse {
	return RequestResponse{
		ID:          r.ID,
		Queue:       r.Queue,
		Connections: r.Connections,
		Stage:       r.Stage,
		CreatedAt:   r.CreatedAt,
	}
}

// Pass DTOs

// PassResponse — ответ с проходом очереди.
type PassResponse struct {
	ID         uuid.UUID         `json:"id"`
	RequestID  *uuid.UUID        `json:"request_id,omitempty"`
	Connection string            `json:"connection"`
	Stage      string            `json:"stage,omitempty"`
	Status     domain.PassStatus `json:"status"`
	Tasks      []string          `json:"tasks"`
	Executed   int               `json:"executed"`
	CanceledBy string            `json:"canceled_by,omitempty"`
	Output     string            `json:"output,omitempty"`
	Error      string            `json:"error,omitempty"`
	StartedAt  *time.Time        `json:"started_at,omitempty"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	DurationMs int64             `json:"duration_ms,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// PassFromDomain конвертирует domain.Pass в PassResponse.
func PassFromDomain(p domain.Pass) PassResponse {
	return PassResponse{
		ID:         p.ID,
		RequestID:  p.RequestID,
		Connection: p.Connection,
		Stage:      p.Stage,
		Status:     p.Status,
		Tasks:      p.Tasks,
		Executed:   p.Executed,
		CanceledBy: p.CanceledBy,
		Output:     p.Output,
		Error:      p.Error,
		StartedAt:  p.StartedAt,
		FinishedAt: p.FinishedAt,
		DurationMs: p.Duration().Milliseconds(),
		CreatedAt:  p.CreatedAt,
	}
}

// PassesFromDomain конвертирует слайс domain.Pass.
func PassesFromDomain(passes []domain.Pass) []PassResponse {
	result := make([]PassResponse, len(passes))
	for i, p := range passes {
		result[i] = PassFromDomain(p)
	}
	return result
}

// Schedule DTOs

// ScheduleResponse — расписание и время следующего срабатывания.
type ScheduleResponse struct {
	Name    string     `json:"name"`
	NextDue *time.Time `json:"next_due,omitempty"`
}
