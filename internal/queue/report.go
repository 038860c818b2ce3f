package queue

import (
	"github.com/shaiso/Rollout/internal/domain"
)

// Pass — ячейка матрицы.
type Pass struct {
	Connection string
	Stage      string
}

// Handle возвращает пространство имён состояния: connection или connection.stage.
func (p Pass) Handle() string {
	if p.Stage == "" {
		return p.Connection
	}
	return p.Connection + "." + p.Stage
}

// PassResult — итог прохода.
type PassResult struct {
	Pass

	Status domain.PassStatus

	// Outputs — вывод выполненных задач по порядку.
	Outputs []string

	// CanceledBy — имя задачи, прервавшей или провалившей проход.
	CanceledBy string

	// Err — *CanceledError, ErrTaskFailed или ошибка контекста.
	Err error

	// Record — запись для истории проходов.
	Record *domain.Pass
}

// OK сообщает, что проход завершён успешно.
func (r PassResult) OK() bool {
	return r.Status.OK()
}

// Report — итог выполнения очереди по всей матрице.
// Passes упорядочены по матрице.
type Report struct {
	Passes []PassResult
}

// OK — логическое И по всем проходам.
func (r *Report) OK() bool {
	for _, p := range r.Passes {
		if !p.OK() {
			return false
		}
	}
	return true
}

// Failed возвращает неуспешные проходы.
func (r *Report) Failed() []PassResult {
	var out []PassResult
	for _, p := range r.Passes {
		if !p.OK() {
			out = append(out, p)
		}
	}
	return out
}

// Records возвращает записи проходов по порядку матрицы.
func (r *Report) Records() []domain.Pass {
	out := make([]domain.Pass, 0, len(r.Passes))
	for _, p := range r.Passes {
		if p.Record != nil {
			out = append(out, *p.Record)
		}
	}
	return out
}
