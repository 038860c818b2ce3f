package domain

// PassStatus — статус прохода очереди по паре (connection, stage).
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED
//	                  ↘ FAILED   (последняя задача вернула неуспех)
//	                  ↘ CANCELED (неуспех задачи прервал очередь)
type PassStatus string

const (
	// PassStatusPending — проход ещё не начат.
	PassStatusPending PassStatus = "PENDING"

	// PassStatusRunning — выполняются задачи прохода.
	PassStatusRunning PassStatus = "RUNNING"

	// PassStatusCompleted — все задачи выполнены успешно.
	PassStatusCompleted PassStatus = "COMPLETED"

	// PassStatusFailed — все задачи выполнены, последняя неуспешно.
	PassStatusFailed PassStatus = "FAILED"

	// PassStatusCanceled — очередь прервана задачей.
	PassStatusCanceled PassStatus = "CANCELED"
)

// IsTerminal возвращает true, если статус финальный.
func (s PassStatus) IsTerminal() bool {
	switch s {
	case PassStatusCompleted, PassStatusFailed, PassStatusCanceled:
		return true
	default:
		return false
	}
}

// OK возвращает true только для COMPLETED.
func (s PassStatus) OK() bool {
	return s == PassStatusCompleted
}

// String возвращает строковое представление PassStatus.
func (s PassStatus) String() string {
	return string(s)
}

// ParsePassStatus парсит строку в PassStatus.
func ParsePassStatus(s string) PassStatus {
	switch s {
	case "RUNNING":
		return PassStatusRunning
	case "COMPLETED":
		return PassStatusCompleted
	case "FAILED":
		return PassStatusFailed
	case "CANCELED":
		return PassStatusCanceled
	default:
		return PassStatusPending
	}
}
