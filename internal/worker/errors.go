package worker

import "errors"

// Ошибки агента.
var (
	// ErrInvalidRequest — запрос нельзя выполнить: пустая очередь, неизвестная задача или соединение.
	ErrInvalidRequest = errors.New("invalid deploy request")

	// ErrWorkerStopped — агент остановлен.
	ErrWorkerStopped = errors.New("worker stopped")

	// ErrNotifyFailed — webhook не принял итог.
	ErrNotifyFailed = errors.New("notification failed")

	// ErrRetryExhausted — все попытки исчерпаны.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
)
