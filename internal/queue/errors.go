package queue

import (
	"errors"
	"fmt"
)

// Ошибки планировщика.
var (
	// ErrTaskFailed — последняя задача прохода завершилась неуспешно.
	ErrTaskFailed = errors.New("task failed")

	// ErrCommandFailed — команда параллельного движка завершилась неуспешно.
	ErrCommandFailed = errors.New("command failed")

	// ErrEmptyEntry — пустой элемент очереди.
	ErrEmptyEntry = errors.New("empty queue entry")
)

// CanceledError — очередь прохода прервана задачей.
type CanceledError struct {
	// Task — имя задачи, вернувшей неуспех.
	Task string

	// Cause — ошибка задачи, если она была.
	Cause error
}

func (e *CanceledError) Error() string {
	return fmt.Sprintf("the tasks queue was canceled by task %q", e.Task)
}

func (e *CanceledError) Unwrap() error {
	return e.Cause
}
