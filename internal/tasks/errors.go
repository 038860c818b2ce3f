package tasks

import "errors"

// Ошибки задач.
var (
	// ErrUnknownTask — задача не зарегистрирована.
	ErrUnknownTask = errors.New("unknown task")

	// ErrNoRunner — Context создан без Runner, вложенные задачи недоступны.
	ErrNoRunner = errors.New("task runner not configured")
)
