package tasks

import (
	"context"
	"fmt"
)

// Task — единица работы очереди.
type Task interface {
	// Name возвращает имя задачи для логов и сообщений об отмене.
	Name() string

	// Description возвращает краткое описание.
	Description() string

	// Execute выполняет задачу на соединении из tc.
	Execute(ctx context.Context, tc *Context) (Result, error)
}

// Result — результат выполнения задачи.
type Result struct {
	Output string
	Failed bool
}

// OK сообщает, что очередь может продолжаться.
func (r Result) OK() bool {
	return !r.Failed
}

// Success возвращает успешный результат.
func Success(output string) Result {
	return Result{Output: output}
}

// Failure возвращает неуспешный результат.
func Failure(format string, args ...any) Result {
	return Result{Output: fmt.Sprintf(format, args...), Failed: true}
}

// Runner запускает задачу по имени в контексте вызывающей задачи.
type Runner interface {
	ExecuteTask(ctx context.Context, tc *Context, name string) (Result, error)
}

// CommandTask выполняет shell-команду на соединении.
type CommandTask struct {
	Command string
}

// NewCommandTask создаёт CommandTask.
func NewCommandTask(command string) *CommandTask {
	return &CommandTask{Command: command}
}

func (t *CommandTask) Name() string        { return t.Command }
func (t *CommandTask) Description() string { return "Run: " + t.Command }

// Execute выполняет команду. Ненулевой код завершения — Failed.
func (t *CommandTask) Execute(ctx context.Context, tc *Context) (Result, error) {
	res, err := tc.Run(ctx, t.Command)
	if err != nil {
		return Result{Output: res.Output, Failed: true}, err
	}
	return Result{Output: res.Output, Failed: !res.Success}, nil
}

// Callback — пользовательская функция, исполняемая как задача.
type Callback func(ctx context.Context, tc *Context) (Result, error)

// CallbackTask оборачивает Callback.
type CallbackTask struct {
	Label string
	Fn    Callback
}

// NewCallbackTask создаёт CallbackTask. Пустой label заменяется на "Closure".
func NewCallbackTask(label string, fn Callback) *CallbackTask {
	if label == "" {
		label = "Closure"
	}
	return &CallbackTask{Label: label, Fn: fn}
}

func (t *CallbackTask) Name() string        { return t.Label }
func (t *CallbackTask) Description() string { return "Callback " + t.Label }

// Execute вызывает функцию.
func (t *CallbackTask) Execute(ctx context.Context, tc *Context) (Result, error) {
	return t.Fn(ctx, tc)
}

var (
	_ Task = (*CommandTask)(nil)
	_ Task = (*CallbackTask)(nil)
)
