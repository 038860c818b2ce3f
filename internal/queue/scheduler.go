package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Rollout/internal/config"
	"github.com/shaiso/Rollout/internal/domain"
	"github.com/shaiso/Rollout/internal/releases"
	"github.com/shaiso/Rollout/internal/remote"
	"github.com/shaiso/Rollout/internal/state"
	"github.com/shaiso/Rollout/internal/strategies"
	"github.com/shaiso/Rollout/internal/tasks"
	"github.com/shaiso/Rollout/internal/telemetry"
)

// Recorder сохраняет историю проходов.
type Recorder interface {
	RecordPass(ctx context.Context, pass *domain.Pass) error
}

// Config — зависимости планировщика.
type Config struct {
	// Config обязателен: из него берутся соединения, stages и options.
	Config     *config.Config
	Registry   *tasks.Registry
	Strategies *strategies.Registry
	Connector  remote.Connector
	Store      state.Store

	// Options перекрывают options из конфигурации.
	Options map[string]any

	// Stage ограничивает матрицу одним stage.
	Stage string

	// Concurrent — проходы разных соединений выполняются одновременно.
	Concurrent bool

	// Recorder — необязательная история проходов.
	Recorder Recorder

	// RequestID связывает проходы с запросом деплоя.
	RequestID *uuid.UUID

	// Now — часы для генерации timestamp релизов.
	Now func() time.Time

	Logger *slog.Logger
}

// Scheduler строит очереди задач и выполняет их на матрице.
type Scheduler struct {
	cfg     Config
	options tasks.Options
	logger  *slog.Logger

	mu       sync.RWMutex
	parallel ParallelEngine
}

// New создаёт Scheduler.
func New(cfg Config) *Scheduler {
	if cfg.Registry == nil {
		cfg.Registry = tasks.DefaultRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Scheduler{
		cfg:     cfg,
		options: tasks.MergeOptions(cfg.Config.Options, cfg.Options),
		logger:  cfg.Logger,
	}
}

// Options возвращает итоговые опции задач.
func (s *Scheduler) Options() tasks.Options {
	return s.options
}

// SetParallel задаёт движок для Execute в режиме parallel.
func (s *Scheduler) SetParallel(engine ParallelEngine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parallel = engine
}

// BuildTaskFromClass создаёт зарегистрированную задачу по имени.
func (s *Scheduler) BuildTaskFromClass(name string) (tasks.Task, error) {
	return s.cfg.Registry.Build(name)
}

// BuildTaskFromClosure оборачивает команду или функцию в задачу.
func (s *Scheduler) BuildTaskFromClosure(entry Entry) (tasks.Task, error) {
	switch entry.kind {
	case KindCommand:
		if entry.text == "" {
			return nil, ErrEmptyEntry
		}
		return tasks.NewCommandTask(entry.text), nil
	case KindFunc:
		if entry.fn == nil {
			return nil, ErrEmptyEntry
		}
		return tasks.NewCallbackTask(entry.label, entry.fn), nil
	default:
		return nil, fmt.Errorf("%w: %s is not a closure", ErrEmptyEntry, entry.kind)
	}
}

// BuildQueue превращает элементы в задачи с сохранением порядка.
func (s *Scheduler) BuildQueue(entries []Entry) ([]tasks.Task, error) {
	out := make([]tasks.Task, 0, len(entries))
	for i, entry := range entries {
		var (
			task tasks.Task
			err  error
		)
		if entry.kind == KindTask {
			task, err = s.BuildTaskFromClass(entry.text)
		} else {
			task, err = s.BuildTaskFromClosure(entry)
		}
		if err != nil {
			return nil, fmt.Errorf("queue entry %d: %w", i, err)
		}
		out = append(out, task)
	}
	return out, nil
}

// Matrix разворачивает соединения в проходы: соединения снаружи, stages внутри.
func (s *Scheduler) Matrix(connections []string) []Pass {
	var out []Pass
	for _, conn := range connections {
		stages := []string{""}
		switch {
		case s.cfg.Stage != "":
			stages = []string{s.cfg.Stage}
		default:
			if list := s.cfg.Config.StagesFor(conn); len(list) > 0 {
				stages = list
			}
		}
		for _, stage := range stages {
			out = append(out, Pass{Connection: conn, Stage: stage})
		}
	}
	return out
}

// Run выполняет очередь на соединениях по умолчанию.
func (s *Scheduler) Run(ctx context.Context, entries []Entry) (*Report, error) {
	return s.On(ctx, s.cfg.Config.DefaultConnections(), entries)
}

// On выполняет очередь на указанных соединениях.
//
// Ошибка возвращается только до начала выполнения: неизвестное соединение
// или задача. Сбои задач отражаются в Report.
func (s *Scheduler) On(ctx context.Context, connections []string, entries []Entry) (*Report, error) {
	for _, conn := range connections {
		if _, err := s.cfg.Config.Connection(conn); err != nil {
			return nil, err
		}
	}

	queue, err := s.BuildQueue(entries)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(queue))
	for i, task := range queue {
		names[i] = task.Name()
	}

	matrix := s.Matrix(connections)
	results := make([]PassResult, len(matrix))

	if !s.cfg.Concurrent {
		for i, pass := range matrix {
			results[i] = s.runPass(ctx, pass, entries, names)
		}
		return &Report{Passes: results}, nil
	}

	// Индексы проходов по соединениям, в порядке матрицы
	byConn := make(map[string][]int)
	var order []string
	for i, pass := range matrix {
		if _, ok := byConn[pass.Connection]; !ok {
			order = append(order, pass.Connection)
		}
		byConn[pass.Connection] = append(byConn[pass.Connection], i)
	}

	var g errgroup.Group
	for _, conn := range order {
		indices := byConn[conn]
		g.Go(func() error {
			for _, i := range indices {
				results[i] = s.runPass(ctx, matrix[i], entries, names)
			}
			return nil
		})
	}
	_ = g.Wait()

	return &Report{Passes: results}, nil
}

// runPass выполняет очередь на одной ячейке матрицы.
func (s *Scheduler) runPass(ctx context.Context, pass Pass, entries []Entry, names []string) PassResult {
	logger := telemetry.WithStage(telemetry.WithConnection(s.logger, pass.Connection), pass.Stage)

	record := domain.NewPass(pass.Connection, pass.Stage, names)
	record.RequestID = s.cfg.RequestID
	result := PassResult{Pass: pass, Record: record}

	// Свежие экземпляры задач на каждый проход
	queue, err := s.BuildQueue(entries)
	if err != nil {
		record.MarkFailed(err.Error())
		return s.finishPass(ctx, logger, result, err)
	}

	tc := s.newContext(pass, logger)

	record.MarkRunning()
	logger.Info("queue started", "tasks", len(queue))

	for i, task := range queue {
		if err := ctx.Err(); err != nil {
			record.MarkCanceled(task.Name(), err.Error())
			result.CanceledBy = task.Name()
			return s.finishPass(ctx, logger, result, err)
		}

		res, taskErr := s.runTask(ctx, tc, task)
		record.Executed++
		record.Output = res.Output
		result.Outputs = append(result.Outputs, res.Output)

		if taskErr == nil && res.OK() {
			continue
		}

		result.CanceledBy = task.Name()
		if i < len(queue)-1 {
			cancelErr := &CanceledError{Task: task.Name(), Cause: taskErr}
			logger.Error(cancelErr.Error(), "output", res.Output, "error", taskErr)
			telemetry.QueueCancellationsTotal.WithLabelValues(task.Name()).Inc()
			record.MarkCanceled(task.Name(), cancelErr.Error())
			return s.finishPass(ctx, logger, result, cancelErr)
		}

		failErr := fmt.Errorf("%w: %s", ErrTaskFailed, task.Name())
		if taskErr != nil {
			failErr = fmt.Errorf("%w: %s: %w", ErrTaskFailed, task.Name(), taskErr)
		}
		logger.Error("last task of the queue failed", "task", task.Name(), "output", res.Output, "error", taskErr)
		record.MarkFailed(failErr.Error())
		return s.finishPass(ctx, logger, result, failErr)
	}

	record.MarkCompleted()
	return s.finishPass(ctx, logger, result, nil)
}

func (s *Scheduler) finishPass(ctx context.Context, logger *slog.Logger, result PassResult, err error) PassResult {
	result.Err = err
	result.Status = result.Record.Status

	status := telemetry.StatusSucceeded
	switch result.Status {
	case domain.PassStatusCanceled:
		status = telemetry.StatusCanceled
	case domain.PassStatusFailed:
		status = telemetry.StatusFailed
	}
	telemetry.PassesTotal.WithLabelValues(result.Connection, result.Stage, status).Inc()

	if s.cfg.Recorder != nil {
		// Запись истории не должна зависеть от отмены прохода
		recCtx := context.WithoutCancel(ctx)
		if recErr := s.cfg.Recorder.RecordPass(recCtx, result.Record); recErr != nil {
			logger.Warn("failed to record pass", "error", recErr)
		}
	}

	logger.Info("queue finished",
		"status", result.Status,
		"executed", result.Record.Executed,
		"duration", result.Record.Duration(),
	)
	return result
}

func (s *Scheduler) newContext(pass Pass, logger *slog.Logger) *tasks.Context {
	cfg := s.cfg.Config
	manager := releases.New(releases.Config{
		Handle:       pass.Handle(),
		Connection:   pass.Connection,
		Root:         cfg.RootFor(pass.Connection, pass.Stage),
		Store:        s.cfg.Store,
		Connector:    s.cfg.Connector,
		Placeholders: cfg.Paths,
		Now:          s.cfg.Now,
		Logger:       logger,
	})

	return &tasks.Context{
		Connection: pass.Connection,
		Stage:      pass.Stage,
		Options:    s.options,
		Logger:     logger,
		Config:     cfg,
		Connector:  s.cfg.Connector,
		Releases:   manager,
		Strategies: s.cfg.Strategies,
		Runner:     s,
	}
}

// runTask выполняет задачу с логгером задачи и метриками.
func (s *Scheduler) runTask(ctx context.Context, tc *tasks.Context, task tasks.Task) (tasks.Result, error) {
	child := *tc
	child.Logger = telemetry.WithTask(tc.Logger, task.Name())

	child.Logger.Info("running task", "description", task.Description())
	start := time.Now()

	res, err := task.Execute(ctx, &child)

	telemetry.TaskDuration.WithLabelValues(task.Name()).Observe(time.Since(start).Seconds())
	status := telemetry.StatusSucceeded
	if err != nil || !res.OK() {
		status = telemetry.StatusFailed
	}
	telemetry.TasksTotal.WithLabelValues(task.Name(), status).Inc()

	child.Logger.Debug("task finished", "status", status, "duration", time.Since(start))
	return res, err
}

// ExecuteTask запускает задачу по имени в контексте вызывающей задачи.
func (s *Scheduler) ExecuteTask(ctx context.Context, tc *tasks.Context, name string) (tasks.Result, error) {
	task, err := s.BuildTaskFromClass(name)
	if err != nil {
		return tasks.Result{Failed: true}, err
	}
	return s.runTask(ctx, tc, task)
}

// Execute выполняет плоский список команд на соединении по умолчанию.
//
// С опцией parallel весь список одним вызовом передаётся ParallelEngine.
// Иначе команды выполняются по одной до первого неуспеха.
// Ошибка возвращается при сбое транспорта или движка.
func (s *Scheduler) Execute(ctx context.Context, commands []string) (bool, error) {
	connections := s.cfg.Config.DefaultConnections()
	if len(connections) == 0 {
		return false, config.ErrNoConnections
	}
	connection := connections[0]

	if s.options.Bool(tasks.OptParallel) {
		engine := s.engine(connection)
		if err := engine.Run(ctx, commands); err != nil {
			s.logger.Error("parallel execution failed", "commands", len(commands), "error", err)
			return false, err
		}
		return true, nil
	}

	for _, cmd := range commands {
		res, err := s.cfg.Connector.Run(ctx, connection, cmd)
		if err != nil {
			return false, fmt.Errorf("execute %q on %s: %w", cmd, connection, err)
		}
		if !res.Success {
			s.logger.Error("command failed", "connection", connection, "command", cmd, "output", res.Output)
			return false, nil
		}
	}
	return true, nil
}

func (s *Scheduler) engine(connection string) ParallelEngine {
	s.mu.RLock()
	engine := s.parallel
	s.mu.RUnlock()

	if engine != nil {
		return engine
	}
	return NewCommandPool(s.cfg.Connector, connection, s.cfg.Config.ParallelLimit, s.logger)
}

var _ tasks.Runner = (*Scheduler)(nil)

// IsCanceled сообщает, что проход прерван задачей.
func IsCanceled(err error) bool {
	var ce *CanceledError
	return errors.As(err, &ce)
}
