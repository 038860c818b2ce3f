package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Rollout/internal/config"
	"github.com/shaiso/Rollout/internal/domain"
	"github.com/shaiso/Rollout/internal/mq"
	"github.com/shaiso/Rollout/internal/queue"
	"github.com/shaiso/Rollout/internal/remote"
	"github.com/shaiso/Rollout/internal/state"
	"github.com/shaiso/Rollout/internal/strategies"
	"github.com/shaiso/Rollout/internal/tasks"
)

// OutcomePublisher публикует итог запроса в брокер.
type OutcomePublisher interface {
	PublishDeployCompleted(ctx context.Context, outcome domain.DeployOutcome) error
}

// Worker — агент деплоя.
//
// Потребляет deploys.requested, выполняет очередь на матрице соединений
// и публикует итог в deploys.completed. Запросы выполняются строго по одному.
type Worker struct {
	cfg    Config
	logger *slog.Logger

	// run сериализует выполнение запросов.
	run sync.Mutex

	consumer   *mq.Consumer
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	Config     *config.Config
	Registry   *tasks.Registry
	Strategies *strategies.Registry
	Connector  remote.Connector
	Store      state.Store

	// Recorder — история проходов, опционально.
	Recorder queue.Recorder

	// Publisher — куда публикуется итог. Nil — итог только логируется.
	Publisher OutcomePublisher

	// Notifier — webhook, опционально.
	Notifier Notifier

	// Conn — соединение с RabbitMQ для consumer.
	Conn *mq.Connection

	// Concurrent — проходы разных соединений выполняются одновременно.
	Concurrent bool

	// Retry — политика повторов публикации итога и уведомлений.
	Retry RetryPolicy

	Now    func() time.Time
	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Registry == nil {
		cfg.Registry = tasks.DefaultRegistry()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}

	return &Worker{
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// Start запускает consumer deploys.requested.
func (w *Worker) Start(ctx context.Context) error {
	if w.cfg.Conn == nil {
		return errors.New("worker requires a broker connection")
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.consumer = mq.NewConsumer(w.cfg.Conn, w.logger, mq.ConsumerConfig{
		Queue:    mq.QueueDeploysRequested,
		Handler:  w.handleDeployRequested,
		Prefetch: 1,
	})

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("request consumer error", "error", err)
		}
	}()

	w.logger.Info("worker started", "queue", mq.QueueDeploysRequested)
	return nil
}

// Stop останавливает Worker и ждёт текущий запрос.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	if w.consumer != nil {
		w.consumer.Stop()
	}
	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}
