package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/Rollout/internal/domain"
	"github.com/shaiso/Rollout/internal/mq"
	"github.com/shaiso/Rollout/internal/queue"
	"github.com/shaiso/Rollout/internal/telemetry"
)

// handleDeployRequested обрабатывает сообщение из deploys.requested.
//
// Выполненный запрос всегда подтверждается, даже неуспешный:
// повторная доставка означала бы повторный деплой.
func (w *Worker) handleDeployRequested(ctx context.Context, delivery *mq.Delivery) error {
	if w.IsStopped() {
		return ErrWorkerStopped
	}

	req, err := mq.ParsePayload[domain.DeployRequest](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse deploy.requested payload", "error", err)
		return err
	}

	outcome := w.Process(ctx, &req)
	w.deliver(ctx, outcome)
	return nil
}

// Process выполняет запрос и возвращает итог.
func (w *Worker) Process(ctx context.Context, req *domain.DeployRequest) domain.DeployOutcome {
	w.run.Lock()
	defer w.run.Unlock()

	logger := telemetry.WithRequestID(w.logger, req.ID.String())
	outcome := domain.DeployOutcome{RequestID: req.ID}

	finish := func(status string) domain.DeployOutcome {
		outcome.FinishedAt = w.cfg.Now()
		telemetry.RequestsTotal.WithLabelValues(req.Source, status).Inc()
		return outcome
	}

	if len(req.Queue) == 0 {
		outcome.Error = fmt.Errorf("%w: empty queue", ErrInvalidRequest).Error()
		logger.Warn("deploy request rejected", "error", outcome.Error)
		return finish(telemetry.StatusFailed)
	}

	connections := req.Connections
	if len(connections) == 0 {
		connections = w.cfg.Config.DefaultConnections()
	}

	logger.Info("deploy request started",
		"queue", req.Queue,
		"connections", connections,
		"stage", req.Stage,
		"source", req.Source,
	)

	requestID := req.ID
	sched := queue.New(queue.Config{
		Config:     w.cfg.Config,
		Registry:   w.cfg.Registry,
		Strategies: w.cfg.Strategies,
		Connector:  w.cfg.Connector,
		Store:      w.cfg.Store,
		Options:    req.Options,
		Stage:      req.Stage,
		Concurrent: w.cfg.Concurrent,
		Recorder:   w.cfg.Recorder,
		RequestID:  &requestID,
		Now:        w.cfg.Now,
		Logger:     logger,
	})

	report, err := sched.On(ctx, connections, queue.ParseAll(w.cfg.Registry, req.Queue))
	if err != nil {
		outcome.Error = fmt.Errorf("%w: %v", ErrInvalidRequest, err).Error()
		logger.Warn("deploy request rejected", "error", err)
		return finish(telemetry.StatusFailed)
	}

	outcome.Passes = report.Records()
	outcome.Succeeded = report.OK()
	if !outcome.Succeeded {
		failed := report.Failed()
		if err := failed[0].Err; err != nil {
			outcome.Error = err.Error()
		}
		logger.Warn("deploy request failed", "failed_passes", len(failed), "error", outcome.Error)
		return finish(telemetry.StatusFailed)
	}

	logger.Info("deploy request succeeded", "passes", len(outcome.Passes))
	return finish(telemetry.StatusSucceeded)
}

// deliver публикует итог и отправляет уведомление. Ошибки только логируются.
func (w *Worker) deliver(ctx context.Context, outcome domain.DeployOutcome) {
	ctx = context.WithoutCancel(ctx)
	logger := telemetry.WithRequestID(w.logger, outcome.RequestID.String())

	if w.cfg.Publisher != nil {
		err := w.withRetry(ctx, "publish outcome", func(ctx context.Context) error {
			return w.cfg.Publisher.PublishDeployCompleted(ctx, outcome)
		})
		if err != nil {
			logger.Warn("failed to publish deploy.completed", "error", err)
		}
	} else {
		logger.Warn("publisher not available, skipping deploy.completed publish")
	}

	if w.cfg.Notifier != nil {
		err := w.withRetry(ctx, "notify", func(ctx context.Context) error {
			return w.cfg.Notifier.Notify(ctx, outcome)
		})
		if err != nil {
			logger.Warn("failed to send notification", "error", err)
		}
	}
}

// RetryPolicy — политика повторов.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// Backoff — "exponential" или "fixed".
	Backoff string
}

// DefaultRetryPolicy — три попытки с экспоненциальной задержкой от секунды.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Backoff:      "exponential",
	}
}

// withRetry выполняет fn до успеха или исчерпания попыток.
func (w *Worker) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	policy := w.cfg.Retry

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
		if attempt == policy.MaxAttempts {
			break
		}

		delay := calculateBackoff(attempt, policy)
		w.logger.Debug("retrying", "op", op, "attempt", attempt, "delay", delay, "error", lastErr)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return errors.Join(lastErr, ctx.Err())
		}
	}
	return fmt.Errorf("%w: %s: %w", ErrRetryExhausted, op, lastErr)
}

// calculateBackoff вычисляет задержку перед попыткой attempt+1.
func calculateBackoff(attempt int, policy RetryPolicy) time.Duration {
	initialDelay := policy.InitialDelay
	if initialDelay <= 0 {
		initialDelay = time.Second
	}
	maxDelay := policy.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	delay := initialDelay
	if policy.Backoff == "exponential" {
		// delay = initialDelay * 2^(attempt-1)
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay > maxDelay {
				break
			}
		}
	}
	return min(delay, maxDelay)
}
