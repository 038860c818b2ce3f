// Rollout Agent — выполняет запросы деплоя из RabbitMQ.
//
// Agent:
//   - Получает запросы из deploys.requested и выполняет очередь
//   - Публикует итог в deploys.completed и отправляет webhook
//   - Запускает cron-расписания из rollout.yaml (один лидер на Postgres)
//   - Обслуживает HTTP API, /healthz и /metrics
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/shaiso/Rollout/internal/api"
	"github.com/shaiso/Rollout/internal/config"
	"github.com/shaiso/Rollout/internal/mq"
	"github.com/shaiso/Rollout/internal/remote"
	"github.com/shaiso/Rollout/internal/repo"
	"github.com/shaiso/Rollout/internal/scheduler"
	"github.com/shaiso/Rollout/internal/state"
	"github.com/shaiso/Rollout/internal/strategies"
	"github.com/shaiso/Rollout/internal/telemetry"
	"github.com/shaiso/Rollout/internal/worker"
)

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting rollout-agent")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfgPath := config.ResolvePath("")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	strats, err := strategies.FromConfig(cfg)
	if err != nil {
		logger.Error("invalid strategies", "error", err)
		os.Exit(1)
	}

	store, closeStore, err := state.Open(ctx, cfg.State, logger)
	if err != nil {
		logger.Error("failed to open state", "backend", cfg.State.Backend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	router := remote.NewRouter(cfg, logger)
	defer router.Close()

	// Postgres опционален: история проходов и лидерство расписаний
	var passes *repo.PassRepo
	var lock *repo.AdvisoryLock
	if cfg.State.DSN != "" {
		pool, err := repo.NewPool(ctx, cfg.State.DSN)
		if err != nil {
			logger.Warn("database not available, history disabled", "error", err)
		} else {
			defer pool.Close()
			passes = repo.NewPassRepo(pool)
			if err := passes.EnsureSchema(ctx); err != nil {
				logger.Warn("failed to ensure history schema", "error", err)
			}
			lock = repo.NewAdvisoryLock(pool, repo.SchedulerLockKey)
			logger.Info("database connected")
		}
	}

	// RabbitMQ
	mqConn, err := mq.NewConnection(cfg.Broker.URL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}
	publisher := mq.NewPublisher(mqConn, logger)

	wcfg := worker.Config{
		Config:     cfg,
		Strategies: strats,
		Connector:  router,
		Store:      store,
		Publisher:  publisher,
		Conn:       mqConn,
		Concurrent: os.Getenv("AGENT_CONCURRENT") == "true",
		Logger:     logger,
	}
	if passes != nil {
		wcfg.Recorder = passes
	}
	if n := worker.NewWebhookNotifier(cfg.Notifications); n != nil {
		wcfg.Notifier = n
	}

	w := worker.New(wcfg)
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// Расписания
	scfg := scheduler.Config{
		Schedules:  cfg.Schedules,
		Dispatcher: publisher,
		Logger:     logger,
	}
	if lock != nil {
		scfg.Leader = lock
	}
	sched, err := scheduler.New(scfg)
	if err != nil {
		logger.Error("invalid schedules", "error", err)
		os.Exit(1)
	}
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Run(ctx, time.Second)
	}()

	// HTTP API
	acfg := api.Config{
		Dispatcher:  publisher,
		Schedules:   sched,
		Connections: connectionNames(cfg),
		Logger:      logger,
	}
	if passes != nil {
		acfg.Passes = passes
	}
	mux := http.NewServeMux()
	api.NewHandler(acfg).RegisterRoutes(mux)

	port := 8083
	if v := os.Getenv("AGENT_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			port = p
		}
	}
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	<-schedDone
	w.Stop()
	logger.Info("rollout-agent stopped")
}

func connectionNames(cfg *config.Config) []string {
	names := make([]string, 0, len(cfg.Connections))
	for name := range cfg.Connections {
		names = append(names, name)
	}
	return names
}
