package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Статусы для label "status".
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

// PassesTotal — количество проходов очереди по парам (connection, stage).
var PassesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rollout_passes_total",
		Help: "Total queue passes by connection, stage and outcome",
	},
	[]string{"connection", "stage", "status"},
)

// TasksTotal — количество выполненных задач.
var TasksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rollout_tasks_total",
		Help: "Total tasks executed by name and outcome",
	},
	[]string{"task", "status"},
)

// TaskDuration — длительность выполнения задачи.
var TaskDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "rollout_task_duration_seconds",
		Help:    "Task execution time",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"task"},
)

// QueueCancellationsTotal — сколько раз очередь была отменена задачей.
var QueueCancellationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rollout_queue_cancellations_total",
		Help: "Total queue cancellations by the canceling task",
	},
	[]string{"task"},
)

// ReleasesCreatedTotal — количество созданных релизов.
var ReleasesCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rollout_releases_created_total",
		Help: "Total releases allocated",
	},
	[]string{"connection"},
)

// RollbacksTotal — количество откатов.
var RollbacksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rollout_rollbacks_total",
		Help: "Total rollbacks performed",
	},
	[]string{"connection"},
)

// ParallelCommandsTotal — команды, отправленные через параллельный движок.
var ParallelCommandsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rollout_parallel_commands_total",
		Help: "Total commands dispatched through the parallel engine",
	},
	[]string{"status"},
)

// RequestsTotal — запросы деплоя, обработанные агентом.
var RequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rollout_requests_total",
		Help: "Total deploy requests processed by the agent",
	},
	[]string{"source", "status"},
)

// ScheduleTriggersTotal — срабатывания cron-расписаний.
var ScheduleTriggersTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rollout_schedule_triggers_total",
		Help: "Total schedule triggers by schedule name and outcome",
	},
	[]string{"schedule", "status"},
)
