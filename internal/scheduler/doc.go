// Package scheduler запускает очереди задач по cron-расписаниям.
//
// Расписания описываются в секции schedules файла rollout.yaml.
// На каждое срабатывание создаётся DeployRequest с Source = schedule,
// который отправляется в брокер и выполняется агентом.
//
// Структура:
//   - scheduler.go — Scheduler (Tick, Run, лидерство)
//   - cron.go      — разбор cron-выражений и timezone
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Schedules:  cfg.Schedules,
//	    Dispatcher: publisher,
//	    Leader:     repo.NewAdvisoryLock(pool, repo.SchedulerLockKey),
//	    Logger:     logger,
//	})
//	go sched.Run(ctx, time.Second)
//
// Leader Election:
//
// При нескольких агентах расписания запускает только владелец
// pg_try_advisory_lock. Без Postgres Leader не задаётся и тикает каждый агент.
package scheduler
