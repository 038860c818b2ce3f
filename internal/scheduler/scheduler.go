package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/shaiso/Rollout/internal/config"
	"github.com/shaiso/Rollout/internal/domain"
	"github.com/shaiso/Rollout/internal/telemetry"
)

// Ошибки планировщика.
var (
	// ErrInvalidSchedule — расписание без имени, очереди или с неверным cron.
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrDuplicateSchedule — два расписания с одним именем.
	ErrDuplicateSchedule = errors.New("duplicate schedule name")
)

// requestNamespace — пространство имён для детерминированных ID запросов.
var requestNamespace = uuid.MustParse("6f1c9a52-3e1b-4c55-9b8e-2a7d0c4e8f31")

// Dispatcher отправляет запрос на выполнение. Реализация: mq.Publisher.
type Dispatcher interface {
	PublishDeployRequested(ctx context.Context, req *domain.DeployRequest) error
}

// Leader определяет, может ли этот процесс запускать расписания.
// Без Leader каждый тик обрабатывается.
type Leader interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Config — конфигурация Scheduler.
type Config struct {
	Schedules  []config.Schedule
	Dispatcher Dispatcher
	Leader     Leader
	Now        func() time.Time
	Logger     *slog.Logger
}

type entry struct {
	def      config.Schedule
	schedule cron.Schedule
	loc      *time.Location
	next     time.Time
}

// Scheduler запускает очереди по cron-расписаниям из rollout.yaml.
type Scheduler struct {
	dispatcher Dispatcher
	leader     Leader
	now        func() time.Time
	logger     *slog.Logger

	mu      sync.Mutex
	entries []*entry
	leading bool
}

// New проверяет расписания и вычисляет первое время срабатывания.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Scheduler{
		dispatcher: cfg.Dispatcher,
		leader:     cfg.Leader,
		now:        cfg.Now,
		logger:     cfg.Logger,
	}

	now := cfg.Now()
	seen := make(map[string]bool, len(cfg.Schedules))
	for _, def := range cfg.Schedules {
		if def.Name == "" || len(def.Queue) == 0 {
			return nil, fmt.Errorf("%w: name and queue are required", ErrInvalidSchedule)
		}
		if seen[def.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSchedule, def.Name)
		}
		seen[def.Name] = true

		schedule, err := cronParser.Parse(def.Cron)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSchedule, def.Name, err)
		}
		loc := loadLocation(def.Timezone)
		s.entries = append(s.entries, &entry{
			def:      def,
			schedule: schedule,
			loc:      loc,
			next:     nextDue(schedule, loc, now),
		})
	}

	sort.Slice(s.entries, func(i, j int) bool {
		return s.entries[i].def.Name < s.entries[j].def.Name
	})
	return s, nil
}

// Names возвращает имена расписаний по алфавиту.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.def.Name
	}
	return names
}

// Next возвращает следующее время срабатывания расписания.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.def.Name == name {
			return e.next, true
		}
	}
	return time.Time{}, false
}

// Tick отправляет запросы для расписаний, время которых наступило.
//
// Ошибка одного расписания не блокирует остальные: сбой отправки
// логируется, а расписание переходит к следующему времени.
// Возвращает число отправленных запросов.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var dispatched, due int
	for _, e := range s.entries {
		if e.next.After(now) {
			continue
		}
		due++

		req := s.buildRequest(e)
		if err := s.dispatcher.PublishDeployRequested(ctx, req); err != nil {
			s.logger.Error("failed to dispatch scheduled request",
				"schedule_name", e.def.Name,
				"request_id", req.ID,
				"error", err,
			)
			telemetry.ScheduleTriggersTotal.WithLabelValues(e.def.Name, telemetry.StatusFailed).Inc()
		} else {
			s.logger.Info("dispatched scheduled request",
				"schedule_name", e.def.Name,
				"request_id", req.ID,
				"queue", req.Queue,
			)
			telemetry.ScheduleTriggersTotal.WithLabelValues(e.def.Name, telemetry.StatusSucceeded).Inc()
			dispatched++
		}

		// Пропущенные срабатывания не догоняются
		e.next = nextDue(e.schedule, e.loc, now)
	}

	if due > 0 {
		s.logger.Debug("scheduler tick completed", "due", due, "dispatched", dispatched)
	}
	return dispatched, ctx.Err()
}

// buildRequest создаёт запрос. ID зависит от имени и времени срабатывания,
// поэтому повторная отправка того же срабатывания даёт тот же ID.
func (s *Scheduler) buildRequest(e *entry) *domain.DeployRequest {
	req := domain.NewDeployRequest(e.def.Queue, e.def.Connections, domain.SourceSchedule)
	req.ID = uuid.NewSHA1(requestNamespace, fmt.Appendf(nil, "%s_%d", e.def.Name, e.next.Unix()))
	req.ScheduleName = e.def.Name
	for k, v := range e.def.Options {
		req.Options[k] = v
	}
	return req
}

// Run вызывает Tick с заданным интервалом до отмены контекста.
// С Leader тики выполняются только процессом, удерживающим лидерство.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	tk := time.NewTicker(interval)
	defer tk.Stop()
	defer s.resign()

	s.logger.Info("scheduler started", "schedules", s.Names(), "interval", interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			if !s.lead(ctx) {
				continue
			}
			if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("scheduler tick failed", "error", err)
			}
		}
	}
}

func (s *Scheduler) lead(ctx context.Context) bool {
	if s.leader == nil || s.leading {
		return true
	}
	ok, err := s.leader.Acquire(ctx)
	if err != nil {
		s.logger.Warn("leader lock failed", "error", err)
		return false
	}
	if ok {
		s.logger.Info("scheduler became leader")
	}
	s.leading = ok
	return ok
}

func (s *Scheduler) resign() {
	if s.leader == nil || !s.leading {
		return
	}
	if err := s.leader.Release(context.Background()); err != nil {
		s.logger.Warn("leader release failed", "error", err)
	}
	s.leading = false
}
