package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/shaiso/Integrator/internal/domain"
)

const (
	defaultSyncInterval = 30 * time.Second

	// TriggerByPrefix — triggerBy для автоматических runs: "schedule:<name>".
	TriggerByPrefix = "schedule:"
)

// Trigger запускает procedure по расписанию.
type Trigger interface {
	AutomaticTrigger(ctx context.Context, input domain.Input, triggerBy string) error
}

// TriggerFunc — адаптер функции к Trigger.
type TriggerFunc func(ctx context.Context, input domain.Input, triggerBy string) error

// AutomaticTrigger вызывает f.
func (f TriggerFunc) AutomaticTrigger(ctx context.Context, input domain.Input, triggerBy string) error {
	return f(ctx, input, triggerBy)
}

// ScheduleSource — источник включённых расписаний.
type ScheduleSource interface {
	ListEnabled(ctx context.Context) ([]domain.ScheduleConfig, error)
}

type entry struct {
	id          cron.EntryID
	fingerprint string
}

// Scheduler — cron-планировщик расписаний.
//
// Периодически (Sync) сверяет набор включённых расписаний с
// зарегистрированными cron-задачами: новые добавляет, изменённые
// перерегистрирует, удалённые и выключенные снимает. При срабатывании
// вызывает Trigger с input расписания.
type Scheduler struct {
	source       ScheduleSource
	trigger      Trigger
	cron         *cron.Cron
	syncInterval time.Duration
	logger       *slog.Logger

	mu      sync.Mutex
	entries map[uuid.UUID]entry
	baseCtx context.Context
}

// Config — конфигурация Scheduler.
type Config struct {
	Source  ScheduleSource
	Trigger Trigger

	// SyncInterval — период перечитывания расписаний (default: 30s).
	SyncInterval time.Duration

	// Location — часовой пояс cron-выражений (default: UTC).
	Location *time.Location

	Logger *slog.Logger
}

// New создаёт Scheduler.
func New(cfg Config) *Scheduler {
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = defaultSyncInterval
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With("component", "scheduler")
	cronLogger := slogCronLogger{logger: logger}

	return &Scheduler{
		source:  cfg.Source,
		trigger: cfg.Trigger,
		cron: cron.New(
			cron.WithParser(cronParser),
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		syncInterval: cfg.SyncInterval,
		logger:       logger,
		entries:      make(map[uuid.UUID]entry),
		baseCtx:      context.Background(),
	}
}

// Run запускает cron и периодическую синхронизацию.
// Блокируется до отмены ctx, затем дожидается текущих срабатываний.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	if err := s.Sync(ctx); err != nil {
		s.logger.Error("initial schedule sync failed", "error", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "sync_interval", s.syncInterval)

	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			<-s.cron.Stop().Done()
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			if err := s.Sync(ctx); err != nil {
				s.logger.Error("schedule sync failed", "error", err)
			}
		}
	}
}

// Sync приводит cron-задачи в соответствие с включёнными расписаниями.
func (s *Scheduler) Sync(ctx context.Context) error {
	schedules, err := s.source.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("list enabled schedules: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[uuid.UUID]struct{}, len(schedules))
	var added, updated, removed int

	// 1. Новые и изменённые
	for i := range schedules {
		sched := schedules[i]
		seen[sched.ID] = struct{}{}

		fp := fingerprint(&sched)
		current, exists := s.entries[sched.ID]
		if exists && current.fingerprint == fp {
			continue
		}
		if exists {
			s.cron.Remove(current.id)
		}

		id, err := s.cron.AddFunc(sched.CronExpression, s.fireFunc(sched))
		if err != nil {
			delete(s.entries, sched.ID)
			s.logger.Warn("skipping schedule with invalid cron expression",
				"schedule_id", sched.ID,
				"schedule_name", sched.Name,
				"cron", sched.CronExpression,
				"error", err,
			)
			continue
		}
		s.entries[sched.ID] = entry{id: id, fingerprint: fp}

		if exists {
			updated++
		} else {
			added++
		}
	}

	// 2. Удалённые и выключенные
	for id, e := range s.entries {
		if _, ok := seen[id]; !ok {
			s.cron.Remove(e.id)
			delete(s.entries, id)
			removed++
		}
	}

	if added+updated+removed > 0 {
		s.logger.Info("schedules synced",
			"active", len(s.entries),
			"added", added,
			"updated", updated,
			"removed", removed,
		)
	}
	return nil
}

// Entries возвращает количество зарегистрированных расписаний.
func (s *Scheduler) Entries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// NextRun возвращает следующее срабатывание расписания.
func (s *Scheduler) NextRun(id uuid.UUID) (time.Time, bool) {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(e.id).Next, true
}

// fireFunc возвращает задачу cron для расписания.
func (s *Scheduler) fireFunc(sched domain.ScheduleConfig) func() {
	return func() {
		s.fire(sched)
	}
}

// fire вызывает Trigger. Ошибки только логируются.
func (s *Scheduler) fire(sched domain.ScheduleConfig) {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()

	triggerBy := TriggerByPrefix + sched.Name
	if err := s.trigger.AutomaticTrigger(ctx, sched.Input.Clone(), triggerBy); err != nil {
		s.logger.Error("schedule trigger failed",
			"schedule_id", sched.ID,
			"schedule_name", sched.Name,
			"error", err,
		)
		return
	}

	s.logger.Info("schedule fired",
		"schedule_id", sched.ID,
		"schedule_name", sched.Name,
		"procedure_id", sched.Input.ProcedureID(),
		"product", sched.Input.Product(),
	)
}

// fingerprint меняется при любом изменении, влияющем на запуск.
func fingerprint(s *domain.ScheduleConfig) string {
	input, _ := json.Marshal(s.Input)
	return s.Name + "\x00" + s.CronExpression + "\x00" + string(input)
}

// slogCronLogger — cron.Logger поверх slog.
type slogCronLogger struct {
	logger *slog.Logger
}

func (l slogCronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l slogCronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
