package runmanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Integrator/internal/domain"
	"github.com/shaiso/Integrator/internal/engine"
	"github.com/shaiso/Integrator/internal/repo"
	"github.com/shaiso/Integrator/internal/telemetry"
)

// RecoveryMessage — строка лога для runs, прерванных рестартом.
const RecoveryMessage = "Service was restarted, execution interrupted"

// RunStore — хранилище run records.
type RunStore interface {
	Create(ctx context.Context, run *domain.RunRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.RunRecord, error)
	Update(ctx context.Context, run *domain.RunRecord) error
	List(ctx context.Context, page domain.Page) (domain.PageResult[domain.RunRecord], error)
	ListByStatus(ctx context.Context, statuses ...domain.RunStatus) ([]domain.RunRecord, error)
}

// ScheduleStore — хранилище расписаний.
type ScheduleStore interface {
	Create(ctx context.Context, s *domain.ScheduleConfig) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduleConfig, error)
	Update(ctx context.Context, s *domain.ScheduleConfig) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, page domain.Page) (domain.PageResult[domain.ScheduleConfig], error)
}

// Executor выполняет procedure (engine.Engine).
type Executor interface {
	Execute(ctx context.Context, p engine.Params, emit engine.LogFunc) error
}

// Notifier получает завершённые runs (например, публикация в MQ).
type Notifier interface {
	RunFinished(ctx context.Context, run *domain.RunRecord) error
}

// task — фоновое выполнение одного run.
type task struct {
	runID uuid.UUID
	done  chan struct{}
}

// Manager — RunManager: trigger, фоновое выполнение, recovery, расписания.
type Manager struct {
	runs      RunStore
	schedules ScheduleStore
	engine    Executor
	notifier  Notifier
	now       func() time.Time
	logger    *slog.Logger

	mu      sync.Mutex
	tasks   map[uuid.UUID]*task
	stopped bool
	wg      sync.WaitGroup
}

// Config — конфигурация Manager.
type Config struct {
	Runs      RunStore
	Schedules ScheduleStore
	Engine    Executor

	// Notifier — опционально.
	Notifier Notifier

	// Now — источник времени (default: time.Now в UTC).
	Now func() time.Time

	Logger *slog.Logger
}

// New создаёт Manager.
func New(cfg Config) *Manager {
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		runs:      cfg.Runs,
		schedules: cfg.Schedules,
		engine:    cfg.Engine,
		notifier:  cfg.Notifier,
		now:       now,
		logger:    logger.With("component", "runmanager"),
		tasks:     make(map[uuid.UUID]*task),
	}
}

// ManualTrigger создаёт run (MANUAL) и запускает его в фоне.
// Возвращает сохранённую запись в статусе PENDING, не дожидаясь выполнения.
func (m *Manager) ManualTrigger(ctx context.Context, input domain.Input, triggerBy string) (*domain.RunRecord, error) {
	return m.trigger(ctx, input, domain.TriggerTypeManual, triggerBy)
}

// AutomaticTrigger — то же, что ManualTrigger, но с типом AUTOMATIC.
// Вызывается планировщиком.
func (m *Manager) AutomaticTrigger(ctx context.Context, input domain.Input, triggerBy string) (*domain.RunRecord, error) {
	return m.trigger(ctx, input, domain.TriggerTypeAutomatic, triggerBy)
}

func (m *Manager) trigger(ctx context.Context, input domain.Input, tt domain.TriggerType, triggerBy string) (*domain.RunRecord, error) {
	if triggerBy == "" {
		triggerBy = domain.DefaultActor
	}

	normalized, err := input.Normalize()
	if err != nil {
		return nil, fmt.Errorf("normalize input: %w", err)
	}

	// 1. PENDING запись
	run := domain.NewRunRecord(normalized, tt, triggerBy, m.now())

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil, ErrStopped
	}
	m.wg.Add(1)
	m.mu.Unlock()

	if err := m.runs.Create(ctx, run); err != nil {
		m.wg.Done()
		return nil, fmt.Errorf("create run record: %w", err)
	}

	telemetry.RunsTriggered.WithLabelValues(string(tt)).Inc()
	m.logger.Info("run triggered",
		"run_id", run.ID,
		"trigger_type", tt,
		"trigger_by", triggerBy,
		"procedure_id", run.Input.ProcedureID(),
		"product", run.Input.Product(),
	)

	// 2. Фоновая задача с контекстом, отвязанным от запроса
	t := &task{runID: run.ID, done: make(chan struct{})}
	m.mu.Lock()
	m.tasks[run.ID] = t
	m.mu.Unlock()

	go m.execute(context.WithoutCancel(ctx), t, run.Input)

	return run, nil
}

// execute выполняет run и записывает финальный статус.
func (m *Manager) execute(ctx context.Context, t *task, input domain.Input) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		delete(m.tasks, t.runID)
		m.mu.Unlock()
		close(t.done)
	}()

	telemetry.ActiveRuns.Inc()
	defer telemetry.ActiveRuns.Dec()

	logger := telemetry.WithRunID(m.logger, t.runID.String())
	ctx = telemetry.WithLogger(ctx, logger)

	execErr := m.engine.Execute(ctx, engine.ParamsFromInput(input), m.logFunc(t.runID))

	status := domain.RunStatusCompleted
	if execErr != nil {
		status = domain.RunStatusFailed
	}

	run, err := m.finish(ctx, t.runID, status)
	if err != nil {
		logger.Error("failed to finalize run", "status", status, "error", err)
		return
	}

	telemetry.RunsFinished.WithLabelValues(string(status)).Inc()
	if execErr != nil {
		logger.Info("run finished", "status", status, "error", execErr)
	} else {
		logger.Info("run finished", "status", status)
	}

	if m.notifier != nil {
		if err := m.notifier.RunFinished(ctx, run); err != nil {
			logger.Warn("run finished notification failed", "error", err)
		}
	}
}

// finish перечитывает run и переводит его в финальный статус.
func (m *Manager) finish(ctx context.Context, id uuid.UUID, status domain.RunStatus) (*domain.RunRecord, error) {
	run, err := m.runs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get run record: %w", err)
	}
	if err := run.Transition(status, m.now()); err != nil {
		return nil, err
	}
	if err := m.runs.Update(ctx, run); err != nil {
		return nil, fmt.Errorf("update run record: %w", err)
	}
	return run, nil
}

// logFunc возвращает callback лога для run: перечитать, дописать, сохранить.
func (m *Manager) logFunc(id uuid.UUID) engine.LogFunc {
	return func(ctx context.Context, message string) error {
		run, err := m.runs.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("get run record: %w", err)
		}
		run.AppendLog(message, m.now())
		if err := m.runs.Update(ctx, run); err != nil {
			return fmt.Errorf("update run record: %w", err)
		}
		return nil
	}
}

// Wait ждёт завершения фоновой задачи run и возвращает запись.
// Если задачи нет (run уже завершён или запущен другим процессом),
// сразу возвращает текущую запись.
func (m *Manager) Wait(ctx context.Context, id uuid.UUID) (*domain.RunRecord, error) {
	m.mu.Lock()
	t, ok := m.tasks[id]
	m.mu.Unlock()

	if ok {
		select {
		case <-t.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.GetRunRecord(ctx, id)
}

// Recover переводит все незавершённые runs в FAILED.
// Вызывается при старте до приёма новых trigger'ов.
func (m *Manager) Recover(ctx context.Context) (int, error) {
	runs, err := m.runs.ListByStatus(ctx, domain.RunStatusPending, domain.RunStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("list unfinished runs: %w", err)
	}

	recovered := 0
	for i := range runs {
		run := &runs[i]
		now := m.now()
		run.AppendLog(RecoveryMessage, now)
		if err := run.Transition(domain.RunStatusFailed, now); err != nil {
			return recovered, err
		}
		if err := m.runs.Update(ctx, run); err != nil {
			return recovered, fmt.Errorf("update run record %s: %w", run.ID, err)
		}
		recovered++
		telemetry.RunsRecovered.Inc()
		m.logger.Warn("run interrupted by restart marked as failed", "run_id", run.ID)
	}

	if recovered > 0 {
		m.logger.Info("recovery completed", "recovered", recovered)
	}
	return recovered, nil
}

// GetRunRecords возвращает страницу runs (новые первыми).
func (m *Manager) GetRunRecords(ctx context.Context, page domain.Page) (domain.PageResult[domain.RunRecord], error) {
	return m.runs.List(ctx, page.Normalize())
}

// GetRunRecord возвращает run по id.
func (m *Manager) GetRunRecord(ctx context.Context, id uuid.UUID) (*domain.RunRecord, error) {
	run, err := m.runs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, &NotFoundError{Kind: KindRun, ID: id.String()}
		}
		return nil, err
	}
	return run, nil
}

// ActiveRuns возвращает количество выполняющихся фоновых задач.
func (m *Manager) ActiveRuns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Stop перестаёт принимать trigger'ы и ждёт фоновые задачи
// (или отмены ctx).
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	m.stopped = true
	active := len(m.tasks)
	m.mu.Unlock()

	m.logger.Info("stopping run manager...", "active_runs", active)

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("run manager stopped")
		return nil
	case <-ctx.Done():
		m.logger.Warn("run manager stop timed out", "active_runs", m.ActiveRuns())
		return ctx.Err()
	}
}
