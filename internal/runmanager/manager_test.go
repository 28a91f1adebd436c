package runmanager

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Integrator/internal/domain"
	"github.com/shaiso/Integrator/internal/engine"
	"github.com/shaiso/Integrator/internal/repo"
	"github.com/shaiso/Integrator/internal/telemetry"
)

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// execFunc — Executor из функции.
type execFunc func(ctx context.Context, p engine.Params, emit engine.LogFunc) error

func (f execFunc) Execute(ctx context.Context, p engine.Params, emit engine.LogFunc) error {
	return f(ctx, p, emit)
}

type recordingNotifier struct {
	mu   sync.Mutex
	runs []domain.RunRecord
}

func (n *recordingNotifier) RunFinished(_ context.Context, run *domain.RunRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.runs = append(n.runs, *run)
	return nil
}

func newManager(t *testing.T, exec Executor) (*Manager, *repo.MemoryRunStore, *repo.MemoryScheduleStore) {
	t.Helper()
	runs := repo.NewMemoryRunStore()
	schedules := repo.NewMemoryScheduleStore()
	m := New(Config{
		Runs:      runs,
		Schedules: schedules,
		Engine:    exec,
		Now:       newStepClock().Now,
		Logger:    telemetry.Discard(),
	})
	return m, runs, schedules
}

func succeed(lines ...string) execFunc {
	return func(ctx context.Context, _ engine.Params, emit engine.LogFunc) error {
		for _, line := range lines {
			if err := emit(ctx, line); err != nil {
				return err
			}
		}
		return nil
	}
}

var testInput = domain.NewInput("release", "shop", map[string]map[string]any{
	"fe-integration": {"baselineBranch": "main", "targetBranch": "release/1"},
})

func TestManualTrigger_ReturnsPendingAndCompletes(t *testing.T) {
	var got engine.Params
	release := make(chan struct{})
	exec := execFunc(func(ctx context.Context, p engine.Params, emit engine.LogFunc) error {
		got = p
		<-release
		if err := emit(ctx, "Starting execution..."); err != nil {
			return err
		}
		return emit(ctx, "Execution completed successfully")
	})
	m, _, _ := newManager(t, exec)
	ctx := context.Background()

	run, err := m.ManualTrigger(ctx, testInput, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusPending, run.Status)
	assert.Equal(t, domain.TriggerTypeManual, run.TriggerType)
	assert.Equal(t, "alice", run.TriggerBy)
	assert.Empty(t, run.Log)
	assert.Equal(t, 1, m.ActiveRuns())

	close(release)
	final, err := m.Wait(ctx, run.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusCompleted, final.Status)
	lines := final.LogLines()
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "[2024-03-01T12:00:"))
	assert.True(t, strings.HasSuffix(lines[0], "] Starting execution..."))
	assert.True(t, strings.HasSuffix(lines[1], "] Execution completed successfully"))

	assert.Equal(t, "release", got.ProcedureID)
	assert.Equal(t, "shop", got.Product)
	assert.Equal(t, "main", got.StepParams["fe-integration"]["baselineBranch"])
	assert.Equal(t, 0, m.ActiveRuns())
}

func TestTrigger_FailureMarksFailed(t *testing.T) {
	exec := execFunc(func(ctx context.Context, _ engine.Params, emit engine.LogFunc) error {
		_ = emit(ctx, "Execution failed: boom")
		return errors.New("boom")
	})
	m, _, _ := newManager(t, exec)
	notifier := &recordingNotifier{}
	m.notifier = notifier
	ctx := context.Background()

	run, err := m.AutomaticTrigger(ctx, testInput, "schedule:nightly")
	require.NoError(t, err)
	assert.Equal(t, domain.TriggerTypeAutomatic, run.TriggerType)

	final, err := m.Wait(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, final.Status)
	assert.Contains(t, final.Log, "Execution failed: boom")

	require.Len(t, notifier.runs, 1)
	assert.Equal(t, run.ID, notifier.runs[0].ID)
	assert.Equal(t, domain.RunStatusFailed, notifier.runs[0].Status)
}

func TestTrigger_DefaultActor(t *testing.T) {
	m, _, _ := newManager(t, succeed())
	run, err := m.ManualTrigger(context.Background(), testInput, "")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultActor, run.TriggerBy)
	_, err = m.Wait(context.Background(), run.ID)
	require.NoError(t, err)
}

func TestTrigger_DetachedFromRequestContext(t *testing.T) {
	release := make(chan struct{})
	exec := execFunc(func(ctx context.Context, _ engine.Params, emit engine.LogFunc) error {
		<-release
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return emit(ctx, "done")
	})
	m, _, _ := newManager(t, exec)

	reqCtx, cancel := context.WithCancel(context.Background())
	run, err := m.ManualTrigger(reqCtx, testInput, "alice")
	require.NoError(t, err)
	cancel()
	close(release)

	final, err := m.Wait(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, final.Status)
}

func TestRecover_MarksUnfinishedRunsFailed(t *testing.T) {
	m, runs, _ := newManager(t, succeed())
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	pending := domain.NewRunRecord(testInput, domain.TriggerTypeManual, "alice", at)
	pending.AppendLog("Starting execution...", at)
	running := domain.NewRunRecord(testInput, domain.TriggerTypeAutomatic, "schedule:x", at)
	running.Status = domain.RunStatusRunning
	completed := domain.NewRunRecord(testInput, domain.TriggerTypeManual, "bob", at)
	require.NoError(t, completed.Transition(domain.RunStatusCompleted, at))

	for _, r := range []*domain.RunRecord{pending, running, completed} {
		require.NoError(t, runs.Create(ctx, r))
	}

	n, err := m.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []uuid.UUID{pending.ID, running.ID} {
		got, err := runs.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.RunStatusFailed, got.Status)
		lines := got.LogLines()
		require.NotEmpty(t, lines)
		assert.True(t, strings.HasSuffix(lines[len(lines)-1], "] "+RecoveryMessage))
	}

	got, err := runs.GetByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Len(t, got.LogLines(), 2)

	got, err = runs.GetByID(ctx, completed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, got.Status)
	assert.Empty(t, got.Log)

	n, err = m.Recover(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGetRunRecords_Pagination(t *testing.T) {
	m, _, _ := newManager(t, succeed())
	ctx := context.Background()

	ids := make([]uuid.UUID, 25)
	for i := range ids {
		run, err := m.ManualTrigger(ctx, testInput, "alice")
		require.NoError(t, err)
		_, err = m.Wait(ctx, run.ID)
		require.NoError(t, err)
		ids[i] = run.ID
	}

	res, err := m.GetRunRecords(ctx, domain.Page{Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 25, res.Total)
	require.Len(t, res.Data, 10)
	for i, run := range res.Data {
		assert.Equal(t, ids[14-i], run.ID, "position %d", i)
	}

	res, err = m.GetRunRecords(ctx, domain.Page{})
	require.NoError(t, err)
	require.Len(t, res.Data, domain.DefaultPageSize)
	assert.Equal(t, ids[24], res.Data[0].ID)
}

func TestGetRunRecord_NotFound(t *testing.T) {
	m, _, _ := newManager(t, succeed())
	_, err := m.GetRunRecord(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrRunNotFound)
	assert.NotErrorIs(t, err, ErrScheduleNotFound)
}

func TestStop_WaitsAndRejectsNewTriggers(t *testing.T) {
	release := make(chan struct{})
	exec := execFunc(func(ctx context.Context, _ engine.Params, emit engine.LogFunc) error {
		<-release
		return nil
	})
	m, runs, _ := newManager(t, exec)
	ctx := context.Background()

	run, err := m.ManualTrigger(ctx, testInput, "alice")
	require.NoError(t, err)

	shortCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, m.Stop(shortCtx), context.DeadlineExceeded)

	_, err = m.ManualTrigger(ctx, testInput, "alice")
	require.ErrorIs(t, err, ErrStopped)

	close(release)
	require.NoError(t, m.Stop(ctx))

	got, err := runs.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, got.Status)
}

func TestSchedule_CreateAndMergeInput(t *testing.T) {
	m, _, _ := newManager(t, succeed())
	ctx := context.Background()

	s, err := m.CreateSchedule(ctx, NewSchedule{
		Name:           "nightly",
		CronExpression: "0 2 * * *",
		IsEnabled:      true,
		Input:          domain.Input{"a": 1, "b": 2},
	}, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", s.CreatedBy)
	assert.Equal(t, "alice", s.UpdatedBy)

	enabled := false
	updated, err := m.UpdateSchedule(ctx, s.ID, domain.SchedulePatch{
		IsEnabled: &enabled,
		Input:     domain.Input{"b": 3, "c": 4},
	}, "bob")
	require.NoError(t, err)

	assert.Equal(t, domain.Input{"a": float64(1), "b": float64(3), "c": float64(4)}, updated.Input)
	assert.False(t, updated.IsEnabled)
	assert.Equal(t, "nightly", updated.Name)
	assert.Equal(t, "alice", updated.CreatedBy)
	assert.Equal(t, "bob", updated.UpdatedBy)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	got, err := m.GetSchedule(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Input, got.Input)
}

func TestSchedule_Validation(t *testing.T) {
	m, _, _ := newManager(t, succeed())
	ctx := context.Background()

	tests := []struct {
		name string
		ns   NewSchedule
	}{
		{"empty name", NewSchedule{CronExpression: "* * * * *"}},
		{"bad cron", NewSchedule{Name: "x", CronExpression: "every day"}},
		{"six fields", NewSchedule{Name: "x", CronExpression: "0 0 2 * * *"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.CreateSchedule(ctx, tt.ns, "alice")
			require.ErrorIs(t, err, ErrInvalidSchedule)
		})
	}

	s, err := m.CreateSchedule(ctx, NewSchedule{Name: "x", CronExpression: "@daily"}, "")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultActor, s.CreatedBy)
	assert.Equal(t, domain.Input{}, s.Input)

	bad := "nope"
	_, err = m.UpdateSchedule(ctx, s.ID, domain.SchedulePatch{CronExpression: &bad}, "alice")
	require.ErrorIs(t, err, ErrInvalidSchedule)

	got, err := m.GetSchedule(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "@daily", got.CronExpression)
}

func TestSchedule_NotFound(t *testing.T) {
	m, _, _ := newManager(t, succeed())
	ctx := context.Background()
	id := uuid.New()

	_, err := m.GetSchedule(ctx, id)
	require.ErrorIs(t, err, ErrScheduleNotFound)

	_, err = m.UpdateSchedule(ctx, id, domain.SchedulePatch{}, "alice")
	require.ErrorIs(t, err, ErrScheduleNotFound)

	err = m.DeleteSchedule(ctx, id)
	require.ErrorIs(t, err, ErrScheduleNotFound)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, KindSchedule, nf.Kind)
	assert.Equal(t, id.String(), nf.ID)
}

func TestGetSchedules_NewestFirst(t *testing.T) {
	m, _, _ := newManager(t, succeed())
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		_, err := m.CreateSchedule(ctx, NewSchedule{Name: name, CronExpression: "* * * * *"}, "alice")
		require.NoError(t, err)
	}

	res, err := m.GetSchedules(ctx, domain.Page{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "c", res.Data[0].Name)
	assert.Equal(t, "b", res.Data[1].Name)

	require.NoError(t, m.DeleteSchedule(ctx, res.Data[0].ID))
	res, err = m.GetSchedules(ctx, domain.Page{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
}
