package repo

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/Integrator/internal/domain"
)

// MemoryRunStore — run records в памяти процесса (dev и тесты).
// Переживает только сам процесс.
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*memRun
	seq  int64
}

type memRun struct {
	seq int64
	run domain.RunRecord
}

// NewMemoryRunStore создаёт пустое хранилище.
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[uuid.UUID]*memRun)}
}

// Create сохраняет копию run record.
func (s *MemoryRunStore) Create(_ context.Context, run *domain.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; exists {
		return ErrAlreadyExists
	}
	s.seq++
	s.runs[run.ID] = &memRun{seq: s.seq, run: cloneRun(*run)}
	return nil
}

// GetByID возвращает копию run record.
func (s *MemoryRunStore) GetByID(_ context.Context, id uuid.UUID) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	run := cloneRun(m.run)
	return &run, nil
}

// Update сохраняет log, status и updated_at.
func (s *MemoryRunStore) Update(_ context.Context, run *domain.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.runs[run.ID]
	if !ok {
		return ErrNotFound
	}
	m.run.Log = run.Log
	m.run.Status = run.Status
	m.run.UpdatedAt = run.UpdatedAt
	return nil
}

// List возвращает страницу (created_at DESC).
func (s *MemoryRunStore) List(_ context.Context, page domain.Page) (domain.PageResult[domain.RunRecord], error) {
	s.mu.RLock()
	all := make([]*memRun, 0, len(s.runs))
	for _, m := range s.runs {
		all = append(all, m)
	}
	s.mu.RUnlock()

	slices.SortFunc(all, func(a, b *memRun) int {
		if c := b.run.CreatedAt.Compare(a.run.CreatedAt); c != 0 {
			return c
		}
		return int(b.seq - a.seq)
	})

	result := domain.PageResult[domain.RunRecord]{Data: []domain.RunRecord{}, Total: len(all)}
	for _, m := range paginate(all, page) {
		result.Data = append(result.Data, cloneRun(m.run))
	}
	return result, nil
}

// ListByStatus возвращает run records с одним из статусов (created_at ASC).
func (s *MemoryRunStore) ListByStatus(_ context.Context, statuses ...domain.RunStatus) ([]domain.RunRecord, error) {
	s.mu.RLock()
	var matched []*memRun
	for _, m := range s.runs {
		if slices.Contains(statuses, m.run.Status) {
			matched = append(matched, m)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *memRun) int {
		if c := a.run.CreatedAt.Compare(b.run.CreatedAt); c != 0 {
			return c
		}
		return int(a.seq - b.seq)
	})

	runs := make([]domain.RunRecord, 0, len(matched))
	for _, m := range matched {
		runs = append(runs, cloneRun(m.run))
	}
	return runs, nil
}

// MemoryScheduleStore — расписания в памяти процесса.
type MemoryScheduleStore struct {
	mu        sync.RWMutex
	schedules map[uuid.UUID]*memSchedule
	seq       int64
}

type memSchedule struct {
	seq      int64
	schedule domain.ScheduleConfig
}

// NewMemoryScheduleStore создаёт пустое хранилище.
func NewMemoryScheduleStore() *MemoryScheduleStore {
	return &MemoryScheduleStore{schedules: make(map[uuid.UUID]*memSchedule)}
}

// Create сохраняет копию расписания.
func (s *MemoryScheduleStore) Create(_ context.Context, sc *domain.ScheduleConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.schedules[sc.ID]; exists {
		return ErrAlreadyExists
	}
	s.seq++
	s.schedules[sc.ID] = &memSchedule{seq: s.seq, schedule: cloneSchedule(*sc)}
	return nil
}

// GetByID возвращает копию расписания.
func (s *MemoryScheduleStore) GetByID(_ context.Context, id uuid.UUID) (*domain.ScheduleConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.schedules[id]
	if !ok {
		return nil, ErrNotFound
	}
	sc := cloneSchedule(m.schedule)
	return &sc, nil
}

// Update заменяет изменяемые поля; created_* сохраняются.
func (s *MemoryScheduleStore) Update(_ context.Context, sc *domain.ScheduleConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.schedules[sc.ID]
	if !ok {
		return ErrNotFound
	}
	updated := cloneSchedule(*sc)
	updated.CreatedAt = m.schedule.CreatedAt
	updated.CreatedBy = m.schedule.CreatedBy
	m.schedule = updated
	return nil
}

// Delete удаляет расписание.
func (s *MemoryScheduleStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schedules[id]; !ok {
		return ErrNotFound
	}
	delete(s.schedules, id)
	return nil
}

// List возвращает страницу (created_at DESC).
func (s *MemoryScheduleStore) List(_ context.Context, page domain.Page) (domain.PageResult[domain.ScheduleConfig], error) {
	all := s.sorted(func(*domain.ScheduleConfig) bool { return true })
	slices.Reverse(all)

	result := domain.PageResult[domain.ScheduleConfig]{Data: []domain.ScheduleConfig{}, Total: len(all)}
	result.Data = append(result.Data, paginate(all, page)...)
	return result, nil
}

// ListEnabled возвращает включённые расписания (created_at ASC).
func (s *MemoryScheduleStore) ListEnabled(_ context.Context) ([]domain.ScheduleConfig, error) {
	return s.sorted(func(sc *domain.ScheduleConfig) bool { return sc.IsEnabled }), nil
}

// sorted возвращает копии расписаний, прошедших фильтр, по created_at ASC.
func (s *MemoryScheduleStore) sorted(keep func(*domain.ScheduleConfig) bool) []domain.ScheduleConfig {
	s.mu.RLock()
	var matched []*memSchedule
	for _, m := range s.schedules {
		if keep(&m.schedule) {
			matched = append(matched, m)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *memSchedule) int {
		if c := a.schedule.CreatedAt.Compare(b.schedule.CreatedAt); c != 0 {
			return c
		}
		return int(a.seq - b.seq)
	})

	out := make([]domain.ScheduleConfig, 0, len(matched))
	for _, m := range matched {
		out = append(out, cloneSchedule(m.schedule))
	}
	return out
}

// paginate вырезает страницу из отсортированного среза.
func paginate[T any](items []T, page domain.Page) []T {
	offset := page.Offset()
	if offset >= len(items) {
		return nil
	}
	end := min(offset+page.Limit(), len(items))
	return items[offset:end]
}

func cloneRun(r domain.RunRecord) domain.RunRecord {
	r.Input = r.Input.Clone()
	return r
}

func cloneSchedule(s domain.ScheduleConfig) domain.ScheduleConfig {
	s.Input = s.Input.Clone()
	return s
}
