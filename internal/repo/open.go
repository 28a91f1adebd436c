package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/shaiso/Integrator/internal/domain"
)

// Драйверы хранилища.
const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

// RunStore — общий интерфейс хранилищ run records.
type RunStore interface {
	Create(ctx context.Context, run *domain.RunRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.RunRecord, error)
	Update(ctx context.Context, run *domain.RunRecord) error
	List(ctx context.Context, page domain.Page) (domain.PageResult[domain.RunRecord], error)
	ListByStatus(ctx context.Context, statuses ...domain.RunStatus) ([]domain.RunRecord, error)
}

// ScheduleStore — общий интерфейс хранилищ расписаний.
type ScheduleStore interface {
	Create(ctx context.Context, s *domain.ScheduleConfig) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduleConfig, error)
	Update(ctx context.Context, s *domain.ScheduleConfig) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, page domain.Page) (domain.PageResult[domain.ScheduleConfig], error)
	ListEnabled(ctx context.Context) ([]domain.ScheduleConfig, error)
}

var (
	_ RunStore      = (*RunRepo)(nil)
	_ RunStore      = (*RedisRunStore)(nil)
	_ RunStore      = (*MemoryRunStore)(nil)
	_ ScheduleStore = (*ScheduleRepo)(nil)
	_ ScheduleStore = (*RedisScheduleStore)(nil)
	_ ScheduleStore = (*MemoryScheduleStore)(nil)
)

// StoreConfig — выбор и параметры драйвера.
type StoreConfig struct {
	Driver      string
	PostgresURL string
	RedisURL    string
	RedisPrefix string
}

// Stores — открытые хранилища и функция освобождения ресурсов.
type Stores struct {
	Runs      RunStore
	Schedules ScheduleStore

	close func()
}

// Close закрывает соединения драйвера.
func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// Open открывает хранилища по драйверу. Для postgres применяет миграции.
func Open(ctx context.Context, cfg StoreConfig) (*Stores, error) {
	switch cfg.Driver {
	case DriverPostgres:
		pool, err := NewPool(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &Stores{
			Runs:      NewRunRepo(pool),
			Schedules: NewScheduleRepo(pool),
			close:     pool.Close,
		}, nil

	case DriverRedis:
		rdb, err := NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Runs:      NewRedisRunStore(rdb, cfg.RedisPrefix),
			Schedules: NewRedisScheduleStore(rdb, cfg.RedisPrefix),
			close:     func() { _ = rdb.Close() },
		}, nil

	case DriverMemory:
		return &Stores{
			Runs:      NewMemoryRunStore(),
			Schedules: NewMemoryScheduleStore(),
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
