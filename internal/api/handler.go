package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/shaiso/Integrator/internal/domain"
	"github.com/shaiso/Integrator/internal/runmanager"
)

// RunService — операции RunManager, доступные через API.
type RunService interface {
	ManualTrigger(ctx context.Context, input domain.Input, triggerBy string) (*domain.RunRecord, error)
	GetRunRecords(ctx context.Context, page domain.Page) (domain.PageResult[domain.RunRecord], error)
	GetRunRecord(ctx context.Context, id uuid.UUID) (*domain.RunRecord, error)
	CreateSchedule(ctx context.Context, ns runmanager.NewSchedule, createdBy string) (*domain.ScheduleConfig, error)
	UpdateSchedule(ctx context.Context, id uuid.UUID, patch domain.SchedulePatch, updatedBy string) (*domain.ScheduleConfig, error)
	DeleteSchedule(ctx context.Context, id uuid.UUID) error
	GetSchedule(ctx context.Context, id uuid.UUID) (*domain.ScheduleConfig, error)
	GetSchedules(ctx context.Context, page domain.Page) (domain.PageResult[domain.ScheduleConfig], error)
	ActiveRuns() int
}

// BusinessConfig — чтение бизнес-конфигурации.
type BusinessConfig interface {
	GetProductList(ctx context.Context) ([]domain.Product, error)
	GetProcedureList(ctx context.Context, product string) ([]domain.Procedure, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	runs     RunService
	configs  BusinessConfig
	validate *validator.Validate
	now      func() time.Time
	logger   *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Runs    RunService
	Configs BusinessConfig
	Logger  *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		runs:     cfg.Runs,
		configs:  cfg.Configs,
		validate: newValidator(),
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}
