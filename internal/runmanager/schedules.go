package runmanager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/shaiso/Integrator/internal/domain"
	"github.com/shaiso/Integrator/internal/repo"
	"github.com/shaiso/Integrator/internal/scheduler"
)

// NewSchedule — поля создаваемого расписания.
type NewSchedule struct {
	Name           string
	Description    string
	CronExpression string
	IsEnabled      bool
	Input          domain.Input
}

// CreateSchedule сохраняет новое расписание.
func (m *Manager) CreateSchedule(ctx context.Context, ns NewSchedule, createdBy string) (*domain.ScheduleConfig, error) {
	if err := validateSchedule(ns.Name, ns.CronExpression); err != nil {
		return nil, err
	}
	if createdBy == "" {
		createdBy = domain.DefaultActor
	}

	input, err := ns.Input.Normalize()
	if err != nil {
		return nil, fmt.Errorf("%w: input: %w", ErrInvalidSchedule, err)
	}
	if input == nil {
		input = domain.Input{}
	}

	now := m.now()
	s := &domain.ScheduleConfig{
		ID:             uuid.New(),
		Name:           ns.Name,
		Description:    ns.Description,
		CronExpression: ns.CronExpression,
		IsEnabled:      ns.IsEnabled,
		Input:          input,
		CreatedBy:      createdBy,
		UpdatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := m.schedules.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}

	m.logger.Info("schedule created",
		"schedule_id", s.ID,
		"schedule_name", s.Name,
		"cron", s.CronExpression,
		"enabled", s.IsEnabled,
	)
	return s, nil
}

// UpdateSchedule применяет частичное обновление.
// Input мержится поверх существующего (shallow merge).
func (m *Manager) UpdateSchedule(ctx context.Context, id uuid.UUID, patch domain.SchedulePatch, updatedBy string) (*domain.ScheduleConfig, error) {
	s, err := m.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Input != nil {
		normalized, err := patch.Input.Normalize()
		if err != nil {
			return nil, fmt.Errorf("%w: input: %w", ErrInvalidSchedule, err)
		}
		patch.Input = normalized
	}

	s.Apply(patch, updatedBy, m.now())
	if err := validateSchedule(s.Name, s.CronExpression); err != nil {
		return nil, err
	}

	if err := m.schedules.Update(ctx, s); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, &NotFoundError{Kind: KindSchedule, ID: id.String()}
		}
		return nil, fmt.Errorf("update schedule: %w", err)
	}

	m.logger.Info("schedule updated", "schedule_id", s.ID, "schedule_name", s.Name)
	return s, nil
}

// DeleteSchedule удаляет расписание.
func (m *Manager) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	if err := m.schedules.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return &NotFoundError{Kind: KindSchedule, ID: id.String()}
		}
		return fmt.Errorf("delete schedule: %w", err)
	}
	m.logger.Info("schedule deleted", "schedule_id", id)
	return nil
}

// GetSchedule возвращает расписание по id.
func (m *Manager) GetSchedule(ctx context.Context, id uuid.UUID) (*domain.ScheduleConfig, error) {
	s, err := m.schedules.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, &NotFoundError{Kind: KindSchedule, ID: id.String()}
		}
		return nil, err
	}
	return s, nil
}

// GetSchedules возвращает страницу расписаний (новые первыми).
func (m *Manager) GetSchedules(ctx context.Context, page domain.Page) (domain.PageResult[domain.ScheduleConfig], error) {
	return m.schedules.List(ctx, page.Normalize())
}

func validateSchedule(name, cronExpr string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSchedule)
	}
	if err := scheduler.ValidateCronExpr(cronExpr); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}
	return nil
}
