package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Integrator/internal/domain"
)

// ScheduleRepo — расписания в PostgreSQL.
type ScheduleRepo struct {
	pool *pgxpool.Pool
}

// NewScheduleRepo создаёт новый ScheduleRepo.
func NewScheduleRepo(pool *pgxpool.Pool) *ScheduleRepo {
	return &ScheduleRepo{pool: pool}
}

const scheduleColumns = `id, name, description, cron_expression, is_enabled, input,
	created_by, updated_by, created_at, updated_at`

// Create сохраняет новое расписание.
func (r *ScheduleRepo) Create(ctx context.Context, s *domain.ScheduleConfig) error {
	inputJSON, err := marshalInput(s.Input)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO schedule_configs (` + scheduleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.pool.Exec(ctx, query,
		s.ID,
		s.Name,
		s.Description,
		s.CronExpression,
		s.IsEnabled,
		inputJSON,
		s.CreatedBy,
		s.UpdatedBy,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

// GetByID возвращает расписание по ID.
func (r *ScheduleRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduleConfig, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedule_configs WHERE id = $1`

	s, err := scanSchedule(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// Update сохраняет все изменяемые поля.
func (r *ScheduleRepo) Update(ctx context.Context, s *domain.ScheduleConfig) error {
	inputJSON, err := marshalInput(s.Input)
	if err != nil {
		return err
	}

	query := `
		UPDATE schedule_configs
		SET name = $2, description = $3, cron_expression = $4, is_enabled = $5,
		    input = $6, updated_by = $7, updated_at = $8
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		s.ID,
		s.Name,
		s.Description,
		s.CronExpression,
		s.IsEnabled,
		inputJSON,
		s.UpdatedBy,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет расписание.
func (r *ScheduleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM schedule_configs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List возвращает страницу расписаний (created_at DESC) и общее количество.
func (r *ScheduleRepo) List(ctx context.Context, page domain.Page) (domain.PageResult[domain.ScheduleConfig], error) {
	var result domain.PageResult[domain.ScheduleConfig]

	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM schedule_configs`).Scan(&result.Total); err != nil {
		return result, fmt.Errorf("count schedules: %w", err)
	}

	query := `
		SELECT ` + scheduleColumns + `
		FROM schedule_configs
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.pool.Query(ctx, query, page.Limit(), page.Offset())
	if err != nil {
		return result, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	result.Data, err = collectSchedules(rows)
	return result, err
}

// ListEnabled возвращает включённые расписания.
func (r *ScheduleRepo) ListEnabled(ctx context.Context) ([]domain.ScheduleConfig, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedule_configs
		WHERE is_enabled
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list enabled schedules: %w", err)
	}
	defer rows.Close()

	return collectSchedules(rows)
}

// --- Helpers ---

func collectSchedules(rows pgx.Rows) ([]domain.ScheduleConfig, error) {
	schedules := []domain.ScheduleConfig{}
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *s)
	}
	return schedules, rows.Err()
}

func scanSchedule(row pgx.Row) (*domain.ScheduleConfig, error) {
	var s domain.ScheduleConfig
	var inputJSON []byte

	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Description,
		&s.CronExpression,
		&s.IsEnabled,
		&inputJSON,
		&s.CreatedBy,
		&s.UpdatedBy,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan schedule: %w", err)
	}

	if s.Input, err = unmarshalInput(inputJSON); err != nil {
		return nil, err
	}
	return &s, nil
}
