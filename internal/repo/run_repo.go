package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Integrator/internal/domain"
)

// RunRepo — run records в PostgreSQL.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

const runColumns = `id, log, input, status, trigger_type, trigger_by, created_at, updated_at`

// Create сохраняет новый run record.
func (r *RunRepo) Create(ctx context.Context, run *domain.RunRecord) error {
	inputJSON, err := marshalInput(run.Input)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO run_records (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.pool.Exec(ctx, query,
		run.ID,
		run.Log,
		inputJSON,
		run.Status,
		run.TriggerType,
		run.TriggerBy,
		run.CreatedAt,
		run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run record: %w", err)
	}
	return nil
}

// GetByID возвращает run record по ID.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM run_records WHERE id = $1`

	run, err := scanRun(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// Update сохраняет log, status и updated_at.
func (r *RunRepo) Update(ctx context.Context, run *domain.RunRecord) error {
	query := `
		UPDATE run_records
		SET log = $2, status = $3, updated_at = $4
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, run.ID, run.Log, run.Status, run.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update run record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List возвращает страницу run records (created_at DESC) и общее количество.
func (r *RunRepo) List(ctx context.Context, page domain.Page) (domain.PageResult[domain.RunRecord], error) {
	var result domain.PageResult[domain.RunRecord]

	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM run_records`).Scan(&result.Total); err != nil {
		return result, fmt.Errorf("count run records: %w", err)
	}

	query := `
		SELECT ` + runColumns + `
		FROM run_records
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.pool.Query(ctx, query, page.Limit(), page.Offset())
	if err != nil {
		return result, fmt.Errorf("list run records: %w", err)
	}
	defer rows.Close()

	result.Data, err = collectRuns(rows)
	return result, err
}

// ListByStatus возвращает run records с одним из статусов (created_at ASC).
func (r *RunRepo) ListByStatus(ctx context.Context, statuses ...domain.RunStatus) ([]domain.RunRecord, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	query := `
		SELECT ` + runColumns + `
		FROM run_records
		WHERE status = ANY($1)
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, names)
	if err != nil {
		return nil, fmt.Errorf("list run records by status: %w", err)
	}
	defer rows.Close()

	return collectRuns(rows)
}

// --- Helpers ---

func collectRuns(rows pgx.Rows) ([]domain.RunRecord, error) {
	runs := []domain.RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// scanRun сканирует строку в RunRecord (pgx.Row и pgx.Rows).
func scanRun(row pgx.Row) (*domain.RunRecord, error) {
	var run domain.RunRecord
	var inputJSON []byte

	err := row.Scan(
		&run.ID,
		&run.Log,
		&inputJSON,
		&run.Status,
		&run.TriggerType,
		&run.TriggerBy,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run record: %w", err)
	}

	if run.Input, err = unmarshalInput(inputJSON); err != nil {
		return nil, err
	}
	return &run, nil
}

func marshalInput(in domain.Input) ([]byte, error) {
	if in == nil {
		in = domain.Input{}
	}
	data, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal input: %w", err)
	}
	return data, nil
}

func unmarshalInput(data []byte) (domain.Input, error) {
	in := domain.Input{}
	if len(data) == 0 {
		return in, nil
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("unmarshal input: %w", err)
	}
	return in, nil
}
