package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrations — схема БД. Применяются по порядку, каждая идемпотентна.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS run_records (
		id           UUID PRIMARY KEY,
		log          TEXT        NOT NULL DEFAULT '',
		input        JSONB       NOT NULL DEFAULT '{}'::jsonb,
		status       TEXT        NOT NULL,
		trigger_type TEXT        NOT NULL,
		trigger_by   TEXT        NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS run_records_created_at_idx ON run_records (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS run_records_status_idx ON run_records (status)`,
	`CREATE TABLE IF NOT EXISTS schedule_configs (
		id              UUID PRIMARY KEY,
		name            TEXT        NOT NULL,
		description     TEXT        NOT NULL DEFAULT '',
		cron_expression TEXT        NOT NULL,
		is_enabled      BOOLEAN     NOT NULL DEFAULT TRUE,
		input           JSONB       NOT NULL DEFAULT '{}'::jsonb,
		created_by      TEXT        NOT NULL DEFAULT '',
		updated_by      TEXT        NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS schedule_configs_created_at_idx ON schedule_configs (created_at DESC)`,
}

// Migrate создаёт таблицы, если их нет.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
