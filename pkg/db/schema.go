package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// 按顺序执行，每条语句都是幂等的
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		name          TEXT NOT NULL DEFAULT '',
		access_token  TEXT NOT NULL DEFAULT '',
		refresh_token TEXT NOT NULL DEFAULT '',
		token_expiry  TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS emails (
		id                BIGSERIAL PRIMARY KEY,
		user_id           BIGINT REFERENCES users(id) ON DELETE SET NULL,
		message_id        TEXT NOT NULL UNIQUE,
		thread_id         TEXT NOT NULL DEFAULT '',
		subject           TEXT NOT NULL DEFAULT '',
		sender            TEXT NOT NULL DEFAULT '',
		body              TEXT NOT NULL DEFAULT '',
		received_at       TIMESTAMPTZ,
		summary           TEXT NOT NULL DEFAULT '',
		intent            TEXT NOT NULL DEFAULT '',
		priority          TEXT NOT NULL DEFAULT '',
		reasoning         TEXT NOT NULL DEFAULT '',
		entities          JSONB NOT NULL DEFAULT '{}',
		reply_suggestions JSONB NOT NULL DEFAULT '[]',
		meeting_info      JSONB,
		calendar_event    JSONB,
		is_read           BOOLEAN NOT NULL DEFAULT FALSE,
		is_important      BOOLEAN NOT NULL DEFAULT FALSE,
		processed         BOOLEAN NOT NULL DEFAULT FALSE,
		processed_at      TIMESTAMPTZ,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_emails_received_at ON emails (received_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_emails_priority_intent ON emails (priority, intent)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id             BIGSERIAL PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id   TEXT NOT NULL,
		routing_key    TEXT NOT NULL,
		payload        JSONB NOT NULL,
		status         TEXT NOT NULL DEFAULT 'pending',
		retry_count    INT NOT NULL DEFAULT 0,
		next_retry_at  TIMESTAMPTZ,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_outbox_aggregate ON outbox_events (aggregate_type, aggregate_id)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox_events (status, next_retry_at)`,
}

// Migrate 创建所需的表和索引
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
