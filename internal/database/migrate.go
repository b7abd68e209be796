package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the schema if it does not exist yet. Statements are
// idempotent so the server can run this on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			phone_number VARCHAR(20),
			role VARCHAR(20) NOT NULL DEFAULT 'player',
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			vacation_until TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS recurring_availability (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			day_of_week INT NOT NULL CHECK (day_of_week BETWEEN 1 AND 7),
			start_minute INT NOT NULL,
			end_minute INT NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (start_minute < end_minute)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recurring_availability_user
			ON recurring_availability (user_id) WHERE enabled = TRUE`,

		`CREATE TABLE IF NOT EXISTS availability_blocks (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			pattern_id UUID REFERENCES recurring_availability(id) ON DELETE SET NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (start_time < end_time),
			CONSTRAINT unique_user_time_slot UNIQUE (user_id, start_time)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_availability_blocks_time_range
			ON availability_blocks (start_time, end_time)`,

		`CREATE TABLE IF NOT EXISTS matches (
			id UUID PRIMARY KEY,
			player_a_id UUID NOT NULL REFERENCES users(id),
			player_b_id UUID NOT NULL REFERENCES users(id),
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			created_by UUID NOT NULL REFERENCES users(id),
			canceled_by UUID REFERENCES users(id),
			cancellation_reason TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			confirmed_at TIMESTAMPTZ,
			declined_at TIMESTAMPTZ,
			canceled_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (start_time < end_time),
			CHECK (player_a_id != player_b_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_player_a ON matches (player_a_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_player_b ON matches (player_b_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_pending_start
			ON matches (start_time) WHERE status = 'pending'`,

		`CREATE TABLE IF NOT EXISTS notification_preferences (
			user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			email_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			sms_opt_in BOOLEAN NOT NULL DEFAULT FALSE,
			sms_opt_in_at TIMESTAMPTZ,
			notify_requests BOOLEAN NOT NULL DEFAULT TRUE,
			notify_responses BOOLEAN NOT NULL DEFAULT TRUE,
			notify_reminders BOOLEAN NOT NULL DEFAULT TRUE,
			notify_cancellations BOOLEAN NOT NULL DEFAULT TRUE,
			quiet_hours_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			quiet_start_minute INT NOT NULL DEFAULT 1320,
			quiet_end_minute INT NOT NULL DEFAULT 420,
			sms_consecutive_failures INT NOT NULL DEFAULT 0,
			last_sms_failure_at TIMESTAMPTZ,
			last_email_failure_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS notification_queue (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			category VARCHAR(50) NOT NULL,
			priority VARCHAR(20) NOT NULL,
			channel VARCHAR(10) NOT NULL,
			subject VARCHAR(255) NOT NULL DEFAULT '',
			body TEXT NOT NULL,
			match_id UUID REFERENCES matches(id) ON DELETE SET NULL,
			scheduled_for TIMESTAMPTZ NOT NULL,
			sent_at TIMESTAMPTZ,
			failed_at TIMESTAMPTZ,
			failure_reason TEXT,
			fallback_used BOOLEAN NOT NULL DEFAULT FALSE,
			delivered_via VARCHAR(10),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notification_queue_due
			ON notification_queue (scheduled_for) WHERE sent_at IS NULL AND failed_at IS NULL`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration: %w", err)
		}
	}
	return nil
}
