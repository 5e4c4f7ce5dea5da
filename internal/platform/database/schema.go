package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate applies the full schema. It is invoked once by cmd/migrate at
// deploy time; the API server never creates relations on its own.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		username VARCHAR(50) UNIQUE NOT NULL,
		email VARCHAR(255) UNIQUE NOT NULL,
		hashed_password VARCHAR(255) NOT NULL,
		role VARCHAR(20) NOT NULL DEFAULT 'user',
		avatar_url TEXT,
		rating INT NOT NULL DEFAULT 1200,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS languages (
		id UUID PRIMARY KEY,
		name VARCHAR(50) NOT NULL,
		slug VARCHAR(50) UNIQUE NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS problems (
		id UUID PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		slug VARCHAR(255) UNIQUE NOT NULL,
		description TEXT NOT NULL,
		difficulty VARCHAR(10) NOT NULL CHECK (difficulty IN ('Easy', 'Medium', 'Hard')),
		created_by UUID REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS examples (
		id UUID PRIMARY KEY,
		problem_id UUID NOT NULL REFERENCES problems(id) ON DELETE CASCADE,
		input TEXT NOT NULL,
		expected_output TEXT,
		explanation TEXT,
		sort_order INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS battles (
		id UUID PRIMARY KEY,
		creator_id UUID NOT NULL REFERENCES users(id),
		defender_id UUID REFERENCES users(id),
		problem_id UUID NOT NULL REFERENCES problems(id),
		language_slug VARCHAR(50) NOT NULL,
		difficulty VARCHAR(10) NOT NULL CHECK (difficulty IN ('Easy', 'Medium', 'Hard')),
		duration_minutes INT NOT NULL CHECK (duration_minutes > 0),
		rated BOOLEAN NOT NULL DEFAULT FALSE,
		status VARCHAR(20) NOT NULL DEFAULT 'waiting'
			CHECK (status IN ('waiting', 'in_progress', 'completed')),
		winner_id UUID REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		started_at TIMESTAMPTZ,
		ended_at TIMESTAMPTZ,
		CHECK (defender_id IS NULL OR defender_id <> creator_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_battles_status ON battles(status)`,
	`CREATE INDEX IF NOT EXISTS idx_battles_creator ON battles(creator_id)`,
	`CREATE INDEX IF NOT EXISTS idx_battles_defender ON battles(defender_id)`,

	`CREATE TABLE IF NOT EXISTS solutions (
		id UUID PRIMARY KEY,
		battle_id UUID NOT NULL REFERENCES battles(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users(id),
		code TEXT NOT NULL,
		submitted_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (battle_id, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS rating_history (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id),
		battle_id UUID NOT NULL REFERENCES battles(id),
		rating_before INT NOT NULL,
		rating_after INT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE INDEX IF NOT EXISTS idx_rating_history_user ON rating_history(user_id)`,

	`CREATE TABLE IF NOT EXISTS feedback (
		id UUID PRIMARY KEY,
		battle_id UUID NOT NULL REFERENCES battles(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users(id),
		text TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`INSERT INTO languages (id, name, slug) VALUES
		(gen_random_uuid(), 'Python 3', 'python3'),
		(gen_random_uuid(), 'JavaScript', 'javascript'),
		(gen_random_uuid(), 'Go', 'go'),
		(gen_random_uuid(), 'C++', 'cpp'),
		(gen_random_uuid(), 'Java', 'java')
	ON CONFLICT (slug) DO NOTHING`,
}
