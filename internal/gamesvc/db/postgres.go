package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var DB *pgxpool.Pool

// Connect initializes the connection pool
func Connect(dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	// Try pinging to make sure it's valid
	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	DB = pool

	return pool, nil
}

// ClosePool is for graceful shutdown
func ClosePool() {
	if DB != nil {
		DB.Close()
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS game_sessions (
    id              BIGSERIAL PRIMARY KEY,
    language        TEXT NOT NULL,
    turn_seconds    INT NOT NULL,
    max_lives       INT NOT NULL,
    rounds_to_win   INT NOT NULL,
    round           INT NOT NULL DEFAULT 0,
    secret_word     TEXT NOT NULL DEFAULT '',
    threshold       DOUBLE PRECISION NOT NULL DEFAULT 0,
    phase           TEXT NOT NULL DEFAULT 'lobby',
    winning_team_id BIGINT,
    current_player  TEXT NOT NULL DEFAULT '',
    turn_deadline   TIMESTAMPTZ,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_game_sessions_turn_deadline
    ON game_sessions (turn_deadline) WHERE phase = 'active';

CREATE TABLE IF NOT EXISTS teams (
    id           BIGSERIAL PRIMARY KEY,
    session_id   BIGINT NOT NULL REFERENCES game_sessions(id) ON DELETE CASCADE,
    slot         INT NOT NULL,
    name         TEXT NOT NULL,
    color        TEXT NOT NULL DEFAULT '',
    rounds_won   INT NOT NULL DEFAULT 0,
    revival_used BOOLEAN NOT NULL DEFAULT false,
    last_player  TEXT NOT NULL DEFAULT '',
    CONSTRAINT unique_session_slot UNIQUE (session_id, slot)
);

CREATE TABLE IF NOT EXISTS team_members (
    id         BIGSERIAL PRIMARY KEY,
    session_id BIGINT NOT NULL REFERENCES game_sessions(id) ON DELETE CASCADE,
    team_id    BIGINT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
    user_id    TEXT NOT NULL,
    lives      INT NOT NULL,
    active     BOOLEAN NOT NULL DEFAULT true,
    join_order INT NOT NULL,
    left_match BOOLEAN NOT NULL DEFAULT false,
    CONSTRAINT unique_session_user UNIQUE (session_id, user_id)
);

CREATE TABLE IF NOT EXISTS word_guesses (
    id         BIGSERIAL PRIMARY KEY,
    session_id BIGINT NOT NULL REFERENCES game_sessions(id) ON DELETE CASCADE,
    team_id    BIGINT NOT NULL,
    user_id    TEXT NOT NULL,
    round      INT NOT NULL,
    word       TEXT NOT NULL,
    correct    BOOLEAN NOT NULL,
    score      DOUBLE PRECISION NOT NULL DEFAULT 0,
    heuristic  BOOLEAN NOT NULL DEFAULT false,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_word_guesses_session_round ON word_guesses (session_id, round);

CREATE TABLE IF NOT EXISTS round_results (
    id              BIGSERIAL PRIMARY KEY,
    session_id      BIGINT NOT NULL REFERENCES game_sessions(id) ON DELETE CASCADE,
    round           INT NOT NULL,
    winning_team_id BIGINT NOT NULL,
    completed_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT unique_session_round UNIQUE (session_id, round)
);
`

// Migrate creates the game tables when they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
