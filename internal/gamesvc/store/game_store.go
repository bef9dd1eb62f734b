package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avvvet/wordclash-services/internal/gamesvc/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is the Postgres SessionStore.
type PgStore struct {
	db *pgxpool.Pool
}

func NewPgStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

const sessionColumns = `id, language, turn_seconds, max_lives, rounds_to_win, round, secret_word,
	threshold, phase, winning_team_id, current_player, turn_deadline, created_at, updated_at`

func scanSession(row pgx.Row) (*models.GameSession, error) {
	s := &models.GameSession{}
	var deadline *time.Time
	err := row.Scan(
		&s.ID,
		&s.Language,
		&s.TurnSeconds,
		&s.MaxLives,
		&s.RoundsToWin,
		&s.Round,
		&s.SecretWord,
		&s.Threshold,
		&s.Phase,
		&s.WinningTeamID,
		&s.CurrentPlayer,
		&deadline,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if deadline != nil {
		s.TurnDeadline = *deadline
	}
	return s, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (s *PgStore) CreateSession(ctx context.Context, gs *models.GameSession, teams []*models.Team) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO game_sessions (language, turn_seconds, max_lives, rounds_to_win, threshold, phase)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, gs.Language, gs.TurnSeconds, gs.MaxLives, gs.RoundsToWin, gs.Threshold, gs.Phase).
		Scan(&gs.ID, &gs.CreatedAt, &gs.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for _, t := range teams {
		t.SessionID = gs.ID
		err := tx.QueryRow(ctx, `
			INSERT INTO teams (session_id, slot, name, color)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, t.SessionID, t.Slot, t.Name, t.Color).Scan(&t.ID)
		if err != nil {
			return fmt.Errorf("insert team %d: %w", t.Slot, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PgStore) GetSession(ctx context.Context, id int64) (*models.GameSession, error) {
	gs, err := scanSession(s.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM game_sessions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session by ID: %w", err)
	}
	return gs, nil
}

func (s *PgStore) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM game_sessions WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check session %d: %w", id, err)
	}
	return exists, nil
}

func (s *PgStore) LoadGraph(ctx context.Context, id int64) (*models.SessionGraph, error) {
	gs, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	g := &models.SessionGraph{Session: gs}

	rows, err := s.db.Query(ctx, `
		SELECT id, session_id, slot, name, color, rounds_won, revival_used, last_player
		FROM teams
		WHERE session_id = $1
		ORDER BY slot
	`, id)
	if err != nil {
		return nil, fmt.Errorf("load teams: %w", err)
	}
	for rows.Next() {
		t := &models.Team{}
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Slot, &t.Name, &t.Color, &t.RoundsWon, &t.RevivalUsed, &t.LastPlayer); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan team: %w", err)
		}
		g.Teams = append(g.Teams, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	rows, err = s.db.Query(ctx, `
		SELECT id, session_id, team_id, user_id, lives, active, join_order, left_match
		FROM team_members
		WHERE session_id = $1
		ORDER BY join_order
	`, id)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		m := &models.TeamMember{}
		if err := rows.Scan(&m.ID, &m.SessionID, &m.TeamID, &m.UserID, &m.Lives, &m.Active, &m.JoinOrder, &m.Left); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		g.Members = append(g.Members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return g, nil
}

func (s *PgStore) DeleteSession(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM game_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Commit writes every record of the mutation in one transaction.
func (s *PgStore) Commit(ctx context.Context, m Mutation) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if gs := m.Session; gs != nil {
		tag, err := tx.Exec(ctx, `
			UPDATE game_sessions
			SET round = $2, secret_word = $3, phase = $4, winning_team_id = $5,
			    current_player = $6, turn_deadline = $7, updated_at = now()
			WHERE id = $1
		`, gs.ID, gs.Round, gs.SecretWord, gs.Phase, gs.WinningTeamID, gs.CurrentPlayer, nullableTime(gs.TurnDeadline))
		if err != nil {
			return fmt.Errorf("update session %d: %w", gs.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
	}

	for _, t := range m.Teams {
		if _, err := tx.Exec(ctx, `
			UPDATE teams SET rounds_won = $2, revival_used = $3, last_player = $4 WHERE id = $1
		`, t.ID, t.RoundsWon, t.RevivalUsed, t.LastPlayer); err != nil {
			return fmt.Errorf("update team %d: %w", t.ID, err)
		}
	}

	for _, mb := range m.Members {
		if _, err := tx.Exec(ctx, `
			UPDATE team_members SET lives = $2, active = $3, left_match = $4 WHERE id = $1
		`, mb.ID, mb.Lives, mb.Active, mb.Left); err != nil {
			return fmt.Errorf("update member %d: %w", mb.ID, err)
		}
	}

	if g := m.Guess; g != nil {
		err := tx.QueryRow(ctx, `
			INSERT INTO word_guesses (session_id, team_id, user_id, round, word, correct, score, heuristic, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id
		`, g.SessionID, g.TeamID, g.UserID, g.Round, g.Word, g.Correct, g.Score, g.Heuristic, g.CreatedAt).Scan(&g.ID)
		if err != nil {
			return fmt.Errorf("insert guess: %w", err)
		}
	}

	if r := m.Round; r != nil {
		err := tx.QueryRow(ctx, `
			INSERT INTO round_results (session_id, round, winning_team_id, completed_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, r.SessionID, r.Round, r.WinningTeamID, r.CompletedAt).Scan(&r.ID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return fmt.Errorf("round %d already recorded: %w", r.Round, ErrDuplicate)
			}
			return fmt.Errorf("insert round result: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PgStore) ListOverdueTurns(ctx context.Context, now time.Time) ([]int64, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id
		FROM game_sessions
		WHERE phase = 'active'
		  AND turn_deadline IS NOT NULL
		  AND turn_deadline <= $1
		ORDER BY turn_deadline
	`, now)
	if err != nil {
		return nil, fmt.Errorf("select overdue turns: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
