package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/wordclash-services/internal/gamesvc/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// AddMember inserts a member while holding the session row, so the phase
// check and join-order assignment cannot race with another join or a start.
//
// It fails with:
//   - ErrNotJoinable if the session is missing or no longer in the lobby.
//   - ErrDuplicate if the user already joined (unique_session_user constraint).
func (s *PgStore) AddMember(ctx context.Context, m *models.TeamMember) error {
	if m.SessionID <= 0 {
		return fmt.Errorf("invalid session ID: %d", m.SessionID)
	}
	if m.UserID == "" {
		return fmt.Errorf("user ID cannot be empty")
	}

	// CTE locks the session row and enforces phase='lobby'
	const query = `
WITH locked_session AS (
  SELECT id
  FROM game_sessions
  WHERE id = $1
    AND phase = 'lobby'
  FOR UPDATE
)
INSERT INTO team_members (session_id, team_id, user_id, lives, active, join_order)
SELECT ls.id, $2, $3, $4, $5,
       COALESCE((SELECT MAX(join_order) FROM team_members WHERE session_id = $1), 0) + 1
FROM locked_session ls
RETURNING id, join_order;
`
	err := s.db.QueryRow(ctx, query, m.SessionID, m.TeamID, m.UserID, m.Lives, m.Active).Scan(&m.ID, &m.JoinOrder)
	if err != nil {
		// zero rows means the session isn't in the lobby (or doesn't exist)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotJoinable
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return fmt.Errorf("user %s already joined session %d: %w", m.UserID, m.SessionID, ErrDuplicate)
			case "23503":
				return fmt.Errorf("invalid reference: %s: %w", pgErr.Message, ErrNotFound)
			}
		}
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

func (s *PgStore) RemoveMember(ctx context.Context, memberID int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM team_members WHERE id = $1`, memberID)
	if err != nil {
		return fmt.Errorf("remove member %d: %w", memberID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
