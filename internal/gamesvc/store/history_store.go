package store

import (
	"context"
	"fmt"

	"github.com/avvvet/wordclash-services/internal/gamesvc/models"
)

func (s *PgStore) ListGuesses(ctx context.Context, sessionID int64, round int) ([]*models.WordGuess, error) {
	query := `
		SELECT id, session_id, team_id, user_id, round, word, correct, score, heuristic, created_at
		FROM word_guesses
		WHERE session_id = $1 AND ($2 = 0 OR round = $2)
		ORDER BY id
	`
	rows, err := s.db.Query(ctx, query, sessionID, round)
	if err != nil {
		return nil, fmt.Errorf("select guesses: %w", err)
	}
	defer rows.Close()

	var guesses []*models.WordGuess
	for rows.Next() {
		var g models.WordGuess
		err := rows.Scan(
			&g.ID,
			&g.SessionID,
			&g.TeamID,
			&g.UserID,
			&g.Round,
			&g.Word,
			&g.Correct,
			&g.Score,
			&g.Heuristic,
			&g.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		guesses = append(guesses, &g)
	}
	return guesses, rows.Err()
}

func (s *PgStore) ListRounds(ctx context.Context, sessionID int64) ([]*models.RoundResult, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, session_id, round, winning_team_id, completed_at
		FROM round_results
		WHERE session_id = $1
		ORDER BY round
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("select round results: %w", err)
	}
	defer rows.Close()

	var results []*models.RoundResult
	for rows.Next() {
		var r models.RoundResult
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Round, &r.WinningTeamID, &r.CompletedAt); err != nil {
			return nil, err
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}
