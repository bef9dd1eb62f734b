package models

import "time"

// RoundResult is an append-only record of one completed round.
type RoundResult struct {
	ID            int64     `json:"id"`
	SessionID     int64     `json:"session_id"`
	Round         int       `json:"round"`
	WinningTeamID int64     `json:"winning_team_id"`
	CompletedAt   time.Time `json:"completed_at"`
}
