package models

import "time"

// WordGuess is an append-only record of one submitted guess.
type WordGuess struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"session_id"`
	TeamID    int64     `json:"team_id"`
	UserID    string    `json:"user_id"`
	Round     int       `json:"round"`
	Word      string    `json:"word"`
	Correct   bool      `json:"correct"`
	Score     float64   `json:"score"`
	Heuristic bool      `json:"heuristic"` // graded by the fallback heuristic instead of the model
	CreatedAt time.Time `json:"created_at"`
}
