package models

import (
	"time"
)

// Phase is the lifecycle stage of a game session.
type Phase string

const (
	PhaseLobby     Phase = "lobby"
	PhaseActive    Phase = "active"
	PhaseCompleted Phase = "completed"
	PhaseAbandoned Phase = "abandoned"
)

// CanTransition reports whether moving from p to next is a legal phase change.
func (p Phase) CanTransition(next Phase) bool {
	switch p {
	case PhaseLobby:
		return next == PhaseActive || next == PhaseAbandoned
	case PhaseActive:
		return next == PhaseCompleted || next == PhaseAbandoned
	default:
		return false
	}
}

// Terminal reports whether no further game action is possible.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseAbandoned
}

// GameSession represents the game_sessions table in the database.
type GameSession struct {
	ID            int64     `json:"id"`             // Primary key
	Language      string    `json:"language"`       // e.g. "en"
	TurnSeconds   int       `json:"turn_seconds"`   // per-turn time limit
	MaxLives      int       `json:"max_lives"`      // lives per player per round
	RoundsToWin   int       `json:"rounds_to_win"`  // round wins needed for the match
	Round         int       `json:"round"`          // current round number, 0 while in lobby
	SecretWord    string    `json:"-"`              // never sent to clients
	Threshold     float64   `json:"threshold"`      // similarity threshold, 0 = validator default
	Phase         Phase     `json:"phase"`
	WinningTeamID *int64    `json:"winning_team_id"` // FK to teams(id), set on completion
	CurrentPlayer string    `json:"current_player"`  // durable copy of the turn pointer
	TurnDeadline  time.Time `json:"turn_deadline"`   // zero when no turn is running
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasTurn reports whether the durable turn pointer is set.
func (s *GameSession) HasTurn() bool {
	return s.CurrentPlayer != "" && !s.TurnDeadline.IsZero()
}

// ClearTurn drops the durable turn pointer.
func (s *GameSession) ClearTurn() {
	s.CurrentPlayer = ""
	s.TurnDeadline = time.Time{}
}
