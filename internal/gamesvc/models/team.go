package models

// Team represents the teams table. Every session owns exactly two teams, slot 1 and slot 2.
type Team struct {
	ID          int64  `json:"id"`         // Primary key
	SessionID   int64  `json:"session_id"` // FK to game_sessions(id)
	Slot        int    `json:"slot"`       // 1 or 2, rotation starts from the lowest slot
	Name        string `json:"name"`
	Color       string `json:"color"`
	RoundsWon   int    `json:"rounds_won"`
	RevivalUsed bool   `json:"revival_used"`
	LastPlayer  string `json:"last_player"` // member who last took a turn for this team
}
