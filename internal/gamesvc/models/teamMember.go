package models

// TeamMember represents the team_members table.
type TeamMember struct {
	ID        int64  `json:"id"`         // Primary key
	SessionID int64  `json:"session_id"` // FK to game_sessions(id)
	TeamID    int64  `json:"team_id"`    // FK to teams(id)
	UserID    string `json:"user_id"`
	Lives     int    `json:"lives"`      // mistakes remaining
	Active    bool   `json:"active"`
	JoinOrder int    `json:"join_order"` // rotation key, unique per session
	Left      bool   `json:"left"`       // left during an active match, never reactivated
}

// LoseLife takes one life and deactivates the member when none are left.
// It returns true when the member was eliminated by this call.
func (m *TeamMember) LoseLife() bool {
	if m.Lives > 0 {
		m.Lives--
	}
	if m.Lives == 0 && m.Active {
		m.Active = false
		return true
	}
	return false
}

// Leave deactivates the member for the rest of the match.
func (m *TeamMember) Leave() {
	m.Lives = 0
	m.Active = false
	m.Left = true
}
