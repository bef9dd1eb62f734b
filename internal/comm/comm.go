package comm

import (
	"encoding/json"
	"time"
)

// NATS subjects shared by the services.
const (
	TopicSocketService = "socket.service" // client commands relayed by socketsvc
	TopicGameService   = "game.service"   // replies addressed to one socket
	TopicGameEvents    = "game.events"    // session-scoped events for every listener
)

// Client command types carried in WSMessage.Type.
const (
	CmdJoinRoom           = "join-room"
	CmdCreateSession      = "create-session"
	CmdJoinTeam           = "join-team"
	CmdStartMatch         = "start-match"
	CmdSubmitGuess        = "submit-guess"
	CmdReviveTeam         = "revive-team"
	CmdExtendTurn         = "extend-turn"
	CmdLeaveSession       = "leave-session"
	CmdGetState           = "get-state"
	CmdPlayerDisconnected = "player-disconnected"
)

// Event types published on TopicGameEvents.
const (
	EventPlayerJoined   = "player-joined"
	EventPlayerLeft     = "player-left"
	EventMatchStarted   = "match-started"
	EventTurnStarted    = "turn-started"
	EventGuessSubmitted = "guess-submitted"
	EventTurnTimeout    = "turn-timeout"
	EventTurnExtended   = "turn-extended"
	EventRoundCompleted = "round-completed"
	EventMatchCompleted = "match-completed"
	EventMatchAbandoned = "match-abandoned"
	EventTeamRevival    = "team-revival"
)

type WSMessage struct {
	Type     string          `json:"type"` // e.g. "submit-guess", "join-team"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid"`
	UserId   string          `json:"userid,omitempty"`
}

// GameEvent is a session-scoped notification.
type GameEvent struct {
	Type      string          `json:"type"`
	SessionID int64           `json:"session_id"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Res is a generic reply to a command.
type Res struct {
	Status bool        `json:"status"`
	Error  string      `json:"error,omitempty"`
	Kind   string      `json:"kind,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

type SessionRef struct {
	SessionID int64 `json:"session_id"`
}

type CreateSessionReq struct {
	Language    string  `json:"language"`
	TurnSeconds int     `json:"turn_seconds"`
	MaxLives    int     `json:"max_lives"`
	RoundsToWin int     `json:"rounds_to_win"`
	Threshold   float64 `json:"threshold"`
}

type JoinTeamReq struct {
	SessionID int64 `json:"session_id"`
	Slot      int   `json:"slot"`
}

type GuessReq struct {
	SessionID int64  `json:"session_id"`
	Word      string `json:"word"`
}

type ReviveReq struct {
	SessionID int64 `json:"session_id"`
	TeamID    int64 `json:"team_id"`
}

type ExtendReq struct {
	SessionID int64 `json:"session_id"`
	Seconds   int   `json:"seconds"`
}

// TurnData accompanies turn-started, turn-extended and turn-timeout events.
type TurnData struct {
	Player   string    `json:"player"`
	Deadline time.Time `json:"deadline"`
	Previous string    `json:"previous,omitempty"`
}

// RoundData accompanies round-completed, match-completed and match-abandoned events.
type RoundData struct {
	Round         int    `json:"round"`
	WinningTeamID *int64 `json:"winning_team_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// GuessData accompanies guess-submitted events.
type GuessData struct {
	UserID     string  `json:"user_id"`
	TeamID     int64   `json:"team_id"`
	Word       string  `json:"word"`
	Correct    bool    `json:"correct"`
	Score      float64 `json:"score"`
	Heuristic  bool    `json:"heuristic"`
	LivesLeft  int     `json:"lives_left"`
	Eliminated bool    `json:"eliminated"`
}

// MemberData accompanies player-joined and player-left events.
type MemberData struct {
	UserID string `json:"user_id"`
	TeamID int64  `json:"team_id"`
}

// RevivalData accompanies team-revival events.
type RevivalData struct {
	TeamID  int64 `json:"team_id"`
	Roll    int   `json:"roll"`
	Success bool  `json:"success"`
}
