package engine

import (
	"errors"

	"github.com/avvvet/wordclash-services/internal/gamesvc/lock"
)

// Kind classifies engine failures. Every kind except LockTimeout and
// DependencyFailure is an expected, user-facing outcome.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindInvalidTurn       Kind = "invalid_turn"
	KindTurnExpired       Kind = "turn_expired"
	KindPlayerNotEligible Kind = "player_not_eligible"
	KindTerminalState     Kind = "terminal_state"
	KindInvalidArgument   Kind = "invalid_argument"
	KindLockTimeout       Kind = "lock_timeout"
	KindDependencyFailure Kind = "dependency_failure"
)

// Error is a typed precondition failure.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

var (
	ErrSessionNotFound  = &Error{KindNotFound, "session not found"}
	ErrTeamNotFound     = &Error{KindNotFound, "team not found"}
	ErrInactiveSession  = &Error{KindTerminalState, "session is no longer active"}
	ErrRevivalUsed      = &Error{KindTerminalState, "team revival already used"}
	ErrMatchNotStarted  = &Error{KindInvalidTurn, "match has not started"}
	ErrNoActiveTurn     = &Error{KindInvalidTurn, "no active turn"}
	ErrNotYourTurn      = &Error{KindInvalidTurn, "not your turn"}
	ErrTurnExpired      = &Error{KindTurnExpired, "turn has expired"}
	ErrNotInGame        = &Error{KindPlayerNotEligible, "player is not in this session"}
	ErrPlayerInactive   = &Error{KindPlayerNotEligible, "player is not active"}
	ErrAlreadyJoined    = &Error{KindPlayerNotEligible, "player already joined this session"}
	ErrNotYourTeam      = &Error{KindPlayerNotEligible, "player is not on this team"}
	ErrMatchInProgress  = &Error{KindPlayerNotEligible, "match already started"}
	ErrNotEnoughPlayers = &Error{KindInvalidArgument, "each team needs at least one player"}
	ErrInvalidOptions   = &Error{KindInvalidArgument, "invalid session options"}
)

// KindOf classifies err. Errors that are not engine errors are dependency failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, lock.ErrTimeout) {
		return KindLockTimeout
	}
	return KindDependencyFailure
}

// Expected reports whether err is a user-facing precondition failure.
func Expected(err error) bool {
	switch KindOf(err) {
	case "", KindLockTimeout, KindDependencyFailure:
		return false
	}
	return true
}
