package store

import (
	"context"
	"errors"
	"time"

	"github.com/avvvet/wordclash-services/internal/gamesvc/models"
)

var (
	// ErrNotFound is returned when a session or member does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when a unique constraint would be violated.
	ErrDuplicate = errors.New("store: duplicate")
	// ErrNotJoinable is returned when a member is added to a session that is not in the lobby.
	ErrNotJoinable = errors.New("store: session is not accepting members")
)

// Mutation is the set of records written by one engine step. Commit applies
// it in a single transaction; nil or empty fields are skipped.
type Mutation struct {
	Session *models.GameSession
	Teams   []*models.Team
	Members []*models.TeamMember
	Guess   *models.WordGuess
	Round   *models.RoundResult
}

// SessionStore is the system of record for sessions, teams, members and history.
type SessionStore interface {
	// CreateSession inserts the session and its teams, assigning ids.
	CreateSession(ctx context.Context, s *models.GameSession, teams []*models.Team) error
	GetSession(ctx context.Context, id int64) (*models.GameSession, error)
	// LoadGraph returns the session with its teams and members, ordered by slot and join order.
	LoadGraph(ctx context.Context, id int64) (*models.SessionGraph, error)
	DeleteSession(ctx context.Context, id int64) error
	Exists(ctx context.Context, id int64) (bool, error)

	// AddMember appends a member to a lobby session, assigning id and join order.
	AddMember(ctx context.Context, m *models.TeamMember) error
	RemoveMember(ctx context.Context, memberID int64) error

	Commit(ctx context.Context, m Mutation) error

	// ListGuesses returns guesses in submission order; round 0 lists every round.
	ListGuesses(ctx context.Context, sessionID int64, round int) ([]*models.WordGuess, error)
	ListRounds(ctx context.Context, sessionID int64) ([]*models.RoundResult, error)
	// ListOverdueTurns returns active sessions whose durable turn deadline is at or before now.
	ListOverdueTurns(ctx context.Context, now time.Time) ([]int64, error)
}
