package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/wordclash-services/internal/comm"
	"github.com/avvvet/wordclash-services/internal/gamesvc/mirror"
	"github.com/avvvet/wordclash-services/internal/gamesvc/models"
	"github.com/avvvet/wordclash-services/internal/gamesvc/store"
	log "github.com/sirupsen/logrus"
)

// SessionOptions configures a new session. Zero values take the defaults.
type SessionOptions struct {
	Language    string  `json:"language"`
	TurnSeconds int     `json:"turn_seconds"`
	MaxLives    int     `json:"max_lives"`
	RoundsToWin int     `json:"rounds_to_win"`
	Threshold   float64 `json:"threshold"`
}

const (
	defaultLanguage    = "en"
	defaultTurnSeconds = 30
	defaultMaxLives    = 3
	defaultRoundsToWin = 2
)

var defaultTeams = [2]struct{ name, color string }{
	{"Red", "#e74c3c"},
	{"Blue", "#3498db"},
}

func (o *SessionOptions) normalize() {
	if o.Language == "" {
		o.Language = defaultLanguage
	}
	if o.TurnSeconds == 0 {
		o.TurnSeconds = defaultTurnSeconds
	}
	if o.MaxLives == 0 {
		o.MaxLives = defaultMaxLives
	}
	if o.RoundsToWin == 0 {
		o.RoundsToWin = defaultRoundsToWin
	}
}

func invalid(format string, args ...interface{}) error {
	return &Error{Kind: KindInvalidArgument, Reason: fmt.Sprintf(format, args...)}
}

func (e *Engine) checkOptions(o SessionOptions) error {
	switch {
	case !e.words.Supports(o.Language):
		return invalid("unsupported language %q", o.Language)
	case o.TurnSeconds < 5 || o.TurnSeconds > 600:
		return invalid("turn_seconds must be between 5 and 600")
	case o.MaxLives < 1 || o.MaxLives > 10:
		return invalid("max_lives must be between 1 and 10")
	case o.RoundsToWin < 1 || o.RoundsToWin > 9:
		return invalid("rounds_to_win must be between 1 and 9")
	case o.Threshold < 0 || o.Threshold > 1:
		return invalid("threshold must be between 0 and 1")
	}
	return nil
}

// CreateSession opens a lobby with two empty teams.
func (e *Engine) CreateSession(ctx context.Context, opts SessionOptions) (mirror.Snapshot, error) {
	opts.normalize()
	if opts.Threshold == 0 {
		opts.Threshold = e.threshold
	}
	if err := e.checkOptions(opts); err != nil {
		return mirror.Snapshot{}, err
	}

	s := &models.GameSession{
		Language:    opts.Language,
		TurnSeconds: opts.TurnSeconds,
		MaxLives:    opts.MaxLives,
		RoundsToWin: opts.RoundsToWin,
		Threshold:   opts.Threshold,
		Phase:       models.PhaseLobby,
	}
	teams := make([]*models.Team, 0, len(defaultTeams))
	for i, d := range defaultTeams {
		teams = append(teams, &models.Team{Slot: i + 1, Name: d.name, Color: d.color})
	}
	if err := e.store.CreateSession(ctx, s, teams); err != nil {
		return mirror.Snapshot{}, fmt.Errorf("create session: %w", err)
	}

	g := &models.SessionGraph{Session: s, Teams: teams}
	if err := e.mirror.Refresh(ctx, g); err != nil {
		log.WithFields(log.Fields{"session": s.ID}).Warnf("refresh mirror: %s", err)
	}
	return mirror.FromGraph(g), nil
}

// JoinTeam adds a player to the team in slot (1 or 2) while the session is in the lobby.
func (e *Engine) JoinTeam(ctx context.Context, sid int64, userID string, slot int) (*models.TeamMember, error) {
	if userID == "" {
		return nil, invalid("user id is required")
	}

	var joined *models.TeamMember
	err := e.mutate(ctx, sid, func(st *step) error {
		s := st.g.Session
		switch {
		case s.Phase == models.PhaseActive:
			return ErrMatchInProgress
		case s.Phase.Terminal():
			return ErrInactiveSession
		}
		if st.g.MemberByUser(userID) != nil {
			return ErrAlreadyJoined
		}
		t := st.g.TeamBySlot(slot)
		if t == nil {
			return ErrTeamNotFound
		}

		m := &models.TeamMember{
			SessionID: sid,
			TeamID:    t.ID,
			UserID:    userID,
			Lives:     s.MaxLives,
			Active:    true,
		}
		if err := e.store.AddMember(ctx, m); err != nil {
			switch {
			case errors.Is(err, store.ErrDuplicate):
				return ErrAlreadyJoined
			case errors.Is(err, store.ErrNotJoinable):
				return ErrMatchInProgress
			case errors.Is(err, store.ErrNotFound):
				return ErrTeamNotFound
			}
			return fmt.Errorf("add member to session %d: %w", sid, err)
		}

		st.g.Members = append(st.g.Members, m)
		st.emit(comm.EventPlayerJoined, comm.MemberData{UserID: userID, TeamID: t.ID})
		joined = m
		return nil
	})
	return joined, err
}

// StartMatch moves a lobby to its first round and starts the first turn.
// Only a player who joined the session may start it.
func (e *Engine) StartMatch(ctx context.Context, sid int64, userID string) (mirror.Snapshot, error) {
	var snap mirror.Snapshot
	err := e.mutate(ctx, sid, func(st *step) error {
		s := st.g.Session
		switch {
		case s.Phase == models.PhaseActive:
			return ErrMatchInProgress
		case s.Phase.Terminal():
			return ErrInactiveSession
		}
		if _, err := participant(st.g, userID); err != nil {
			return err
		}
		for _, t := range st.g.Teams {
			if len(st.g.MembersOf(t.ID)) == 0 {
				return ErrNotEnoughPlayers
			}
		}

		s.Phase = models.PhaseActive
		s.Round = 0
		if err := e.startRound(st); err != nil {
			return err
		}
		st.emit(comm.EventMatchStarted, comm.RoundData{Round: s.Round})
		e.rotate(st, "")
		snap = mirror.FromGraph(st.g)
		return nil
	})
	return snap, err
}

// EndMatch abandons a session without a winner on behalf of one of its
// players. Ending a finished session is a TerminalState error.
func (e *Engine) EndMatch(ctx context.Context, sid int64, userID string) error {
	return e.mutate(ctx, sid, func(st *step) error {
		if !st.g.Session.Phase.CanTransition(models.PhaseAbandoned) {
			return ErrInactiveSession
		}
		if _, err := participant(st.g, userID); err != nil {
			return err
		}
		e.abandon(st, "ended")
		return nil
	})
}

// State returns the mirrored snapshot, rebuilding it from the store on a miss.
func (e *Engine) State(ctx context.Context, sid int64) (mirror.Snapshot, error) {
	snap, ok, err := e.mirror.Get(ctx, sid)
	if err != nil {
		log.WithFields(log.Fields{"session": sid}).Warnf("read mirror, loading from store: %s", err)
	}
	if err == nil && ok {
		return snap, nil
	}

	g, err := e.load(ctx, sid)
	if err != nil {
		return mirror.Snapshot{}, err
	}
	if err := e.mirror.Refresh(ctx, g); err != nil {
		log.WithFields(log.Fields{"session": sid}).Warnf("refresh mirror: %s", err)
	}
	return mirror.FromGraph(g), nil
}

// Guesses lists a session's guesses; round 0 lists every round.
func (e *Engine) Guesses(ctx context.Context, sid int64, round int) ([]*models.WordGuess, error) {
	if err := e.exists(ctx, sid); err != nil {
		return nil, err
	}
	guesses, err := e.store.ListGuesses(ctx, sid, round)
	if err != nil {
		return nil, fmt.Errorf("list guesses for session %d: %w", sid, err)
	}
	return guesses, nil
}

func (e *Engine) Rounds(ctx context.Context, sid int64) ([]*models.RoundResult, error) {
	if err := e.exists(ctx, sid); err != nil {
		return nil, err
	}
	rounds, err := e.store.ListRounds(ctx, sid)
	if err != nil {
		return nil, fmt.Errorf("list rounds for session %d: %w", sid, err)
	}
	return rounds, nil
}

func (e *Engine) exists(ctx context.Context, sid int64) error {
	ok, err := e.store.Exists(ctx, sid)
	if err != nil {
		return fmt.Errorf("check session %d: %w", sid, err)
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}
