package engine

import (
	"context"
	"fmt"

	"github.com/avvvet/wordclash-services/internal/comm"
	"github.com/avvvet/wordclash-services/internal/gamesvc/models"
)

// LeaveResult reports what leaving did to the session.
type LeaveResult struct {
	// Deleted is set when the last lobby member left and the session was removed.
	Deleted   bool `json:"deleted"`
	Abandoned bool `json:"abandoned"`
}

// Leave takes a player out of a session. In the lobby the member is removed
// and an emptied session is deleted; teams are kept for later joiners.
// During a match the member stays on record but is out for good, and the
// match is abandoned when a team has nobody left to play.
func (e *Engine) Leave(ctx context.Context, sid int64, userID string) (LeaveResult, error) {
	var res LeaveResult
	err := e.mutate(ctx, sid, func(st *step) error {
		m := st.g.MemberByUser(userID)
		switch st.g.Session.Phase {
		case models.PhaseLobby:
			if m == nil {
				return ErrNotInGame
			}
			return e.leaveLobby(ctx, st, m, &res)
		case models.PhaseActive:
			if m == nil {
				return ErrNotInGame
			}
			e.leaveMatch(st, m, &res)
			return nil
		default:
			return ErrInactiveSession
		}
	})
	return res, err
}

func (e *Engine) leaveLobby(ctx context.Context, st *step, m *models.TeamMember, res *LeaveResult) error {
	sid := st.g.Session.ID
	if err := e.store.RemoveMember(ctx, m.ID); err != nil {
		return fmt.Errorf("remove member %d from session %d: %w", m.ID, sid, err)
	}
	st.emit(comm.EventPlayerLeft, comm.MemberData{UserID: m.UserID, TeamID: m.TeamID})

	remaining := st.g.Members[:0]
	for _, x := range st.g.Members {
		if x.ID != m.ID {
			remaining = append(remaining, x)
		}
	}
	st.g.Members = remaining

	if len(remaining) == 0 {
		if err := e.store.DeleteSession(ctx, sid); err != nil {
			return fmt.Errorf("delete empty session %d: %w", sid, err)
		}
		st.deleted = true
		res.Deleted = true
	}
	return nil
}

func (e *Engine) leaveMatch(st *step, m *models.TeamMember, res *LeaveResult) {
	s := st.g.Session
	wasCurrent := s.CurrentPlayer == m.UserID

	m.Leave()
	st.member(m)
	st.emit(comm.EventPlayerLeft, comm.MemberData{UserID: m.UserID, TeamID: m.TeamID})
	if wasCurrent {
		s.ClearTurn()
		st.touch()
	}

	for _, t := range st.g.Teams {
		if len(st.g.ActiveMembers(t.ID)) == 0 {
			e.abandon(st, "a team has no active players")
			res.Abandoned = true
			return
		}
	}
	if wasCurrent {
		e.rotate(st, m.UserID)
	}
}
