package engine

import (
	"context"

	"github.com/avvvet/wordclash-services/internal/comm"
	"github.com/avvvet/wordclash-services/internal/gamesvc/metrics"
	"github.com/avvvet/wordclash-services/internal/gamesvc/models"
)

// RoundOutcome reports what a round check decided.
type RoundOutcome struct {
	// Completed is set when a round was assigned to a team.
	Completed     bool  `json:"completed"`
	Round         int   `json:"round"`
	WinningTeamID int64 `json:"winning_team_id,omitempty"`
	MatchOver     bool  `json:"match_over"`
	Abandoned     bool  `json:"abandoned"`
}

// settle assigns the round when exactly one team has no active members. The
// session either completes with that team's opponent as winner or moves on to
// the next round. With both teams empty the match is abandoned. It is a no-op
// while both teams can still play.
func (e *Engine) settle(st *step) (RoundOutcome, error) {
	g := st.g
	s := g.Session

	var alive, out []*models.Team
	for _, t := range g.Teams {
		if len(g.ActiveMembers(t.ID)) > 0 {
			alive = append(alive, t)
		} else {
			out = append(out, t)
		}
	}
	switch {
	case len(out) == 0:
		return RoundOutcome{Round: s.Round}, nil
	case len(alive) == 0:
		e.abandon(st, "no active players")
		return RoundOutcome{Round: s.Round, Abandoned: true}, nil
	}

	winner := alive[0]
	winner.RoundsWon++
	st.team(winner)

	wid := winner.ID
	st.mut.Round = &models.RoundResult{
		SessionID:     s.ID,
		Round:         s.Round,
		WinningTeamID: wid,
		CompletedAt:   st.at,
	}
	res := RoundOutcome{Completed: true, Round: s.Round, WinningTeamID: wid}
	metrics.RecordRound()
	st.emit(comm.EventRoundCompleted, comm.RoundData{Round: s.Round, WinningTeamID: &wid})

	if winner.RoundsWon >= s.RoundsToWin {
		s.Phase = models.PhaseCompleted
		s.WinningTeamID = &wid
		s.ClearTurn()
		st.touch()
		res.MatchOver = true
		metrics.RecordMatchFinished("won")
		st.emit(comm.EventMatchCompleted, comm.RoundData{Round: s.Round, WinningTeamID: &wid})
		return res, nil
	}
	return res, e.startRound(st)
}

// AdvanceRound checks both teams and assigns the round if one is eliminated.
// Guesses and timeouts already do this on elimination, so a call is usually
// a no-op; it never assigns the same round twice.
func (e *Engine) AdvanceRound(ctx context.Context, sid int64) (RoundOutcome, error) {
	var out RoundOutcome
	err := e.mutate(ctx, sid, func(st *step) error {
		if err := playable(st.g.Session); err != nil {
			return err
		}
		var err error
		out, err = e.settle(st)
		if err != nil {
			return err
		}
		if out.Completed && st.g.Session.Phase == models.PhaseActive {
			e.rotate(st, "")
		}
		return nil
	})
	return out, err
}
