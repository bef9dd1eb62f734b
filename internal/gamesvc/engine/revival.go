package engine

import (
	"context"

	"github.com/avvvet/wordclash-services/internal/comm"
	"github.com/avvvet/wordclash-services/internal/gamesvc/metrics"
)

const (
	revivalDie     = 6
	revivalSuccess = 4
)

// RevivalResult reports a revival roll.
type RevivalResult struct {
	TeamID  int64 `json:"team_id"`
	Roll    int   `json:"roll"`
	Success bool  `json:"success"`
}

// ReviveTeam rolls a die for the caller's team once per match. On 4 or more
// every active member gains up to half the life maximum. The one-shot flag is
// set whatever the roll.
func (e *Engine) ReviveTeam(ctx context.Context, sid int64, userID string, teamID int64) (RevivalResult, error) {
	var res RevivalResult
	err := e.mutate(ctx, sid, func(st *step) error {
		s := st.g.Session
		if err := playable(s); err != nil {
			return err
		}
		m, err := participant(st.g, userID)
		if err != nil {
			return err
		}
		t := st.g.Team(teamID)
		if t == nil {
			return ErrTeamNotFound
		}
		if m.TeamID != t.ID {
			return ErrNotYourTeam
		}
		if t.RevivalUsed {
			return ErrRevivalUsed
		}

		roll := e.rng.Intn(revivalDie) + 1
		res = RevivalResult{TeamID: t.ID, Roll: roll, Success: roll >= revivalSuccess}

		t.RevivalUsed = true
		st.team(t)
		if res.Success {
			gain := max(s.MaxLives/2, 1)
			for _, m := range st.g.ActiveMembers(t.ID) {
				m.Lives = min(m.Lives+gain, s.MaxLives)
				st.member(m)
			}
		}
		st.emit(comm.EventTeamRevival, comm.RevivalData{TeamID: t.ID, Roll: roll, Success: res.Success})
		return nil
	})
	if err != nil {
		return RevivalResult{}, err
	}
	metrics.RecordRevival(res.Success)
	return res, nil
}
