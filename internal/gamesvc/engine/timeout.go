package engine

import (
	"context"
	"time"

	"github.com/avvvet/wordclash-services/internal/comm"
	"github.com/avvvet/wordclash-services/internal/gamesvc/metrics"
	"github.com/avvvet/wordclash-services/internal/gamesvc/models"
	log "github.com/sirupsen/logrus"
)

// HandleTimeout penalizes the current player of an expired turn and rotates.
// It reports whether a penalty was applied; calling it again for the same
// turn, or when no turn has expired, does nothing.
func (e *Engine) HandleTimeout(ctx context.Context, sid int64) (bool, error) {
	applied := false
	err := e.mutate(ctx, sid, func(st *step) error {
		s := st.g.Session
		if s.Phase != models.PhaseActive {
			return nil
		}
		cur, ok := e.currentTurn(ctx, st.g, true)
		if !ok || st.at.Before(cur.Deadline) {
			return nil
		}

		from := cur.Player
		eliminated := false
		lives := 0
		if m := st.g.MemberByUser(cur.Player); m != nil && m.Active {
			eliminated = m.LoseLife()
			lives = m.Lives
			st.member(m)
		}
		st.emit(comm.EventTurnTimeout, comm.TurnData{Player: cur.Player, Deadline: cur.Deadline})

		if eliminated {
			out, err := e.settle(st)
			if err != nil {
				return err
			}
			if out.Completed {
				from = ""
			}
		}
		if s.Phase == models.PhaseActive {
			e.rotate(st, from)
		}

		applied = true
		log.WithFields(log.Fields{"session": sid, "player": cur.Player, "lives": lives}).Debug("turn timed out")
		return nil
	})
	if err != nil {
		return false, err
	}
	if applied {
		metrics.RecordTimeout()
	}
	return applied, nil
}

// ExtendTurn pushes the running turn's deadline back by seconds, at most one
// turn length. The durable deadline moves with the timer so timeout handling
// and the maintenance sweep honor the extension. Any player still in the
// match may extend; an expired turn cannot be.
func (e *Engine) ExtendTurn(ctx context.Context, sid int64, userID string, seconds int) (time.Time, error) {
	var deadline time.Time
	err := e.mutate(ctx, sid, func(st *step) error {
		s := st.g.Session
		if err := playable(s); err != nil {
			return err
		}
		if _, err := participant(st.g, userID); err != nil {
			return err
		}
		if seconds < 1 || seconds > s.TurnSeconds {
			return invalid("seconds must be between 1 and %d", s.TurnSeconds)
		}
		cur, ok := e.currentTurn(ctx, st.g, true)
		if !ok {
			return ErrNoActiveTurn
		}
		if !st.at.Before(cur.Deadline) {
			return ErrTurnExpired
		}

		s.TurnDeadline = s.TurnDeadline.Add(time.Duration(seconds) * time.Second)
		st.touch()
		deadline = s.TurnDeadline
		st.emit(comm.EventTurnExtended, comm.TurnData{Player: s.CurrentPlayer, Deadline: deadline})
		return nil
	})
	return deadline, err
}
