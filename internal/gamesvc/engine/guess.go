package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avvvet/wordclash-services/internal/comm"
	"github.com/avvvet/wordclash-services/internal/gamesvc/metrics"
	"github.com/avvvet/wordclash-services/internal/gamesvc/models"
	"github.com/avvvet/wordclash-services/internal/gamesvc/turn"
	"github.com/avvvet/wordclash-services/internal/validator"
)

// GuessResult is the outcome of an accepted guess.
type GuessResult struct {
	Guess        *models.WordGuess `json:"guess"`
	Verdict      validator.Verdict `json:"verdict"`
	LivesLeft    int               `json:"lives_left"`
	Eliminated   bool              `json:"eliminated"`
	NextPlayer   string            `json:"next_player,omitempty"`
	TurnDeadline time.Time         `json:"turn_deadline,omitempty"`
	Round        RoundOutcome      `json:"round"`
}

// checkTurn applies the caller preconditions in order.
func checkTurn(g *models.SessionGraph, cur turn.Turn, ok bool, userID string, now time.Time) (*models.TeamMember, error) {
	if !ok {
		return nil, ErrNoActiveTurn
	}
	if cur.Player != userID {
		return nil, ErrNotYourTurn
	}
	if !now.Before(cur.Deadline) {
		return nil, ErrTurnExpired
	}
	m := g.MemberByUser(userID)
	if m == nil {
		return nil, ErrNotInGame
	}
	if !m.Active {
		return nil, ErrPlayerInactive
	}
	return m, nil
}

// SubmitGuess grades a guess from the current player and hands the turn on.
// The validator runs without the session lock; the preconditions are checked
// again under the lock so a turn that ended meanwhile is rejected.
func (e *Engine) SubmitGuess(ctx context.Context, sid int64, userID, word string) (*GuessResult, error) {
	word = strings.ToLower(strings.TrimSpace(word))

	g, err := e.load(ctx, sid)
	if err != nil {
		return nil, err
	}
	if err := playable(g.Session); err != nil {
		return nil, err
	}
	seen, ok := e.currentTurn(ctx, g, false)
	if _, err := checkTurn(g, seen, ok, userID, e.now()); err != nil {
		return nil, err
	}

	verdict, err := e.validate(ctx, g.Session, word)
	if err != nil {
		return nil, err
	}

	var res *GuessResult
	err = e.mutate(ctx, sid, func(st *step) error {
		s := st.g.Session
		if err := playable(s); err != nil {
			return err
		}
		cur, ok := e.currentTurn(ctx, st.g, true)
		if ok && cur.Player == userID && !sameTurn(seen, cur) {
			return ErrTurnExpired
		}
		m, err := checkTurn(st.g, cur, ok, userID, e.now())
		if err != nil {
			return err
		}

		guess := &models.WordGuess{
			SessionID: sid,
			TeamID:    m.TeamID,
			UserID:    userID,
			Round:     s.Round,
			Word:      word,
			Correct:   verdict.Valid,
			Score:     verdict.Score,
			Heuristic: verdict.Heuristic,
			CreatedAt: st.at,
		}
		st.mut.Guess = guess
		st.touch()

		res = &GuessResult{Guess: guess, Verdict: verdict}
		if !verdict.Valid {
			res.Eliminated = m.LoseLife()
			st.member(m)
		}
		res.LivesLeft = m.Lives
		st.emit(comm.EventGuessSubmitted, comm.GuessData{
			UserID:     userID,
			TeamID:     m.TeamID,
			Word:       word,
			Correct:    verdict.Valid,
			Score:      verdict.Score,
			Heuristic:  verdict.Heuristic,
			LivesLeft:  m.Lives,
			Eliminated: res.Eliminated,
		})

		from := userID
		if res.Eliminated {
			out, err := e.settle(st)
			if err != nil {
				return err
			}
			res.Round = out
			if out.Completed {
				from = ""
			}
		}
		if s.Phase == models.PhaseActive {
			e.rotate(st, from)
		}
		res.NextPlayer = s.CurrentPlayer
		res.TurnDeadline = s.TurnDeadline
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordGuess(verdict.Valid, verdict.Heuristic)
	return res, nil
}

func (e *Engine) validate(ctx context.Context, s *models.GameSession, word string) (validator.Verdict, error) {
	start := time.Now()
	v, err := e.validator.ValidateSimilarity(ctx, s.SecretWord, word, s.Language, s.Threshold)
	metrics.ObserveValidator(time.Since(start))
	if err != nil {
		return v, fmt.Errorf("validate guess for session %d: %w", s.ID, err)
	}
	return v, nil
}
