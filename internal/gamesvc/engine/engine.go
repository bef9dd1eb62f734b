// Package engine applies the rules of a word-association match: turn
// rotation, guess grading, round and match advancement, timeouts, revivals
// and leaving. Every mutating operation runs under a per-session lock and
// commits its effects to the session store before the cache is updated.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/avvvet/wordclash-services/internal/comm"
	"github.com/avvvet/wordclash-services/internal/gamesvc/lock"
	"github.com/avvvet/wordclash-services/internal/gamesvc/metrics"
	"github.com/avvvet/wordclash-services/internal/gamesvc/mirror"
	"github.com/avvvet/wordclash-services/internal/gamesvc/models"
	"github.com/avvvet/wordclash-services/internal/gamesvc/store"
	"github.com/avvvet/wordclash-services/internal/gamesvc/turn"
	"github.com/avvvet/wordclash-services/internal/gamesvc/words"
	"github.com/avvvet/wordclash-services/internal/validator"
	log "github.com/sirupsen/logrus"
)

// Rand is the random source for revival rolls and secret words.
type Rand interface {
	Intn(n int) int
}

// Notifier receives session events after they are committed.
type Notifier interface {
	Notify(ctx context.Context, ev comm.GameEvent)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev comm.GameEvent)

func (f NotifierFunc) Notify(ctx context.Context, ev comm.GameEvent) {
	f(ctx, ev)
}

type Options struct {
	Store     store.SessionStore
	Timer     *turn.Timer
	Mirror    *mirror.Mirror
	Validator validator.Validator
	Words     *words.Bank
	Locker    lock.Locker
	Notifier  Notifier
	Rand      Rand
	Now       func() time.Time

	// Threshold applies to sessions created without one.
	Threshold float64
}

type Engine struct {
	store     store.SessionStore
	timer     *turn.Timer
	mirror    *mirror.Mirror
	validator validator.Validator
	words     *words.Bank
	locker    lock.Locker
	notifier  Notifier
	rng       *lockedRand
	now       func() time.Time
	threshold float64
}

func New(o Options) *Engine {
	e := &Engine{
		store:     o.Store,
		timer:     o.Timer,
		mirror:    o.Mirror,
		validator: o.Validator,
		words:     o.Words,
		locker:    o.Locker,
		notifier:  o.Notifier,
		now:       o.Now,
		threshold: o.Threshold,
	}
	if e.locker == nil {
		e.locker = lock.NewLocal(3 * time.Second)
	}
	if e.notifier == nil {
		e.notifier = NotifierFunc(func(context.Context, comm.GameEvent) {})
	}
	if e.now == nil {
		e.now = time.Now
	}
	r := o.Rand
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	e.rng = &lockedRand{r: r}
	return e
}

// lockedRand makes a Rand safe for concurrent sessions.
type lockedRand struct {
	mu sync.Mutex
	r  Rand
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// step collects the effects of one locked operation.
type step struct {
	g       *models.SessionGraph
	mut     store.Mutation
	save    bool
	deleted bool
	turned  bool // a new turn was started
	events  []comm.GameEvent
	at      time.Time
}

func (st *step) touch() {
	st.save = true
}

func (st *step) member(m *models.TeamMember) {
	st.save = true
	for _, x := range st.mut.Members {
		if x == m {
			return
		}
	}
	st.mut.Members = append(st.mut.Members, m)
}

func (st *step) team(t *models.Team) {
	st.save = true
	for _, x := range st.mut.Teams {
		if x == t {
			return
		}
	}
	st.mut.Teams = append(st.mut.Teams, t)
}

func (st *step) emit(typ string, data interface{}) {
	ev := comm.GameEvent{Type: typ, SessionID: st.g.Session.ID, Timestamp: st.at}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			log.Errorf("marshal %s event: %s", typ, err)
		}
		ev.Data = raw
	}
	st.events = append(st.events, ev)
}

func (e *Engine) load(ctx context.Context, sid int64) (*models.SessionGraph, error) {
	g, err := e.store.LoadGraph(ctx, sid)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %d: %w", sid, err)
	}
	return g, nil
}

func (e *Engine) acquire(ctx context.Context, sid int64) (func(), error) {
	start := time.Now()
	release, err := e.locker.Acquire(ctx, sid)
	metrics.ObserveLockWait(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("session %d: %w", sid, err)
	}
	return release, nil
}

// mutate runs fn against a freshly loaded graph while holding the session
// lock, then commits whatever fn recorded.
func (e *Engine) mutate(ctx context.Context, sid int64, fn func(st *step) error) error {
	release, err := e.acquire(ctx, sid)
	if err != nil {
		return err
	}
	defer release()

	g, err := e.load(ctx, sid)
	if err != nil {
		return err
	}
	st := &step{g: g, at: e.now()}
	if err := fn(st); err != nil {
		return err
	}
	return e.commit(ctx, st)
}

// commit writes the step to the store, then brings the timer and mirror in
// line with the durable turn pointer. Cache failures after a successful
// store commit are logged; the store is authoritative.
func (e *Engine) commit(ctx context.Context, st *step) error {
	sid := st.g.Session.ID

	if st.deleted {
		if err := e.timer.EndTurn(ctx, sid); err != nil {
			log.WithFields(log.Fields{"session": sid}).Warnf("end turn: %s", err)
		}
		if err := e.mirror.Delete(ctx, sid); err != nil {
			log.WithFields(log.Fields{"session": sid}).Warnf("drop mirror: %s", err)
		}
		e.publish(ctx, st.events)
		return nil
	}

	if !st.save && len(st.events) == 0 {
		return nil
	}
	if st.save {
		st.mut.Session = st.g.Session
		if err := e.store.Commit(ctx, st.mut); err != nil {
			return fmt.Errorf("commit session %d: %w", sid, err)
		}
	}

	e.syncTimer(ctx, st.g.Session, st.turned)
	if err := e.mirror.Refresh(ctx, st.g); err != nil {
		log.WithFields(log.Fields{"session": sid}).Warnf("refresh mirror: %s", err)
	}
	e.publish(ctx, st.events)
	return nil
}

// syncTimer mirrors the stored turn pointer into the timer. Only a newly
// started turn gets a new seq, so mutations that leave the turn alone do not
// invalidate guesses already in flight.
func (e *Engine) syncTimer(ctx context.Context, s *models.GameSession, turned bool) {
	var err error
	if s.Phase == models.PhaseActive && s.HasTurn() {
		err = e.timer.Sync(ctx, s.ID, s.CurrentPlayer, s.TurnDeadline, turned)
	} else {
		err = e.timer.EndTurn(ctx, s.ID)
	}
	if err != nil {
		log.WithFields(log.Fields{"session": s.ID}).Warnf("sync turn timer: %s", err)
	}
}

func (e *Engine) publish(ctx context.Context, events []comm.GameEvent) {
	for _, ev := range events {
		e.notifier.Notify(ctx, ev)
	}
}

// deadline is truncated to milliseconds, the precision the timer keeps.
func (e *Engine) deadline(seconds int) time.Time {
	return time.UnixMilli(e.now().Add(time.Duration(seconds) * time.Second).UnixMilli())
}

// playable rejects sessions that are not mid-match.
func playable(s *models.GameSession) error {
	switch s.Phase {
	case models.PhaseActive:
		return nil
	case models.PhaseLobby:
		return ErrMatchNotStarted
	default:
		return ErrInactiveSession
	}
}

// participant returns the caller's membership. Players who left the match
// keep their row but may no longer act on the session.
func participant(g *models.SessionGraph, userID string) (*models.TeamMember, error) {
	m := g.MemberByUser(userID)
	if m == nil {
		return nil, ErrNotInGame
	}
	if m.Left {
		return nil, ErrPlayerInactive
	}
	return m, nil
}

// currentTurn returns the running turn. The stored turn pointer wins when
// the timer disagrees with it or has lost the entry; with heal set the
// timer is re-seeded from the store.
func (e *Engine) currentTurn(ctx context.Context, g *models.SessionGraph, heal bool) (turn.Turn, bool) {
	s := g.Session
	cur, ok, err := e.timer.Current(ctx, s.ID)
	if err != nil {
		log.WithFields(log.Fields{"session": s.ID}).Warnf("turn timer unavailable, using stored turn: %s", err)
	}
	if !s.HasTurn() {
		return turn.Turn{}, false
	}
	if err == nil && ok && cur.Player == s.CurrentPlayer && cur.Deadline.Equal(s.TurnDeadline) {
		return cur, true
	}

	stored := turn.Turn{Player: s.CurrentPlayer, Deadline: s.TurnDeadline}
	if !heal || err != nil {
		return stored, true
	}
	if err := e.timer.Sync(ctx, s.ID, s.CurrentPlayer, s.TurnDeadline, false); err != nil {
		log.WithFields(log.Fields{"session": s.ID}).Warnf("restore turn timer: %s", err)
		return stored, true
	}
	if restored, ok, err := e.timer.Current(ctx, s.ID); err == nil && ok {
		return restored, true
	}
	return stored, true
}

// sameTurn reports whether two observations refer to the same started turn.
// The seq identifies a turn across extensions; without one the deadline does.
func sameTurn(a, b turn.Turn) bool {
	if a.Player != b.Player {
		return false
	}
	if a.Seq != 0 && b.Seq != 0 {
		return a.Seq == b.Seq
	}
	return a.Deadline.Equal(b.Deadline)
}

// rotate hands the turn to the player after from and starts a fresh deadline.
func (e *Engine) rotate(st *step, from string) {
	s := st.g.Session
	st.touch()

	next := NextPlayer(st.g, from)
	if next == nil {
		s.ClearTurn()
		return
	}
	s.CurrentPlayer = next.UserID
	s.TurnDeadline = e.deadline(s.TurnSeconds)
	st.turned = true
	if t := st.g.Team(next.TeamID); t != nil {
		t.LastPlayer = next.UserID
		st.team(t)
	}
	st.emit(comm.EventTurnStarted, comm.TurnData{Player: next.UserID, Deadline: s.TurnDeadline, Previous: from})
}

// startRound moves to the next round: fresh word, full lives, every member
// back in play except those who left the match.
func (e *Engine) startRound(st *step) error {
	s := st.g.Session
	word, err := e.words.Draw(e.rng, s.Language, s.SecretWord)
	if err != nil {
		return fmt.Errorf("draw word for session %d: %w", s.ID, err)
	}
	s.SecretWord = word
	s.Round++
	st.touch()

	for _, m := range st.g.Members {
		if m.Left {
			continue
		}
		m.Lives = s.MaxLives
		m.Active = true
		st.member(m)
	}
	for _, t := range st.g.Teams {
		t.LastPlayer = ""
		st.team(t)
	}
	return nil
}

func (e *Engine) abandon(st *step, reason string) {
	s := st.g.Session
	s.Phase = models.PhaseAbandoned
	s.WinningTeamID = nil
	s.ClearTurn()
	st.touch()

	metrics.RecordMatchFinished("abandoned")
	st.emit(comm.EventMatchAbandoned, comm.RoundData{Round: s.Round, Reason: reason})
}
