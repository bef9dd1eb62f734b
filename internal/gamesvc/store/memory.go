package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/avvvet/wordclash-services/internal/gamesvc/models"
)

// MemoryStore is an in-process SessionStore. Records are copied on the way in
// and out so callers never share mutable state with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	sessions map[int64]*models.GameSession
	teams    map[int64]*models.Team
	members  map[int64]*models.TeamMember
	guesses  []*models.WordGuess
	rounds   []*models.RoundResult
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[int64]*models.GameSession),
		teams:    make(map[int64]*models.Team),
		members:  make(map[int64]*models.TeamMember),
	}
}

func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func copySession(gs *models.GameSession) *models.GameSession {
	c := *gs
	if gs.WinningTeamID != nil {
		w := *gs.WinningTeamID
		c.WinningTeamID = &w
	}
	return &c
}

func (s *MemoryStore) CreateSession(_ context.Context, gs *models.GameSession, teams []*models.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	gs.ID = s.id()
	gs.CreatedAt, gs.UpdatedAt = now, now
	s.sessions[gs.ID] = copySession(gs)

	for _, t := range teams {
		t.ID = s.id()
		t.SessionID = gs.ID
		c := *t
		s.teams[t.ID] = &c
	}
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, id int64) (*models.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gs, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copySession(gs), nil
}

func (s *MemoryStore) Exists(_ context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[id]
	return ok, nil
}

func (s *MemoryStore) LoadGraph(_ context.Context, id int64) (*models.SessionGraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gs, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	g := &models.SessionGraph{Session: copySession(gs)}
	for _, t := range s.teams {
		if t.SessionID == id {
			c := *t
			g.Teams = append(g.Teams, &c)
		}
	}
	for _, m := range s.members {
		if m.SessionID == id {
			c := *m
			g.Members = append(g.Members, &c)
		}
	}
	g.Normalize()
	return g, nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	for tid, t := range s.teams {
		if t.SessionID == id {
			delete(s.teams, tid)
		}
	}
	for mid, m := range s.members {
		if m.SessionID == id {
			delete(s.members, mid)
		}
	}
	return nil
}

func (s *MemoryStore) AddMember(_ context.Context, m *models.TeamMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gs, ok := s.sessions[m.SessionID]
	if !ok || gs.Phase != models.PhaseLobby {
		return ErrNotJoinable
	}
	if t, ok := s.teams[m.TeamID]; !ok || t.SessionID != m.SessionID {
		return fmt.Errorf("team %d: %w", m.TeamID, ErrNotFound)
	}

	order := 0
	for _, other := range s.members {
		if other.SessionID != m.SessionID {
			continue
		}
		if other.UserID == m.UserID {
			return fmt.Errorf("user %s already joined session %d: %w", m.UserID, m.SessionID, ErrDuplicate)
		}
		if other.JoinOrder > order {
			order = other.JoinOrder
		}
	}

	m.ID = s.id()
	m.JoinOrder = order + 1
	c := *m
	s.members[m.ID] = &c
	return nil
}

func (s *MemoryStore) RemoveMember(_ context.Context, memberID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[memberID]; !ok {
		return ErrNotFound
	}
	delete(s.members, memberID)
	return nil
}

func (s *MemoryStore) Commit(_ context.Context, m Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// validate everything first so a failed commit leaves no partial writes
	if m.Session != nil {
		if _, ok := s.sessions[m.Session.ID]; !ok {
			return ErrNotFound
		}
	}
	for _, t := range m.Teams {
		if _, ok := s.teams[t.ID]; !ok {
			return fmt.Errorf("team %d: %w", t.ID, ErrNotFound)
		}
	}
	for _, mb := range m.Members {
		if _, ok := s.members[mb.ID]; !ok {
			return fmt.Errorf("member %d: %w", mb.ID, ErrNotFound)
		}
	}
	if r := m.Round; r != nil {
		for _, existing := range s.rounds {
			if existing.SessionID == r.SessionID && existing.Round == r.Round {
				return fmt.Errorf("round %d already recorded: %w", r.Round, ErrDuplicate)
			}
		}
	}

	if m.Session != nil {
		gs := copySession(m.Session)
		gs.UpdatedAt = time.Now()
		s.sessions[gs.ID] = gs
	}
	for _, t := range m.Teams {
		c := *t
		s.teams[t.ID] = &c
	}
	for _, mb := range m.Members {
		c := *mb
		s.members[mb.ID] = &c
	}
	if g := m.Guess; g != nil {
		g.ID = s.id()
		c := *g
		s.guesses = append(s.guesses, &c)
	}
	if r := m.Round; r != nil {
		r.ID = s.id()
		c := *r
		s.rounds = append(s.rounds, &c)
	}
	return nil
}

func (s *MemoryStore) ListGuesses(_ context.Context, sessionID int64, round int) ([]*models.WordGuess, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.WordGuess
	for _, g := range s.guesses {
		if g.SessionID == sessionID && (round == 0 || g.Round == round) {
			c := *g
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListRounds(_ context.Context, sessionID int64) ([]*models.RoundResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.RoundResult
	for _, r := range s.rounds {
		if r.SessionID == sessionID {
			c := *r
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Round < out[j].Round })
	return out, nil
}

func (s *MemoryStore) ListOverdueTurns(_ context.Context, now time.Time) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []int64
	for id, gs := range s.sessions {
		if gs.Phase == models.PhaseActive && gs.HasTurn() && !gs.TurnDeadline.After(now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
