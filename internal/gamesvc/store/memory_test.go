package store

import (
	"context"
	"testing"
	"time"

	"github.com/avvvet/wordclash-services/internal/gamesvc/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T, s *MemoryStore) (*models.GameSession, []*models.Team) {
	t.Helper()
	gs := &models.GameSession{Language: "en", TurnSeconds: 30, MaxLives: 3, RoundsToWin: 2, Phase: models.PhaseLobby}
	teams := []*models.Team{{Slot: 2, Name: "Blue"}, {Slot: 1, Name: "Red"}}
	require.NoError(t, s.CreateSession(context.Background(), gs, teams))
	return gs, teams
}

func TestMemoryAddMemberAssignsJoinOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	gs, teams := newSession(t, s)

	a := &models.TeamMember{SessionID: gs.ID, TeamID: teams[0].ID, UserID: "a", Lives: 3, Active: true}
	b := &models.TeamMember{SessionID: gs.ID, TeamID: teams[1].ID, UserID: "b", Lives: 3, Active: true}
	require.NoError(t, s.AddMember(ctx, a))
	require.NoError(t, s.AddMember(ctx, b))
	assert.Equal(t, 1, a.JoinOrder)
	assert.Equal(t, 2, b.JoinOrder)

	dup := &models.TeamMember{SessionID: gs.ID, TeamID: teams[1].ID, UserID: "a"}
	assert.ErrorIs(t, s.AddMember(ctx, dup), ErrDuplicate)

	g, err := s.LoadGraph(ctx, gs.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, g.Teams[0].Slot)
	assert.Equal(t, "a", g.Members[0].UserID)
}

func TestMemoryAddMemberRequiresLobby(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	gs, teams := newSession(t, s)

	gs.Phase = models.PhaseActive
	require.NoError(t, s.Commit(ctx, Mutation{Session: gs}))

	m := &models.TeamMember{SessionID: gs.ID, TeamID: teams[0].ID, UserID: "late"}
	assert.ErrorIs(t, s.AddMember(ctx, m), ErrNotJoinable)
}

func TestMemoryCommitIsIsolatedFromCallers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	gs, _ := newSession(t, s)

	g, err := s.LoadGraph(ctx, gs.ID)
	require.NoError(t, err)
	g.Session.Round = 9

	again, err := s.GetSession(ctx, gs.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Round)
}

func TestMemoryRoundResultsAreUnique(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	gs, teams := newSession(t, s)

	r := &models.RoundResult{SessionID: gs.ID, Round: 1, WinningTeamID: teams[0].ID, CompletedAt: time.Now()}
	require.NoError(t, s.Commit(ctx, Mutation{Round: r}))
	err := s.Commit(ctx, Mutation{Round: &models.RoundResult{SessionID: gs.ID, Round: 1}})
	assert.ErrorIs(t, err, ErrDuplicate)

	rounds, err := s.ListRounds(ctx, gs.ID)
	require.NoError(t, err)
	assert.Len(t, rounds, 1)
}

func TestMemoryOverdueTurns(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	gs, _ := newSession(t, s)

	now := time.Now()
	gs.Phase = models.PhaseActive
	gs.CurrentPlayer = "a"
	gs.TurnDeadline = now.Add(-time.Second)
	require.NoError(t, s.Commit(ctx, Mutation{Session: gs}))

	ids, err := s.ListOverdueTurns(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []int64{gs.ID}, ids)
}
