package mirror

import (
	"context"
	"testing"
	"time"

	"github.com/avvvet/wordclash-services/internal/cache"
	"github.com/avvvet/wordclash-services/internal/gamesvc/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func graph(sid int64) *models.SessionGraph {
	return &models.SessionGraph{
		Session: &models.GameSession{
			ID: sid, Language: "en", Phase: models.PhaseActive, Round: 1,
			MaxLives: 3, RoundsToWin: 2, TurnSeconds: 30,
			SecretWord: "ocean", CurrentPlayer: "p1",
			TurnDeadline: time.Unix(1_700_000_030, 0),
		},
		Teams: []*models.Team{
			{ID: 1, SessionID: sid, Slot: 1, Name: "Red"},
			{ID: 2, SessionID: sid, Slot: 2, Name: "Blue"},
		},
		Members: []*models.TeamMember{
			{ID: 1, TeamID: 1, UserID: "p1", Lives: 3, Active: true, JoinOrder: 1},
			{ID: 2, TeamID: 2, UserID: "p2", Lives: 2, Active: true, JoinOrder: 2},
		},
	}
}

func TestRefreshAndGet(t *testing.T) {
	ctx := context.Background()
	m := New(cache.NewMemory(), time.Minute)

	require.NoError(t, m.Refresh(ctx, graph(5)))

	snap, ok, err := m.Get(ctx, 5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "p1", snap.CurrentPlayer)
	assert.Equal(t, models.PhaseActive, snap.Phase)
	require.Len(t, snap.Teams, 2)
	assert.Equal(t, "p2", snap.Teams[1].Members[0].UserID)
	assert.Equal(t, 2, snap.Teams[1].Members[0].Lives)

	g := graph(5)
	g.Session.CurrentPlayer = "p2"
	require.NoError(t, m.Refresh(ctx, g))
	snap, _, err = m.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "p2", snap.CurrentPlayer)
}

func TestSnapshotHidesSecretWord(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemory()
	m := New(c, time.Minute)
	require.NoError(t, m.Refresh(ctx, graph(5)))

	raw, err := c.HGet(ctx, "game:5", "state")
	require.NoError(t, err)
	assert.NotContains(t, raw, "ocean")
}

func TestReconcileDropsOrphans(t *testing.T) {
	ctx := context.Background()
	m := New(cache.NewMemory(), time.Minute)

	require.NoError(t, m.Refresh(ctx, graph(1)))
	require.NoError(t, m.Refresh(ctx, graph(2)))

	live := map[int64]bool{1: true}
	removed, err := m.Reconcile(ctx, func(_ context.Context, sid int64) (bool, error) {
		return live[sid], nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, ok, err := m.Get(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = m.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReconcileCleansIndex(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemory()
	m := New(c, time.Minute)

	require.NoError(t, m.Refresh(ctx, graph(3)))
	require.NoError(t, c.SAdd(ctx, indexKey, "junk"))
	// the snapshot expired but the session lives on
	require.NoError(t, c.Delete(ctx, stateKey(3)))

	removed, err := m.Reconcile(ctx, func(context.Context, int64) (bool, error) { return true, nil })
	require.NoError(t, err)
	assert.Zero(t, removed)

	ids, err := c.SMembers(ctx, indexKey)
	if err != nil {
		require.ErrorIs(t, err, cache.ErrMiss)
	}
	assert.Empty(t, ids)
}
