package maintenance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/avvvet/wordclash-services/internal/cache"
	"github.com/avvvet/wordclash-services/internal/gamesvc/engine"
	"github.com/avvvet/wordclash-services/internal/gamesvc/lock"
	"github.com/avvvet/wordclash-services/internal/gamesvc/mirror"
	"github.com/avvvet/wordclash-services/internal/gamesvc/models"
	"github.com/avvvet/wordclash-services/internal/gamesvc/store"
	"github.com/avvvet/wordclash-services/internal/gamesvc/turn"
	"github.com/avvvet/wordclash-services/internal/gamesvc/words"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type env struct {
	engine  *engine.Engine
	store   *store.MemoryStore
	timer   *turn.Timer
	mirror  *mirror.Mirror
	clk     *clock
	sweeper *Sweeper
}

func newEnv(t *testing.T) *env {
	t.Helper()
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	c := cache.NewMemoryWithClock(clk.Now)
	e := &env{
		store:  store.NewMemoryStore(),
		timer:  turn.NewTimer(c, 5*time.Second, clk.Now),
		mirror: mirror.New(c, time.Hour),
		clk:    clk,
	}
	e.engine = engine.New(engine.Options{
		Store:  e.store,
		Timer:  e.timer,
		Mirror: e.mirror,
		Words:  words.New(map[string][]string{"en": {"apple", "river"}}),
		Locker: lock.NewLocal(time.Second),
		Now:    clk.Now,
	})
	e.sweeper = NewSweeper(e.engine, e.timer, e.mirror, e.store, clk.Now)
	return e
}

func (e *env) startMatch(t *testing.T) int64 {
	t.Helper()
	ctx := context.Background()
	snap, err := e.engine.CreateSession(ctx, engine.SessionOptions{})
	require.NoError(t, err)
	_, err = e.engine.JoinTeam(ctx, snap.SessionID, "a", 1)
	require.NoError(t, err)
	_, err = e.engine.JoinTeam(ctx, snap.SessionID, "b", 2)
	require.NoError(t, err)
	_, err = e.engine.StartMatch(ctx, snap.SessionID, "a")
	require.NoError(t, err)
	return snap.SessionID
}

func TestSweepAppliesTimeoutsOnce(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	s1 := e.startMatch(t)
	s2 := e.startMatch(t)

	rep, err := e.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Expired)

	e.clk.Advance(31 * time.Second)
	rep, err = e.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Expired)
	assert.Equal(t, 2, rep.Penalized)
	assert.Zero(t, rep.Cleared, "rotated turns have fresh deadlines")

	for _, sid := range []int64{s1, s2} {
		g, err := e.store.LoadGraph(ctx, sid)
		require.NoError(t, err)
		assert.Equal(t, 2, g.MemberByUser("a").Lives)
		assert.Equal(t, "b", g.Session.CurrentPlayer)
	}

	rep, err = e.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Penalized)
}

func TestSweepRecoversLostTimer(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	sid := e.startMatch(t)

	require.NoError(t, e.timer.EndTurn(ctx, sid))
	e.clk.Advance(45 * time.Second)

	rep, err := e.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Penalized)

	player, ok, err := e.timer.GetCurrentPlayer(ctx, sid)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "b", player)
}

func TestSweepClearsTurnsOfFinishedSessions(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	sid := e.startMatch(t)

	// a stale entry left behind for a session that already ended
	_, err := e.timer.StartTurn(ctx, 999, "ghost", 10)
	require.NoError(t, err)
	require.NoError(t, e.engine.EndMatch(ctx, sid, "a"))

	e.clk.Advance(20 * time.Second)
	rep, err := e.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Cleared)
	assert.Zero(t, rep.Penalized)
	assert.Zero(t, rep.Failed, "missing sessions are expected outcomes")

	_, ok, err := e.timer.Current(ctx, 999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSweepDropsOrphanedMirrors(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	sid := e.startMatch(t)

	orphan := &models.SessionGraph{Session: &models.GameSession{ID: 4242, Phase: models.PhaseActive}}
	require.NoError(t, e.mirror.Refresh(ctx, orphan))

	rep, err := e.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Orphans)

	_, ok, err := e.mirror.Get(ctx, 4242)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = e.mirror.Get(ctx, sid)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRunStopsOnCancel(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.sweeper.Run(ctx, 10*time.Millisecond)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
