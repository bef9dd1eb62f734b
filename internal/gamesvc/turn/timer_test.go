package turn

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/avvvet/wordclash-services/internal/cache"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTimer() (*Timer, *clock) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	return NewTimer(cache.NewMemoryWithClock(clk.Now), 5*time.Second, clk.Now), clk
}

func TestStartTurnThenExpire(t *testing.T) {
	ctx := context.Background()
	timer, clk := newTimer()

	deadline, err := timer.StartTurn(ctx, 7, "u1", 30)
	require.NoError(t, err)
	assert.Equal(t, clk.now.Add(30*time.Second), deadline)

	expired, err := timer.IsExpired(ctx, 7)
	require.NoError(t, err)
	assert.False(t, expired)

	clk.Advance(31 * time.Second)

	expired, err = timer.IsExpired(ctx, 7)
	require.NoError(t, err)
	assert.True(t, expired)

	player, ok, err := timer.GetCurrentPlayer(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "u1", player)

	require.NoError(t, timer.EndTurn(ctx, 7))
	_, ok, err = timer.GetCurrentPlayer(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNoTurnIsNotExpired(t *testing.T) {
	ctx := context.Background()
	timer, _ := newTimer()

	expired, err := timer.IsExpired(ctx, 99)
	require.NoError(t, err)
	assert.False(t, expired)

	_, ok, err := timer.GetRemainingTime(ctx, 99)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = timer.ExtendTurn(ctx, 99, 10)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStartTurnOverwritesAndBumpsSeq(t *testing.T) {
	ctx := context.Background()
	timer, _ := newTimer()

	_, err := timer.StartTurn(ctx, 1, "a", 30)
	require.NoError(t, err)
	first, ok, err := timer.Current(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = timer.StartTurn(ctx, 1, "b", 10)
	require.NoError(t, err)
	second, ok, err := timer.Current(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "b", second.Player)
	assert.Greater(t, second.Seq, first.Seq)
	assert.True(t, second.Deadline.Before(first.Deadline))
}

func TestRemainingAndExtend(t *testing.T) {
	ctx := context.Background()
	timer, clk := newTimer()

	_, err := timer.StartTurn(ctx, 3, "u", 20)
	require.NoError(t, err)
	clk.Advance(5 * time.Second)

	left, ok, err := timer.GetRemainingTime(ctx, 3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 15*time.Second, left)

	before, _, err := timer.Current(ctx, 3)
	require.NoError(t, err)

	deadline, ok, err := timer.ExtendTurn(ctx, 3, 10)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, clk.now.Add(25*time.Second), deadline)

	after, _, err := timer.Current(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, before.Seq, after.Seq, "an extension is the same turn")

	clk.Advance(20 * time.Second)
	expired, err := timer.IsExpired(ctx, 3)
	require.NoError(t, err)
	assert.False(t, expired)
}

func TestSyncKeepsSeqOfTheSameTurn(t *testing.T) {
	ctx := context.Background()
	timer, clk := newTimer()

	deadline, err := timer.StartTurn(ctx, 4, "a", 30)
	require.NoError(t, err)
	first, _, err := timer.Current(ctx, 4)
	require.NoError(t, err)

	require.NoError(t, timer.Sync(ctx, 4, "a", deadline, false))
	cur, ok, err := timer.Current(ctx, 4)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, cur)

	later := deadline.Add(15 * time.Second)
	require.NoError(t, timer.Sync(ctx, 4, "a", later, false))
	cur, _, err = timer.Current(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, first.Seq, cur.Seq)
	assert.True(t, later.Equal(cur.Deadline))

	clk.Advance(40 * time.Second)
	expired, err := timer.IsExpired(ctx, 4)
	require.NoError(t, err)
	assert.False(t, expired)

	require.NoError(t, timer.Sync(ctx, 4, "a", later, true))
	cur, _, err = timer.Current(ctx, 4)
	require.NoError(t, err)
	assert.Greater(t, cur.Seq, first.Seq, "a fresh turn gets a new seq")

	require.NoError(t, timer.Sync(ctx, 4, "b", later, false))
	next, _, err := timer.Current(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "b", next.Player)
	assert.Greater(t, next.Seq, cur.Seq)
}

func TestSyncSeedsMissingTurn(t *testing.T) {
	ctx := context.Background()
	timer, clk := newTimer()

	deadline := clk.now.Add(20 * time.Second)
	require.NoError(t, timer.Sync(ctx, 6, "u", deadline, false))

	player, ok, err := timer.GetCurrentPlayer(ctx, 6)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "u", player)
}

func TestCleanupExpired(t *testing.T) {
	ctx := context.Background()
	timer, clk := newTimer()

	_, err := timer.StartTurn(ctx, 1, "a", 10)
	require.NoError(t, err)
	_, err = timer.StartTurn(ctx, 2, "b", 60)
	require.NoError(t, err)

	clk.Advance(11 * time.Second)

	ids, err := timer.Expired(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)

	n, err := timer.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = timer.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, ok, err := timer.Current(ctx, 2)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTimerOnRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	clk := &clock{now: time.Now()}
	timer := NewTimer(cache.NewRedisFromClient(client), 5*time.Second, clk.Now)

	_, err := timer.StartTurn(ctx, 7, "u1", 30)
	require.NoError(t, err)
	assert.True(t, mr.Exists("turn:7"))

	clk.Advance(31 * time.Second)
	expired, err := timer.IsExpired(ctx, 7)
	require.NoError(t, err)
	assert.True(t, expired)

	n, err := timer.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, mr.Exists("turn:7"))
}
