package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avvvet/wordclash-services/internal/cache"
	"github.com/avvvet/wordclash-services/internal/comm"
	"github.com/avvvet/wordclash-services/internal/gamesvc/engine"
	"github.com/avvvet/wordclash-services/internal/gamesvc/lock"
	"github.com/avvvet/wordclash-services/internal/gamesvc/mirror"
	"github.com/avvvet/wordclash-services/internal/gamesvc/models"
	"github.com/avvvet/wordclash-services/internal/gamesvc/store"
	"github.com/avvvet/wordclash-services/internal/gamesvc/turn"
	"github.com/avvvet/wordclash-services/internal/gamesvc/words"
	"github.com/avvvet/wordclash-services/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

type memorySink struct {
	saved map[int64]*MatchSummary
	err   error
}

func (m *memorySink) Save(_ context.Context, s *MatchSummary) error {
	if m.err != nil {
		return m.err
	}
	m.saved[s.SessionID] = s
	return nil
}

// finishedSession plays one wrong guess and then abandons the match.
func finishedSession(t *testing.T) (*store.MemoryStore, int64) {
	t.Helper()
	ctx := context.Background()
	c := cache.NewMemory()
	st := store.NewMemoryStore()
	e := engine.New(engine.Options{
		Store:     st,
		Timer:     turn.NewTimer(c, 5*time.Second, nil),
		Mirror:    mirror.New(c, time.Hour),
		Validator: validator.Heuristic{},
		Words:     words.New(map[string][]string{"en": {"apple"}}),
		Locker:    lock.NewLocal(time.Second),
	})
	snap, err := e.CreateSession(ctx, engine.SessionOptions{})
	require.NoError(t, err)
	sid := snap.SessionID
	_, err = e.JoinTeam(ctx, sid, "a", 1)
	require.NoError(t, err)
	_, err = e.JoinTeam(ctx, sid, "b", 2)
	require.NoError(t, err)
	_, err = e.StartMatch(ctx, sid, "a")
	require.NoError(t, err)
	_, err = e.SubmitGuess(ctx, sid, "a", "zzz")
	require.NoError(t, err)
	require.NoError(t, e.EndMatch(ctx, sid, "a"))
	return st, sid
}

func TestHandleArchivesEndedMatch(t *testing.T) {
	st, sid := finishedSession(t)
	sink := &memorySink{saved: map[int64]*MatchSummary{}}
	a := NewArchiver(st, sink, 24*time.Hour)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	done, err := a.Handle(context.Background(), comm.GameEvent{Type: comm.EventMatchAbandoned, SessionID: sid})
	require.NoError(t, err)
	assert.True(t, done)

	sum := sink.saved[sid]
	require.NotNil(t, sum)
	assert.Equal(t, models.PhaseAbandoned, sum.Outcome)
	assert.Nil(t, sum.WinningTeamID)
	assert.Equal(t, 1, sum.RoundsPlayed)
	assert.Equal(t, 1, sum.TotalGuesses)
	assert.Zero(t, sum.CorrectGuesses)
	assert.Equal(t, 1, sum.HeuristicGuesses)
	require.Len(t, sum.Teams, 2)
	assert.Equal(t, []string{"a"}, sum.Teams[0].Players)
	assert.Equal(t, []string{"b"}, sum.Teams[1].Players)
	require.NotNil(t, sum.ExpiresAt)
	assert.Equal(t, now.Add(24*time.Hour), *sum.ExpiresAt)
}

func TestHandleIgnoresOtherEvents(t *testing.T) {
	st, sid := finishedSession(t)
	sink := &memorySink{saved: map[int64]*MatchSummary{}}
	a := NewArchiver(st, sink, 0)

	done, err := a.Handle(context.Background(), comm.GameEvent{Type: comm.EventTurnStarted, SessionID: sid})
	require.NoError(t, err)
	assert.False(t, done)
	assert.Empty(t, sink.saved)
}

func TestHandleErrors(t *testing.T) {
	st, sid := finishedSession(t)
	ctx := context.Background()

	a := NewArchiver(st, &memorySink{err: errors.New("mongo down")}, 0)
	_, err := a.Handle(ctx, comm.GameEvent{Type: comm.EventMatchCompleted, SessionID: sid})
	assert.ErrorContains(t, err, "mongo down")

	a = NewArchiver(st, &memorySink{saved: map[int64]*MatchSummary{}}, 0)
	_, err = a.Handle(ctx, comm.GameEvent{Type: comm.EventMatchCompleted, SessionID: 9999})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMongoSink(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("save upserts by session", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		sink := NewMongoSink(mt.Coll)

		err := sink.Save(context.Background(), &MatchSummary{SessionID: 7, Outcome: models.PhaseCompleted})
		require.NoError(mt, err)

		ev := mt.GetStartedEvent()
		require.NotNil(mt, ev)
		assert.Equal(mt, "update", ev.CommandName)
	})

	mt.Run("get decodes the document", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "session_id", Value: int64(7)},
			{Key: "outcome", Value: "completed"},
			{Key: "rounds_played", Value: 3},
		}))
		sink := NewMongoSink(mt.Coll)

		sum, err := sink.Get(context.Background(), 7)
		require.NoError(mt, err)
		assert.Equal(mt, int64(7), sum.SessionID)
		assert.Equal(mt, models.PhaseCompleted, sum.Outcome)
		assert.Equal(mt, 3, sum.RoundsPlayed)
	})

	mt.Run("save surfaces server errors", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 11000, Message: "duplicate key"}))
		sink := NewMongoSink(mt.Coll)

		err := sink.Save(context.Background(), &MatchSummary{SessionID: 7})
		assert.Error(mt, err)
	})
}
