package broker

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/avvvet/wordclash-services/internal/cache"
	"github.com/avvvet/wordclash-services/internal/comm"
	"github.com/avvvet/wordclash-services/internal/gamesvc/engine"
	"github.com/avvvet/wordclash-services/internal/gamesvc/lock"
	"github.com/avvvet/wordclash-services/internal/gamesvc/mirror"
	"github.com/avvvet/wordclash-services/internal/gamesvc/store"
	"github.com/avvvet/wordclash-services/internal/gamesvc/turn"
	"github.com/avvvet/wordclash-services/internal/gamesvc/words"
	"github.com/avvvet/wordclash-services/internal/validator"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	topic   string
	payload []byte
}

type sink struct {
	mu   sync.Mutex
	msgs []published
}

func (s *sink) publish(topic string, payload []byte) error {
	s.mu.Lock()
	s.msgs = append(s.msgs, published{topic, payload})
	s.mu.Unlock()
	return nil
}

func (s *sink) on(topic string) []published {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []published
	for _, m := range s.msgs {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

func newTestBroker(t *testing.T) (*Broker, *sink) {
	t.Helper()
	c := cache.NewMemory()
	out := &sink{}
	b := &Broker{timeout: time.Second, publish: out.publish}
	b.Game = engine.New(engine.Options{
		Store:     store.NewMemoryStore(),
		Timer:     turn.NewTimer(c, 5*time.Second, nil),
		Mirror:    mirror.New(c, time.Hour),
		Validator: validator.Heuristic{},
		Words:     words.New(map[string][]string{"en": {"apple"}}),
		Locker:    lock.NewLocal(time.Second),
		Notifier:  b,
	})
	return b, out
}

func send(t *testing.T, b *Broker, typ, user string, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	payload, err := json.Marshal(comm.WSMessage{Type: typ, Data: raw, SocketId: "sock-" + user, UserId: user})
	require.NoError(t, err)
	b.handleMessage(&nats.Msg{Data: payload})
}

// lastReply decodes the latest reply and its result envelope.
func lastReply(t *testing.T, out *sink) (comm.WSMessage, comm.Res) {
	t.Helper()
	replies := out.on(comm.TopicGameService)
	require.NotEmpty(t, replies)
	var msg comm.WSMessage
	require.NoError(t, json.Unmarshal(replies[len(replies)-1].payload, &msg))
	var res comm.Res
	require.NoError(t, json.Unmarshal(msg.Data, &res))
	return msg, res
}

func TestCreateJoinStartOverBroker(t *testing.T) {
	b, out := newTestBroker(t)

	send(t, b, comm.CmdCreateSession, "a", comm.CreateSessionReq{})
	msg, res := lastReply(t, out)
	assert.Equal(t, "create-session-response", msg.Type)
	assert.Equal(t, "sock-a", msg.SocketId)
	require.True(t, res.Status)

	var snap mirror.Snapshot
	raw, _ := json.Marshal(res.Data)
	require.NoError(t, json.Unmarshal(raw, &snap))
	require.NotZero(t, snap.SessionID)

	send(t, b, comm.CmdJoinTeam, "a", comm.JoinTeamReq{SessionID: snap.SessionID, Slot: 1})
	_, res = lastReply(t, out)
	assert.True(t, res.Status)
	send(t, b, comm.CmdJoinTeam, "b", comm.JoinTeamReq{SessionID: snap.SessionID, Slot: 2})
	send(t, b, comm.CmdStartMatch, "a", comm.SessionRef{SessionID: snap.SessionID})
	msg, res = lastReply(t, out)
	assert.Equal(t, "start-match-response", msg.Type)
	assert.True(t, res.Status, res.Error)

	var types []string
	for _, p := range out.on(comm.TopicGameEvents) {
		var ev comm.GameEvent
		require.NoError(t, json.Unmarshal(p.payload, &ev))
		assert.Equal(t, snap.SessionID, ev.SessionID)
		types = append(types, ev.Type)
	}
	assert.Contains(t, types, comm.EventMatchStarted)
	assert.Contains(t, types, comm.EventTurnStarted)
}

func TestGuessOutOfTurnRepliesWithKind(t *testing.T) {
	b, out := newTestBroker(t)
	send(t, b, comm.CmdCreateSession, "a", comm.CreateSessionReq{})
	_, res := lastReply(t, out)
	raw, _ := json.Marshal(res.Data)
	var snap mirror.Snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))

	send(t, b, comm.CmdJoinTeam, "a", comm.JoinTeamReq{SessionID: snap.SessionID, Slot: 1})
	send(t, b, comm.CmdJoinTeam, "b", comm.JoinTeamReq{SessionID: snap.SessionID, Slot: 2})
	send(t, b, comm.CmdStartMatch, "a", comm.SessionRef{SessionID: snap.SessionID})

	send(t, b, comm.CmdSubmitGuess, "b", comm.GuessReq{SessionID: snap.SessionID, Word: "pear"})
	msg, res := lastReply(t, out)
	assert.Equal(t, "submit-guess-response", msg.Type)
	assert.False(t, res.Status)
	assert.Equal(t, string(engine.KindInvalidTurn), res.Kind)
	assert.Equal(t, engine.ErrNotYourTurn.Error(), res.Error)
}

func TestUnknownSessionAndCommand(t *testing.T) {
	b, out := newTestBroker(t)

	send(t, b, comm.CmdGetState, "a", comm.SessionRef{SessionID: 77})
	_, res := lastReply(t, out)
	assert.False(t, res.Status)
	assert.Equal(t, string(engine.KindNotFound), res.Kind)

	send(t, b, "dance", "a", struct{}{})
	msg, res := lastReply(t, out)
	assert.Equal(t, "dance-response", msg.Type)
	assert.Equal(t, string(engine.KindInvalidArgument), res.Kind)
}

func TestMalformedPayload(t *testing.T) {
	b, out := newTestBroker(t)
	payload, _ := json.Marshal(comm.WSMessage{Type: comm.CmdJoinTeam, Data: json.RawMessage(`"nope"`), SocketId: "s"})
	b.handleMessage(&nats.Msg{Data: payload})

	_, res := lastReply(t, out)
	assert.False(t, res.Status)
	assert.Equal(t, string(engine.KindInvalidArgument), res.Kind)

	// garbage on the wire is dropped without a reply
	before := len(out.on(comm.TopicGameService))
	b.handleMessage(&nats.Msg{Data: []byte("{")})
	assert.Len(t, out.on(comm.TopicGameService), before)
}

func TestDisconnectLeavesWithoutReply(t *testing.T) {
	b, out := newTestBroker(t)
	send(t, b, comm.CmdCreateSession, "a", comm.CreateSessionReq{})
	_, res := lastReply(t, out)
	raw, _ := json.Marshal(res.Data)
	var snap mirror.Snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	send(t, b, comm.CmdJoinTeam, "a", comm.JoinTeamReq{SessionID: snap.SessionID, Slot: 1})

	before := len(out.on(comm.TopicGameService))
	send(t, b, comm.CmdPlayerDisconnected, "a", comm.SessionRef{SessionID: snap.SessionID})
	assert.Len(t, out.on(comm.TopicGameService), before)

	// the lobby emptied, so the session is gone
	send(t, b, comm.CmdGetState, "a", comm.SessionRef{SessionID: snap.SessionID})
	_, res = lastReply(t, out)
	assert.Equal(t, string(engine.KindNotFound), res.Kind)
}

func TestCommandsActForTheCaller(t *testing.T) {
	b, out := newTestBroker(t)
	send(t, b, comm.CmdCreateSession, "a", comm.CreateSessionReq{})
	_, res := lastReply(t, out)
	raw, _ := json.Marshal(res.Data)
	var snap mirror.Snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	sid := snap.SessionID

	send(t, b, comm.CmdJoinTeam, "a", comm.JoinTeamReq{SessionID: sid, Slot: 1})
	send(t, b, comm.CmdJoinTeam, "b", comm.JoinTeamReq{SessionID: sid, Slot: 2})

	send(t, b, comm.CmdStartMatch, "c", comm.SessionRef{SessionID: sid})
	_, res = lastReply(t, out)
	assert.False(t, res.Status)
	assert.Equal(t, engine.ErrNotInGame.Error(), res.Error)

	send(t, b, comm.CmdStartMatch, "a", comm.SessionRef{SessionID: sid})
	_, res = lastReply(t, out)
	require.True(t, res.Status, res.Error)
	raw, _ = json.Marshal(res.Data)
	require.NoError(t, json.Unmarshal(raw, &snap))
	teamA := snap.Teams[0].ID

	send(t, b, comm.CmdReviveTeam, "b", comm.ReviveReq{SessionID: sid, TeamID: teamA})
	_, res = lastReply(t, out)
	assert.False(t, res.Status)
	assert.Equal(t, string(engine.KindPlayerNotEligible), res.Kind)
	assert.Equal(t, engine.ErrNotYourTeam.Error(), res.Error)

	send(t, b, comm.CmdExtendTurn, "b", comm.ExtendReq{SessionID: sid, Seconds: 10})
	msg, res := lastReply(t, out)
	assert.Equal(t, "extend-turn-response", msg.Type)
	require.True(t, res.Status, res.Error)
	assert.Contains(t, res.Data, "deadline")
}
