package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/avvvet/wordclash-services/internal/comm"
	"github.com/avvvet/wordclash-services/internal/gamesvc/engine"
	"github.com/avvvet/wordclash-services/internal/gamesvc/mirror"
	"github.com/avvvet/wordclash-services/internal/gamesvc/models"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Game is the part of the engine the broker drives.
type Game interface {
	CreateSession(ctx context.Context, opts engine.SessionOptions) (mirror.Snapshot, error)
	JoinTeam(ctx context.Context, sid int64, userID string, slot int) (*models.TeamMember, error)
	StartMatch(ctx context.Context, sid int64, userID string) (mirror.Snapshot, error)
	SubmitGuess(ctx context.Context, sid int64, userID, word string) (*engine.GuessResult, error)
	ReviveTeam(ctx context.Context, sid int64, userID string, teamID int64) (engine.RevivalResult, error)
	ExtendTurn(ctx context.Context, sid int64, userID string, seconds int) (time.Time, error)
	Leave(ctx context.Context, sid int64, userID string) (engine.LeaveResult, error)
	State(ctx context.Context, sid int64) (mirror.Snapshot, error)
}

type Broker struct {
	Conn    *nats.Conn
	Game    Game
	timeout time.Duration
	publish func(topic string, payload []byte) error
}

func NewBroker(nc *nats.Conn, game Game) *Broker {
	b := &Broker{Conn: nc, Game: game, timeout: 15 * time.Second}
	b.publish = func(topic string, payload []byte) error {
		return b.Conn.Publish(topic, payload)
	}
	return b
}

// handles message coming from socket
func (b *Broker) handleMessage(msgNat *nats.Msg) {
	msg := &comm.WSMessage{}
	if err := json.Unmarshal(msgNat.Data, msg); err != nil {
		log.Errorf("Error nats message %s", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	data, err := b.dispatch(ctx, msg)
	if msg.Type == comm.CmdPlayerDisconnected {
		// nobody is listening for the reply
		if err != nil && !engine.Expected(err) {
			log.Errorf("Error [%s] user %s: %s", msg.Type, msg.UserId, err)
		}
		return
	}
	b.reply(msg, data, err)
}

func (b *Broker) dispatch(ctx context.Context, msg *comm.WSMessage) (interface{}, error) {
	switch msg.Type {
	case comm.CmdCreateSession:
		var req comm.CreateSessionReq
		if err := decode(msg, &req); err != nil {
			return nil, err
		}
		return b.Game.CreateSession(ctx, engine.SessionOptions{
			Language:    req.Language,
			TurnSeconds: req.TurnSeconds,
			MaxLives:    req.MaxLives,
			RoundsToWin: req.RoundsToWin,
			Threshold:   req.Threshold,
		})
	case comm.CmdJoinTeam:
		var req comm.JoinTeamReq
		if err := decode(msg, &req); err != nil {
			return nil, err
		}
		return b.Game.JoinTeam(ctx, req.SessionID, msg.UserId, req.Slot)
	case comm.CmdStartMatch:
		var req comm.SessionRef
		if err := decode(msg, &req); err != nil {
			return nil, err
		}
		return b.Game.StartMatch(ctx, req.SessionID, msg.UserId)
	case comm.CmdSubmitGuess:
		var req comm.GuessReq
		if err := decode(msg, &req); err != nil {
			return nil, err
		}
		return b.Game.SubmitGuess(ctx, req.SessionID, msg.UserId, req.Word)
	case comm.CmdReviveTeam:
		var req comm.ReviveReq
		if err := decode(msg, &req); err != nil {
			return nil, err
		}
		return b.Game.ReviveTeam(ctx, req.SessionID, msg.UserId, req.TeamID)
	case comm.CmdExtendTurn:
		var req comm.ExtendReq
		if err := decode(msg, &req); err != nil {
			return nil, err
		}
		deadline, err := b.Game.ExtendTurn(ctx, req.SessionID, msg.UserId, req.Seconds)
		if err != nil {
			return nil, err
		}
		return map[string]time.Time{"deadline": deadline}, nil
	case comm.CmdLeaveSession, comm.CmdPlayerDisconnected:
		var req comm.SessionRef
		if err := decode(msg, &req); err != nil {
			return nil, err
		}
		return b.Game.Leave(ctx, req.SessionID, msg.UserId)
	case comm.CmdGetState:
		var req comm.SessionRef
		if err := decode(msg, &req); err != nil {
			return nil, err
		}
		return b.Game.State(ctx, req.SessionID)
	default:
		log.Warnf("unknown command received: %s", msg.Type)
		return nil, &engine.Error{Kind: engine.KindInvalidArgument, Reason: "unknown command " + msg.Type}
	}
}

func decode(msg *comm.WSMessage, v interface{}) error {
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return &engine.Error{Kind: engine.KindInvalidArgument, Reason: "malformed " + msg.Type + " payload"}
	}
	return nil
}

// reply sends the command result back to the socket that asked.
func (b *Broker) reply(msg *comm.WSMessage, data interface{}, err error) {
	res := comm.Res{Status: err == nil, Data: data}
	if err != nil {
		res.Data = nil
		res.Kind = string(engine.KindOf(err))
		if engine.Expected(err) {
			res.Error = err.Error()
		} else {
			log.WithFields(log.Fields{"type": msg.Type, "user": msg.UserId}).Errorf("command failed: %s", err)
			res.Error = "temporarily unavailable, try again"
		}
	}

	raw, mErr := json.Marshal(res)
	if mErr != nil {
		log.Errorf("Error marshal %s response: %s", msg.Type, mErr)
		return
	}

	out := &comm.WSMessage{
		Type:     msg.Type + "-response",
		Data:     raw,
		SocketId: msg.SocketId,
		UserId:   msg.UserId,
	}
	payload, mErr := json.Marshal(out)
	if mErr != nil {
		log.Errorf("Error %s", mErr)
		return
	}
	b.Publish(comm.TopicGameService, payload)
}

// Notify publishes a committed session event for every listener.
func (b *Broker) Notify(_ context.Context, ev comm.GameEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Errorf("error [Notify] marshal %s for session %d: %s", ev.Type, ev.SessionID, err)
		return
	}
	b.Publish(comm.TopicGameEvents, payload)
}

// consume message from socket service, shared across game service instances
func (b *Broker) QueueSubscribeSocketService(topic, queueGroup string) (*nats.Subscription, error) {
	sub, err := b.Conn.QueueSubscribe(topic, queueGroup, b.handleMessage)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}
