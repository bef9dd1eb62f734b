package broker

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/avvvet/wordclash-services/internal/comm"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

type Broker struct {
	Conn           *nats.Conn
	Send           func(socketId string, v interface{}) error
	GetRoomSockets func(string) ([]string, bool)
}

func NewBroker(conn *nats.Conn, fncSend func(string, interface{}) error, fncGetRoomSockets func(string) ([]string, bool)) *Broker {
	return &Broker{
		Conn:           conn,
		Send:           fncSend,
		GetRoomSockets: fncGetRoomSockets,
	}
}

// SubscribeReplies consumes command replies from the game service. Every
// socket instance subscribes, since only the one holding the socket can deliver.
func (b *Broker) SubscribeReplies(topic string) (*nats.Subscription, error) {
	return b.Conn.Subscribe(topic, b.handleReply)
}

// SubscribeEvents consumes session events and fans them out to session rooms.
func (b *Broker) SubscribeEvents(topic string) (*nats.Subscription, error) {
	return b.Conn.Subscribe(topic, b.handleEvent)
}

// publish message to game service
func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}

// handleReply receive message from game service
func (b *Broker) handleReply(msgNats *nats.Msg) {
	message := &comm.WSMessage{}
	if err := json.Unmarshal(msgNats.Data, message); err != nil {
		log.Errorf("Error %s", err)
		return
	}

	if !strings.HasSuffix(message.Type, "-response") {
		log.Errorf("Unknown message %s", message.Type)
		return
	}
	b.sendMessage(message)
}

// handleEvent pushes a session event to every socket in the session room.
func (b *Broker) handleEvent(msgNats *nats.Msg) {
	ev := comm.GameEvent{}
	if err := json.Unmarshal(msgNats.Data, &ev); err != nil {
		log.Errorf("Error %s", err)
		return
	}

	sockets, ok := b.GetRoomSockets(strconv.FormatInt(ev.SessionID, 10))
	if !ok {
		return
	}

	out := &comm.WSMessage{Type: ev.Type, Data: msgNats.Data}
	for _, socketId := range sockets {
		if err := b.Send(socketId, out); err != nil {
			log.Debugf("push %s to socket %s: %s", ev.Type, socketId, err)
		}
	}
}

// send socket message to the web client
func (b *Broker) sendMessage(m *comm.WSMessage) {
	if err := b.Send(m.SocketId, m); err != nil {
		log.Debugf("reply to socket %s: %s", m.SocketId, err)
	}
}
