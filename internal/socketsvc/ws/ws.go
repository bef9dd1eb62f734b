package ws

import (
	"encoding/json"
	"errors"
	"strconv"
	"sync"

	"github.com/avvvet/wordclash-services/internal/comm"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Publisher sends a payload to the message bus.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Client is one socket connection and the user it authenticated as.
type Client struct {
	Conn   *websocket.Conn
	UserId string
	mu     sync.Mutex
}

// WriteJSON serializes writes; gorilla connections allow one writer at a time.
func (c *Client) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteJSON(v)
}

type Ws struct {
	connMap sync.Map // to keep track of socket connection with socketId
	roomMap sync.Map // to keep track of roomId with socketId
	Broker  Publisher
}

var ErrNoSocket = errors.New("socket not connected")

func NewWs() *Ws {
	return &Ws{}
}

// commands relayed to the game service as they are
var relayed = map[string]bool{
	comm.CmdCreateSession: true,
	comm.CmdJoinTeam:      true,
	comm.CmdStartMatch:    true,
	comm.CmdSubmitGuess:   true,
	comm.CmdReviveTeam:    true,
	comm.CmdExtendTurn:    true,
	comm.CmdLeaveSession:  true,
	comm.CmdGetState:      true,
}

// handle socket message from web clients
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	switch {
	case message.Type == comm.CmdJoinRoom:
		s.handleJoinRoom(socketId, message)
	case relayed[message.Type]:
		s.relay(socketId, message)
	default:
		log.Warnf("unknown event received: %s", message.Type)
		s.reply(socketId, message.Type, comm.Res{Error: "unknown command", Kind: "invalid_argument"})
	}
}

func (s *Ws) handleJoinRoom(socketId string, msg *comm.WSMessage) {
	var ref comm.SessionRef
	if err := json.Unmarshal(msg.Data, &ref); err != nil || ref.SessionID <= 0 {
		log.Debugf("invalid join-room payload from socket %s", socketId)
		s.reply(socketId, msg.Type, comm.Res{Error: "session_id is required", Kind: "invalid_argument"})
		return
	}

	s.StoreRoom(socketId, roomId(ref.SessionID))
	s.reply(socketId, msg.Type, comm.Res{Status: true, Data: ref})
}

// relay stamps the command with the socket and its user and forwards it to
// the game service. Commands naming a session also put the socket in that
// session's room.
func (s *Ws) relay(socketId string, msg *comm.WSMessage) {
	client, ok := s.GetConnection(socketId)
	if !ok {
		return
	}

	var ref comm.SessionRef
	if err := json.Unmarshal(msg.Data, &ref); err == nil && ref.SessionID > 0 {
		s.StoreRoom(socketId, roomId(ref.SessionID))
	}

	msg.SocketId = socketId
	msg.UserId = client.UserId

	// Marshal message for NATS
	bytes, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Failed to marshal WSMessage for NATS: %v", err)
		return
	}

	if err := s.Broker.Publish(comm.TopicSocketService, bytes); err != nil {
		log.Errorf("Failed to publish to NATS topic %s: %v", comm.TopicSocketService, err)
		s.reply(socketId, msg.Type, comm.Res{Error: "game service unavailable", Kind: "dependency_failure"})
	}
}

func (s *Ws) reply(socketId, typ string, res comm.Res) {
	raw, err := json.Marshal(res)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}
	out := &comm.WSMessage{Type: typ + "-response", Data: raw, SocketId: socketId}
	if err := s.Send(socketId, out); err != nil {
		log.Debugf("reply to socket %s: %s", socketId, err)
	}
}

// HandleDisconnect forgets the socket. When it was the user's last socket in
// a session room the game service is told the player is gone.
func (s *Ws) HandleDisconnect(socketId string) {
	client, ok := s.GetConnection(socketId)
	room, inRoom := s.GetRoom(socketId)
	s.connMap.Delete(socketId)
	s.roomMap.Delete(socketId)

	if !ok || !inRoom || client.UserId == "" {
		return
	}

	sockets, _ := s.GetRoomSockets(room)
	for _, other := range sockets {
		if c, ok := s.GetConnection(other); ok && c.UserId == client.UserId {
			return
		}
	}

	sid, err := strconv.ParseInt(room, 10, 64)
	if err != nil {
		return
	}
	data, _ := json.Marshal(comm.SessionRef{SessionID: sid})
	bytes, err := json.Marshal(&comm.WSMessage{
		Type:     comm.CmdPlayerDisconnected,
		Data:     data,
		SocketId: socketId,
		UserId:   client.UserId,
	})
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}
	if err := s.Broker.Publish(comm.TopicSocketService, bytes); err != nil {
		log.Errorf("Failed to publish disconnect of user %s: %v", client.UserId, err)
	}
}

func roomId(sid int64) string {
	return strconv.FormatInt(sid, 10)
}

func (s *Ws) StoreConnection(socketId string, client *Client) {
	s.connMap.Store(socketId, client)
}

func (s *Ws) GetConnection(socketId string) (*Client, bool) {
	client, ok := s.connMap.Load(socketId)
	if !ok {
		return nil, false
	}
	return client.(*Client), true
}

// Send writes v to one socket.
func (s *Ws) Send(socketId string, v interface{}) error {
	client, ok := s.GetConnection(socketId)
	if !ok {
		return ErrNoSocket
	}
	return client.WriteJSON(v)
}

func (s *Ws) StoreRoom(socketId string, roomId string) {
	s.roomMap.Store(socketId, roomId)
}

func (s *Ws) GetRoom(socketId string) (string, bool) {
	room, ok := s.roomMap.Load(socketId)
	if !ok {
		return "", false
	}
	return room.(string), true
}

func (s *Ws) GetRoomSockets(roomId string) ([]string, bool) {
	var sockets []string
	found := false

	s.roomMap.Range(func(key, value interface{}) bool {
		if value.(string) == roomId {
			sockets = append(sockets, key.(string))
			found = true
		}
		return true // continue iterating
	})

	return sockets, found
}
